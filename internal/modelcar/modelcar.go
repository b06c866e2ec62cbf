// Package modelcar packages Hugging Face model snapshots as OCI images that
// KServe mounts as model storage.
package modelcar

import (
	"context"
	"fmt"
)

// PackageOptions is a full download, build and push run
type PackageOptions struct {
	Download DownloadOptions
	Build    BuildOptions
	Image    string
}

// Result describes a pushed modelcar image
type Result struct {
	Snapshot *Snapshot
	Digest   string
}

// Package downloads a model, builds its image and pushes it
func Package(ctx context.Context, hub *HubClient, pusher *Pusher, opts PackageOptions) (*Result, error) {
	if opts.Image == "" {
		return nil, fmt.Errorf("target image is required")
	}

	snap, err := Download(ctx, hub, opts.Download)
	if err != nil {
		return nil, err
	}

	img, err := BuildImage(ctx, snap, opts.Build)
	if err != nil {
		return nil, err
	}

	digest, err := pusher.Push(ctx, img, opts.Image)
	if err != nil {
		return nil, err
	}
	return &Result{Snapshot: snap, Digest: digest}, nil
}
