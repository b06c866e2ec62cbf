package modelcar

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// ModelRoot is where KServe expects the model inside a modelcar image
const ModelRoot = "models"

// Image labels
const (
	LabelModelID       = "ai.maas.model.id"
	LabelModelRevision = "ai.maas.model.revision"
	LabelSource        = "org.opencontainers.image.source"
	LabelRevision      = "org.opencontainers.image.revision"
)

// BuildOptions controls how a snapshot is turned into an image
type BuildOptions struct {
	// BaseImage is pulled for the target platform. Empty or "scratch"
	// builds on an empty image.
	BaseImage string
	Platform  v1.Platform
	Labels    map[string]string
	Keychain  authn.Keychain
}

// DefaultPlatform is the platform modelcar images are built for
var DefaultPlatform = v1.Platform{OS: "linux", Architecture: "amd64"}

// BuildImage layers the snapshot under /models on top of the base image
func BuildImage(ctx context.Context, snap *Snapshot, opts BuildOptions) (v1.Image, error) {
	if opts.Platform.OS == "" {
		opts.Platform = DefaultPlatform
	}
	if opts.Keychain == nil {
		opts.Keychain = authn.DefaultKeychain
	}

	base, err := baseImage(ctx, opts)
	if err != nil {
		return nil, err
	}

	layer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(writeLayer(pw, snap.Dir, snap.Files))
		}()
		return pr, nil
	}, tarball.WithMediaType(types.OCILayer))
	if err != nil {
		return nil, fmt.Errorf("failed to create model layer: %w", err)
	}

	img, err := mutate.Append(base, mutate.Addendum{
		Layer: layer,
		History: v1.History{
			CreatedBy: "modelcar build",
			Comment:   fmt.Sprintf("%s@%s", snap.ModelID, snap.Revision),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append model layer: %w", err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}
	cfg = cfg.DeepCopy()
	cfg.OS = opts.Platform.OS
	cfg.Architecture = opts.Platform.Architecture
	cfg.Variant = opts.Platform.Variant
	if cfg.Config.Labels == nil {
		cfg.Config.Labels = map[string]string{}
	}
	for k, v := range imageLabels(snap) {
		cfg.Config.Labels[k] = v
	}
	for k, v := range opts.Labels {
		cfg.Config.Labels[k] = v
	}

	return mutate.ConfigFile(img, cfg)
}

func baseImage(ctx context.Context, opts BuildOptions) (v1.Image, error) {
	if opts.BaseImage == "" || opts.BaseImage == "scratch" {
		img := mutate.MediaType(empty.Image, types.OCIManifestSchema1)
		return mutate.ConfigMediaType(img, types.OCIConfigJSON), nil
	}

	ref, err := name.ParseReference(opts.BaseImage)
	if err != nil {
		return nil, fmt.Errorf("invalid base image %q: %w", opts.BaseImage, err)
	}
	img, err := remote.Image(ref,
		remote.WithContext(ctx),
		remote.WithPlatform(opts.Platform),
		remote.WithAuthFromKeychain(opts.Keychain),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pull base image %s: %w", ref, err)
	}
	return img, nil
}

func imageLabels(snap *Snapshot) map[string]string {
	labels := map[string]string{
		LabelModelID:       snap.ModelID,
		LabelModelRevision: snap.Revision,
		LabelSource:        DefaultHubURL + "/" + snap.ModelID,
	}
	if snap.SHA != "" {
		labels[LabelRevision] = snap.SHA
	}
	return labels
}

// writeLayer writes files from dir as a reproducible tar rooted at
// models/: fixed timestamps, root ownership, sorted entries.
func writeLayer(w io.Writer, dir string, files []string) error {
	tw := tar.NewWriter(w)
	epoch := time.Unix(0, 0)

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	dirs := map[string]bool{}
	addDir := func(p string) error {
		if dirs[p] {
			return nil
		}
		dirs[p] = true
		return tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeDir,
			Name:     p + "/",
			Mode:     0o755,
			ModTime:  epoch,
		})
	}
	if err := addDir(ModelRoot); err != nil {
		return err
	}

	for _, file := range sorted {
		target := path.Join(ModelRoot, file)

		// Parent directories first, outermost to innermost.
		var parents []string
		for d := path.Dir(target); d != ModelRoot && d != "."; d = path.Dir(d) {
			parents = append(parents, d)
		}
		for i := len(parents) - 1; i >= 0; i-- {
			if err := addDir(parents[i]); err != nil {
				return err
			}
		}

		if err := addFile(tw, filepath.Join(dir, filepath.FromSlash(file)), target, epoch); err != nil {
			return err
		}
	}
	return tw.Close()
}

func addFile(tw *tar.Writer, src, target string, epoch time.Time) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", strings.TrimPrefix(target, ModelRoot+"/"))
	}

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     target,
		Size:     info.Size(),
		Mode:     0o644,
		ModTime:  epoch,
	}); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
