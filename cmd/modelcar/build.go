package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/spf13/cobra"

	"github.com/mrmushfiq/maas-platform/internal/modelcar"
)

var (
	imageRef    string
	baseImage   string
	platform    string
	insecure    bool
	imageLabels map[string]string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Downloads a model and pushes it as a modelcar image",
	Long: `Downloads the model snapshot, layers it under /models on top of the
base image and pushes the result. ECR targets log in with the default AWS
credential chain; other registries use the Docker config.`,
	Example: `  # Package a gated model into ECR
  HF_TOKEN=hf_xxx modelcar build \
    --model meta-llama/Meta-Llama-3-8B-Instruct \
    --image 123456789012.dkr.ecr.us-east-1.amazonaws.com/maas-dev-modelcars:llama-3-8b-main`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(imageRef) == "" {
			return fmt.Errorf("--image (or IMAGE) is required")
		}
		plat, err := v1.ParsePlatform(platform)
		if err != nil {
			return fmt.Errorf("invalid --platform: %w", err)
		}

		hub := newHubClient()
		printHeader(cmd, hub)
		fmt.Fprintf(cmd.OutOrStdout(), "Target image: %s\n", imageRef)

		res, err := modelcar.Package(cmd.Context(), hub, &modelcar.Pusher{
			Keychain: authn.DefaultKeychain,
			Insecure: insecure,
		}, modelcar.PackageOptions{
			Download: downloadOptions(cmd),
			Build: modelcar.BuildOptions{
				BaseImage: baseImage,
				Platform:  *plat,
				Labels:    imageLabels,
			},
			Image: imageRef,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		goodColor.Fprintf(out, "✓ Downloaded %d files (%s)\n", len(res.Snapshot.Files), humanSize(res.Snapshot.Size))
		goodColor.Fprintf(out, "✓ Pushed %s\n", res.Digest)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&imageRef, "image", os.Getenv("IMAGE"), "Target image reference")
	buildCmd.Flags().StringVar(&baseImage, "base", getEnvOrDefault("BASE_IMAGE", "busybox:1.36"), `Base image, or "scratch" for an empty one`)
	buildCmd.Flags().StringVar(&platform, "platform", "linux/amd64", "Target platform os/arch[/variant]")
	buildCmd.Flags().BoolVar(&insecure, "insecure", false, "Allow pushing to plain HTTP registries")
	buildCmd.Flags().StringToStringVar(&imageLabels, "label", nil, "Extra image labels (key=value)")
	rootCmd.AddCommand(buildCmd)
}
