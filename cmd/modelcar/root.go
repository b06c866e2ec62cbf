package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mrmushfiq/maas-platform/internal/modelcar"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
)

var (
	modelID     string
	revision    string
	hfToken     string
	hubURL      string
	outputDir   string
	concurrency int
	noColor     bool
)

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var rootCmd = &cobra.Command{
	Use:   "modelcar",
	Short: "Packages Hugging Face models as OCI images for KServe",
	Long: `modelcar downloads a model snapshot from the Hugging Face Hub and
publishes it as an OCI image with the weights under /models, the layout
KServe expects from a modelcar storage URI (oci://...).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		badColor.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelID, "model", os.Getenv("MODEL_ID"), "Hugging Face model ID, e.g. meta-llama/Meta-Llama-3-8B-Instruct")
	rootCmd.PersistentFlags().StringVar(&revision, "revision", getEnvOrDefault("MODEL_REVISION", "main"), "Branch, tag or commit to download")
	rootCmd.PersistentFlags().StringVar(&hfToken, "token", os.Getenv("HF_TOKEN"), "Hugging Face token for gated or private models")
	rootCmd.PersistentFlags().StringVar(&hubURL, "hub-url", getEnvOrDefault("HF_ENDPOINT", modelcar.DefaultHubURL), "Hugging Face Hub endpoint")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", getEnvOrDefault("OUTPUT_DIR", "/models"), "Directory the snapshot is written to")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 4, "Parallel file downloads")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
}

func newHubClient() *modelcar.HubClient {
	return modelcar.NewHubClient(hubURL, hfToken, &http.Client{Timeout: 6 * time.Hour})
}

func downloadOptions(cmd *cobra.Command) modelcar.DownloadOptions {
	out := cmd.OutOrStdout()
	return modelcar.DownloadOptions{
		ModelID:     modelID,
		Revision:    revision,
		OutputDir:   outputDir,
		Concurrency: concurrency,
		Progress: func(file string, size int64) {
			goodColor.Fprintf(out, "  ✓ %s (%s)\n", file, humanSize(size))
		},
	}
}

func printHeader(cmd *cobra.Command, hub *modelcar.HubClient) {
	out := cmd.OutOrStdout()
	headerColor.Fprintf(out, "Model: %s@%s\n", modelID, revision)
	if hub.Authenticated() {
		fmt.Fprintln(out, "Using HF token: Yes")
	} else {
		warnColor.Fprintln(out, "Using HF token: No")
	}
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
