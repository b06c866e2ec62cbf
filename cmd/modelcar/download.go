package main

import (
	"github.com/spf13/cobra"

	"github.com/mrmushfiq/maas-platform/internal/modelcar"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Downloads a model snapshot without building an image",
	Example: `  # Fetch a public model into ./model
  modelcar download --model TinyLlama/TinyLlama-1.1B-Chat-v1.0 --output ./model`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hub := newHubClient()
		printHeader(cmd, hub)

		snap, err := modelcar.Download(cmd.Context(), hub, downloadOptions(cmd))
		if err != nil {
			return err
		}
		goodColor.Fprintf(cmd.OutOrStdout(), "✓ Downloaded %d files (%s) to %s\n", len(snap.Files), humanSize(snap.Size), snap.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
