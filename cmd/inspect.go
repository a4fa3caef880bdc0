package cmd

import (
	"fmt"

	"github.com/brensch/s2composite/internal/inspector"
	"github.com/brensch/s2composite/internal/raster/gdal"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [composite...]",
	Short: "Describe composites: size, band labels and time window",
	Long: `Opens each named composite, or every composite in the output directory when
none are named, and prints its grid, band labels and acquisition window.
Composites missing a band label or a time key are flagged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		paths := args
		if len(paths) == 0 {
			var err error
			if paths, err = inspector.FindComposites(cfg.OutputDir, cfg.CompositeExt); err != nil {
				return err
			}
		}

		summaries, err := inspector.Inspect(gdal.New(), paths, cfg.StartTimeKey, cfg.EndTimeKey, cmd.OutOrStdout(), logger)
		if err != nil {
			logger.Error("Inspection completed with errors", "error", err)
			return fmt.Errorf("inspection failed: %w", err)
		}
		incomplete := 0
		for _, s := range summaries {
			if !s.Complete() {
				incomplete++
			}
		}
		if incomplete > 0 {
			return fmt.Errorf("%d of %d composites incomplete", incomplete, len(summaries))
		}
		return nil
	},
}
