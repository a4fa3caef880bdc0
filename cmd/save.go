package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brensch/s2composite/internal/saver"

	"github.com/spf13/cobra"
)

var saveDir string

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Export the composite catalog and event log to Parquet",
	Long: `Writes catalog.parquet (one row per composite: archive, path, bands, grid size,
data type, projection and time window) and composite_event_log.parquet into
--dir, which defaults to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		dir := saveDir
		if dir == "" {
			dir = getConfig().OutputDir
		}
		logger.Info("Starting export...", slog.String("dir", dir))
		if err := saver.Save(context.Background(), getDB(), dir, logger); err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveDir, "dir", "", "Directory for the Parquet files (default: output directory)")
}
