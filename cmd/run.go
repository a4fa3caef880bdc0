package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/brensch/s2composite/internal/app"
	"github.com/brensch/s2composite/internal/archive"
	"github.com/brensch/s2composite/internal/db"
	"github.com/brensch/s2composite/internal/orchestrator"
	"github.com/brensch/s2composite/internal/raster/gdal"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Composite every archive in the input directory",
	Long: `Processes every archive in the input directory, at most --max-concurrent at once:
1. Extracts the archive into <output-dir>/<archive name>/.
2. Locates the configured band tiles at their configured resolutions.
3. Resamples bands that are not at the reference resolution onto the reference grid.
4. Writes <output-dir>/<archive name>.tif with one labelled band per configured band
   and the product time window as epoch-millisecond metadata.
A failing archive is logged and recorded; the others continue. Archives with a
catalogued composite that still exists are skipped unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		useTUI, _ := cmd.Flags().GetBool("tui")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		driver := gdal.New()
		recorder := db.NewRecorder(getDB(), "")

		var summary orchestrator.Summary
		var err error
		if useTUI {
			total := 0
			if archives, listErr := archive.List(cfg.InputDir, cfg.ArchiveExt); listErr == nil {
				total = len(archives)
			}
			summary, err = app.RunBatch(ctx, rootCmd.Name(), total,
				func(ctx context.Context, onProgress orchestrator.ProgressFunc) (orchestrator.Summary, error) {
					return orchestrator.RunBatch(ctx, cfg, driver, recorder, logger, onProgress)
				})
		} else {
			summary, err = orchestrator.RunBatch(ctx, cfg, driver, recorder, logger, nil)
		}
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d archives, %d composited, %d skipped, %d failed\n",
			summary.RunID, summary.Discovered, summary.Succeeded, summary.Skipped, summary.Failed)
		if summary.Failed > 0 {
			logger.Warn("Some archives failed; see the event log.", slog.Int("failed", summary.Failed), slog.String("run_id", summary.RunID))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("force", false, "Reprocess archives that already have a composite")
	runCmd.Flags().Bool("tui", false, "Show a terminal progress view; logs go to "+tuiLogFile)
}
