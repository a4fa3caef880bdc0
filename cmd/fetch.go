package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/brensch/s2composite/internal/db"
	"github.com/brensch/s2composite/internal/downloader"
	"github.com/google/uuid"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download archives listed on the configured index pages",
	Long: `Reads every --feed-url page, collects the links ending in --archive-ext and
downloads the ones not already in the input directory, one at a time.
Use --force to download everything again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		force, _ := cmd.Flags().GetBool("force")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		f := downloader.New(db.NewRecorder(getDB(), uuid.NewString()), getLogger())
		res, err := f.Fetch(ctx, cfg, force)
		fmt.Fprintf(cmd.OutOrStdout(), "fetch: %d discovered, %d downloaded, %d present, %d failed\n",
			res.Discovered, res.Downloaded, res.Skipped, res.Failed)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().Bool("force", false, "Download archives even if already present")
}
