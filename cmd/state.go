package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brensch/s2composite/internal/db"

	"github.com/spf13/cobra"
)

var stateLimit int
var stateEvent string
var stateFile string

var stateCmd = &cobra.Command{
	Use:   "state [archives|composites]",
	Short: "View the event log history",
	Long: `Queries the DuckDB event log and displays recent events, newest first.
Pass 'archives' or 'composites' to filter by file type and --event to filter by event.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		fileTypeFilter := ""
		if len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "archives", "archive":
				fileTypeFilter = db.FileTypeArchive
			case "composites", "composite":
				fileTypeFilter = db.FileTypeComposite
			default:
				return fmt.Errorf("invalid filetype filter: %s (use 'archives' or 'composites')", args[0])
			}
		}

		if stateFile != "" {
			return showLatest(cmd, stateFile, fileTypeFilter)
		}

		logger.Debug("Querying database event log", "type_filter", fileTypeFilter, "event_filter", stateEvent, "limit", stateLimit)
		events, err := db.ListEvents(cmd.Context(), getDB(), db.HistoryFilter{FileType: fileTypeFilter, Event: stateEvent, Limit: stateLimit})
		if err != nil {
			logger.Error("Failed to read state history", "error", err)
			return err
		}
		return db.PrintHistory(cmd.OutOrStdout(), events)
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of log records displayed")
	stateCmd.Flags().StringVarP(&stateFile, "file", "f", "", "Show only the latest event for this archive, composite or URL")
	stateCmd.Flags().StringVarP(&stateEvent, "event", "e", "", "Filter records by event (e.g. process_end, error, download_end)")
}

func showLatest(cmd *cobra.Command, name, fileType string) error {
	if fileType == "" {
		fileType = db.FileTypeArchive
	}
	e, found, err := db.GetLatestEvent(context.Background(), getDB(), name, fileType)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !found {
		fmt.Fprintf(out, "%s: no %s events\n", name, fileType)
		return nil
	}
	fmt.Fprintf(out, "%s: %s at %s (run %s)\n", name, e.Event, e.Timestamp.UTC().Format(time.RFC3339), e.RunID)
	if e.OutputPath != "" {
		fmt.Fprintf(out, "  output: %s\n", e.OutputPath)
	}
	if e.Message != "" {
		fmt.Fprintf(out, "  message: %s\n", e.Message)
	}
	return nil
}
