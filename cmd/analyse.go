package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/brensch/s2composite/internal/analyser"
	"github.com/brensch/s2composite/internal/catalog"

	"github.com/spf13/cobra"
)

var analyseCatalog string

var analyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "Summarise an exported catalog with DuckDB",
	Long: `Reads catalog.parquet (written by 'save') through DuckDB and prints the number
of composites, the acquisition span, composites per UTC day and the band sets in use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := analyseCatalog
		if path == "" {
			path = filepath.Join(getConfig().OutputDir, catalog.FileName)
		}
		report, err := analyser.Analyse(context.Background(), getDB(), path, getLogger())
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
		report.Print(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	analyseCmd.Flags().StringVar(&analyseCatalog, "catalog", "", "Catalog Parquet file (default: <output-dir>/"+catalog.FileName+")")
}
