// Package saver exports the state database to Parquet files.
package saver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/brensch/s2composite/internal/catalog"
	"github.com/brensch/s2composite/internal/db"

	_ "github.com/marcboeker/go-duckdb" // Register DuckDB driver
)

// DefaultTables are the state tables `save` exports next to the catalog.
var DefaultTables = []string{"composite_event_log"}

// ExportTables copies each table to <outputDir>/<table>.parquet with
// DuckDB's COPY TO. Tables are exported concurrently; failures are joined.
func ExportTables(ctx context.Context, dbConn *sql.DB, outputDir string, tables []string, logger *slog.Logger) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory '%s': %w", outputDir, err)
	}
	if len(tables) == 0 {
		logger.Info("No tables to export.")
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, table := range tables {
		if ctx.Err() != nil {
			logger.Warn("Context cancelled before exporting all tables.", "error", ctx.Err())
			break
		}
		wg.Add(1)
		go func(tn string) {
			defer wg.Done()
			path, err := exportTable(ctx, dbConn, outputDir, tn)
			l := logger.With(slog.String("table", tn))
			if err != nil {
				l.Error("Failed to export table.", "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("export %s: %w", tn, err))
				mu.Unlock()
				return
			}
			l.Info("Exported table to Parquet.", slog.String("output_path", path))
		}(table)
	}
	wg.Wait()

	return errors.Join(append(errs, ctx.Err())...)
}

func exportTable(ctx context.Context, dbConn *sql.DB, outputDir, table string) (string, error) {
	safe := strings.NewReplacer(`"`, "", "/", "_", `\`, "_").Replace(table)
	outPath := filepath.Join(outputDir, safe+".parquet")
	// DuckDB wants forward slashes and doubled single quotes.
	duckPath := strings.ReplaceAll(filepath.ToSlash(outPath), "'", "''")
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`

	copySQL := fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET);`, quoted, duckPath)
	if _, err := dbConn.ExecContext(ctx, copySQL); err != nil {
		return "", err
	}
	return outPath, nil
}

// SaveCatalog writes every catalogued composite to <outputDir>/catalog.parquet
// and returns the file path.
func SaveCatalog(ctx context.Context, dbConn *sql.DB, outputDir string, logger *slog.Logger) (string, error) {
	entries, err := db.ListCatalog(ctx, dbConn)
	if err != nil {
		return "", err
	}
	records := make([]catalog.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, catalog.FromEntry(e))
	}
	path := filepath.Join(outputDir, catalog.FileName)
	if err := catalog.Write(path, records, logger); err != nil {
		return "", err
	}
	return path, nil
}

// Save writes the catalog and the state tables. Both steps run even if one
// fails.
func Save(ctx context.Context, dbConn *sql.DB, outputDir string, logger *slog.Logger) error {
	logger.Info("--- Starting state export ---", slog.String("dir", outputDir))
	_, catErr := SaveCatalog(ctx, dbConn, outputDir, logger)
	tblErr := ExportTables(ctx, dbConn, outputDir, DefaultTables, logger)
	if err := errors.Join(catErr, tblErr); err != nil {
		logger.Error("Export completed with errors.", "error", err)
		return err
	}
	logger.Info("--- State export finished ---")
	return nil
}
