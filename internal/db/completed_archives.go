package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// GetCompletedArchives returns, for every archive with a catalogued
// composite, the path that composite was written to. The map key is the
// archive base name as logged by the orchestrator.
func GetCompletedArchives(ctx context.Context, dbConn *sql.DB, logger *slog.Logger) (map[string]string, error) {
	logger.Debug("Querying database for completed archives...")
	completed := make(map[string]string)

	query := `SELECT archive, output_path FROM composite_catalog;`
	rows, err := dbConn.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query for completed archives", "error", err, "query", query)
		return nil, fmt.Errorf("query completed archives: %w", err)
	}
	defer rows.Close()

	var scanErrors error
	for rows.Next() {
		var archive, outputPath string
		if err := rows.Scan(&archive, &outputPath); err != nil {
			logger.Error("Failed to scan completed archive", "error", err)
			scanErrors = errors.Join(scanErrors, fmt.Errorf("scan completed archive: %w", err))
			continue
		}
		if archive != "" {
			completed[archive] = outputPath
		}
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error iterating over completed archive query results", "error", err)
		scanErrors = errors.Join(scanErrors, fmt.Errorf("iterate completed archives: %w", err))
		return completed, scanErrors
	}

	logger.Debug("Found completed archives in DB.", slog.Int("count", len(completed)))
	return completed, scanErrors
}
