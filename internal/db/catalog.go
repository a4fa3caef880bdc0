package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CatalogEntry is one finalised composite.
type CatalogEntry struct {
	Archive    string
	OutputPath string
	Bands      []string
	Width      int
	Height     int
	DataType   string
	Projection string
	StartMS    int64
	EndMS      int64
	RunID      string
	CreatedAt  time.Time
}

// RecordComposite upserts the catalog row for e.Archive; a rerun replaces it.
func RecordComposite(ctx context.Context, db *sql.DB, e CatalogEntry) error {
	query := `
        INSERT OR REPLACE INTO composite_catalog
            (archive, output_path, bands, band_count, width, height, data_type, projection, start_ms, end_ms, run_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, query,
		e.Archive,
		e.OutputPath,
		strings.Join(e.Bands, ","),
		len(e.Bands),
		e.Width,
		e.Height,
		e.DataType,
		sql.NullString{String: e.Projection, Valid: e.Projection != ""},
		e.StartMS,
		e.EndMS,
		sql.NullString{String: e.RunID, Valid: e.RunID != ""},
		created,
	)
	if err != nil {
		return fmt.Errorf("failed to record composite for '%s': %w", e.Archive, err)
	}
	return nil
}

// ListCatalog returns every catalogued composite ordered by acquisition start.
func ListCatalog(ctx context.Context, db *sql.DB) ([]CatalogEntry, error) {
	query := `
        SELECT archive, output_path, bands, width, height, data_type, projection, start_ms, end_ms, run_id, created_at
        FROM composite_catalog
        ORDER BY start_ms, archive;
    `
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var out []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		var bandList string
		var projection, runID sql.NullString
		if err := rows.Scan(&e.Archive, &e.OutputPath, &bandList, &e.Width, &e.Height, &e.DataType,
			&projection, &e.StartMS, &e.EndMS, &runID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		if bandList != "" {
			e.Bands = strings.Split(bandList, ",")
		}
		e.Projection, e.RunID = projection.String, runID.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return out, nil
}

// Recorder binds a connection to one run so pipeline code can log without
// threading the run id through every call.
type Recorder struct {
	DB    *sql.DB
	RunID string
}

func NewRecorder(dbConn *sql.DB, runID string) *Recorder {
	return &Recorder{DB: dbConn, RunID: runID}
}

func (r *Recorder) LogEvent(ctx context.Context, e Event) error {
	if e.RunID == "" {
		e.RunID = r.RunID
	}
	return LogEvent(ctx, r.DB, e)
}

func (r *Recorder) CompletedArchives(ctx context.Context, logger *slog.Logger) (map[string]string, error) {
	return GetCompletedArchives(ctx, r.DB, logger)
}

func (r *Recorder) RecordComposite(ctx context.Context, e CatalogEntry) error {
	if e.RunID == "" {
		e.RunID = r.RunID
	}
	return RecordComposite(ctx, r.DB, e)
}
