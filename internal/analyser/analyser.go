// Package analyser summarises an exported composite catalog with DuckDB.
package analyser

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// DayCount is the number of composites acquired on one UTC day.
type DayCount struct {
	Day        string
	Composites int64
}

// BandSetCount is the number of composites sharing one band list.
type BandSetCount struct {
	Bands      string
	Composites int64
}

// Report is the catalog summary `analyse` prints.
type Report struct {
	Composites int64
	FirstMS    int64
	LastMS     int64
	PerDay     []DayCount
	BandSets   []BandSetCount
}

// Span is the time between the earliest acquisition start and the latest end.
func (r Report) Span() time.Duration {
	return time.Duration(r.LastMS-r.FirstMS) * time.Millisecond
}

// Analyse reads the catalog Parquet file at catalogPath through a temporary
// read_parquet view, so the state database is left untouched.
func Analyse(ctx context.Context, dbConn *sql.DB, catalogPath string, logger *slog.Logger) (Report, error) {
	var r Report

	// Temp views are per connection; pin one.
	conn, err := dbConn.Conn(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to get connection from pool: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `LOAD parquet;`); err != nil {
		// Statically linked builds already carry it.
		logger.Warn("Could not load parquet extension, continuing.", "error", err)
	}

	duckPath := strings.ReplaceAll(strings.ReplaceAll(catalogPath, `\`, `/`), "'", "''")
	viewSQL := fmt.Sprintf(`CREATE OR REPLACE TEMP VIEW catalog AS SELECT * FROM read_parquet('%s');`, duckPath)
	if _, err := conn.ExecContext(ctx, viewSQL); err != nil {
		return r, fmt.Errorf("create catalog view over %s: %w", catalogPath, err)
	}
	logger.Debug("Catalog view created.", slog.String("path", catalogPath))

	var first, last sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*), MIN(start_ms), MAX(end_ms) FROM catalog;`).Scan(&r.Composites, &first, &last); err != nil {
		return r, fmt.Errorf("count composites: %w", err)
	}
	r.FirstMS, r.LastMS = first.Int64, last.Int64

	rows, err := conn.QueryContext(ctx, `
        SELECT strftime(epoch_ms(start_ms), '%Y-%m-%d') AS day, COUNT(*) AS n
        FROM catalog GROUP BY day ORDER BY day;`)
	if err != nil {
		return r, fmt.Errorf("composites per day: %w", err)
	}
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Day, &d.Composites); err != nil {
			rows.Close()
			return r, fmt.Errorf("scan day row: %w", err)
		}
		r.PerDay = append(r.PerDay, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return r, err
	}
	rows.Close()

	rows, err = conn.QueryContext(ctx, `
        SELECT bands, COUNT(*) AS n
        FROM catalog GROUP BY bands ORDER BY n DESC, bands;`)
	if err != nil {
		return r, fmt.Errorf("band sets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b BandSetCount
		if err := rows.Scan(&b.Bands, &b.Composites); err != nil {
			return r, fmt.Errorf("scan band set row: %w", err)
		}
		r.BandSets = append(r.BandSets, b)
	}
	return r, rows.Err()
}

// Print writes r as aligned tables.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Composites: %d\n", r.Composites)
	if r.Composites == 0 {
		return
	}
	fmt.Fprintf(w, "Acquired:   %s .. %s (%s)\n",
		time.UnixMilli(r.FirstMS).UTC().Format(time.RFC3339),
		time.UnixMilli(r.LastMS).UTC().Format(time.RFC3339),
		r.Span().Round(time.Second))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nDAY\tCOMPOSITES")
	for _, d := range r.PerDay {
		fmt.Fprintf(tw, "%s\t%d\n", d.Day, d.Composites)
	}
	fmt.Fprintln(tw, "\nBANDS\tCOMPOSITES")
	for _, b := range r.BandSets {
		fmt.Fprintf(tw, "%s\t%d\n", b.Bands, b.Composites)
	}
	tw.Flush()
}
