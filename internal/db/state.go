package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Driver
)

// Event names recorded in composite_event_log.
const (
	EventDiscovered    = "discovered"
	EventDownloadStart = "download_start"
	EventDownloadEnd   = "download_end"
	EventExtractStart  = "extract_start"
	EventExtractEnd    = "extract_end"
	EventProcessStart  = "process_start"
	EventProcessEnd    = "process_end"
	EventError         = "error"
	EventSkipDownload  = "skip_download"
	EventSkipProcess   = "skip_process"
)

// File types. Downloads are logged as archives keyed by URL.
const (
	FileTypeArchive   = "archive"
	FileTypeComposite = "composite"
)

const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS composite_event_log_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS composite_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('composite_event_log_id_seq'),
    run_id          VARCHAR,
    filename        VARCHAR NOT NULL,      -- archive base name or download URL
    filetype        VARCHAR NOT NULL,      -- 'archive', 'composite'
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    output_path     VARCHAR,
    message         VARCHAR,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_composite_event_log_file ON composite_event_log (filename, filetype);
CREATE INDEX IF NOT EXISTS idx_composite_event_log_event_time ON composite_event_log (event, event_timestamp);

CREATE TABLE IF NOT EXISTS composite_catalog (
    archive     VARCHAR PRIMARY KEY,
    output_path VARCHAR NOT NULL,
    bands       VARCHAR NOT NULL,      -- comma separated, composite band order
    band_count  INTEGER NOT NULL,
    width       INTEGER NOT NULL,
    height      INTEGER NOT NULL,
    data_type   VARCHAR NOT NULL,
    projection  VARCHAR,
    start_ms    BIGINT NOT NULL,
    end_ms      BIGINT NOT NULL,
    run_id      VARCHAR,
    created_at  TIMESTAMP NOT NULL
);
`

// InitializeSchema creates the event log and catalog tables. It is safe to
// call on an existing database.
func InitializeSchema(db *sql.DB) error {
	for _, stmt := range []string{schemaSequenceSQL, schemaTableSQL} {
		if _, err := db.Exec(stmt); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("schema setup: %w", err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// Event is one row of the event log.
type Event struct {
	RunID      string
	Filename   string
	FileType   string
	Event      string
	OutputPath string
	Message    string
	Duration   *time.Duration
	Timestamp  time.Time // set on read; LogEvent stamps the current time
}

// HistoryFilter narrows ListEvents. Empty fields match everything.
type HistoryFilter struct {
	FileType string
	Event    string
	Limit    int
}

const eventColumns = `run_id, filename, filetype, event, event_timestamp, output_path, message, duration_ms`

func nullable(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

// LogEvent appends e to the log, stamped with the current UTC time.
func LogEvent(ctx context.Context, db *sql.DB, e Event) error {
	var durationMs sql.NullInt64
	if e.Duration != nil {
		durationMs = sql.NullInt64{Int64: e.Duration.Milliseconds(), Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO composite_event_log (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(e.RunID), e.Filename, e.FileType, e.Event, time.Now().UTC(),
		nullable(e.OutputPath), nullable(e.Message), durationMs,
	)
	if err != nil {
		return fmt.Errorf("log %s for %s: %w", e.Event, e.Filename, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (Event, error) {
	var e Event
	var runID, outputPath, msg sql.NullString
	var durationMs sql.NullInt64
	if err := r.Scan(&runID, &e.Filename, &e.FileType, &e.Event, &e.Timestamp, &outputPath, &msg, &durationMs); err != nil {
		return Event{}, err
	}
	e.RunID, e.OutputPath, e.Message = runID.String, outputPath.String, msg.String
	if durationMs.Valid {
		d := time.Duration(durationMs.Int64) * time.Millisecond
		e.Duration = &d
	}
	return e, nil
}

// GetLatestEvent returns the newest event for filename. found is false when
// the file has never been logged.
func GetLatestEvent(ctx context.Context, db *sql.DB, filename, filetype string) (e Event, found bool, err error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM composite_event_log
		WHERE filename = ? AND filetype = ?
		ORDER BY event_timestamp DESC, log_id DESC LIMIT 1`, filename, filetype)
	e, err = scanEvent(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Event{}, false, nil
	case err != nil:
		return Event{}, false, fmt.Errorf("latest event for %s (%s): %w", filename, filetype, err)
	}
	return e, true, nil
}

// ListEvents returns logged events newest first.
func ListEvents(ctx context.Context, db *sql.DB, f HistoryFilter) ([]Event, error) {
	var where []string
	var args []any
	if f.FileType != "" {
		where = append(where, "filetype = ?")
		args = append(args, f.FileType)
	}
	if f.Event != "" {
		where = append(where, "event = ?")
		args = append(args, f.Event)
	}
	q := `SELECT ` + eventColumns + ` FROM composite_event_log`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY event_timestamp DESC, log_id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query event log: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event log: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// PrintHistory writes events as an aligned table.
func PrintHistory(w io.Writer, events []Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTYPE\tEVENT\tTIME (UTC)\tMS\tRUN\tDETAILS")
	for _, e := range events {
		ms := "-"
		if e.Duration != nil {
			ms = fmt.Sprint(e.Duration.Milliseconds())
		}
		run := e.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		details := e.Message
		if e.OutputPath != "" {
			details = strings.TrimSpace(details + " -> " + filepath.Base(e.OutputPath))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Filename, e.FileType, e.Event, e.Timestamp.UTC().Format(time.RFC3339), ms, run, details)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d records\n", len(events))
	return err
}
