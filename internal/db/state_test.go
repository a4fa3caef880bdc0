package db

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, InitializeSchema(conn))
	return conn
}

func TestInitializeSchema_Idempotent(t *testing.T) {
	conn := openTestDB(t)
	assert.NoError(t, InitializeSchema(conn))
}

func TestLogEvent_LatestWins(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)

	require.NoError(t, LogEvent(ctx, conn, Event{RunID: "run-1", Filename: "a.zip", FileType: FileTypeArchive, Event: EventProcessStart}))
	d := 1500 * time.Millisecond
	require.NoError(t, LogEvent(ctx, conn, Event{RunID: "run-1", Filename: "a.zip", FileType: FileTypeArchive, Event: EventProcessEnd, OutputPath: "/out/a.tif", Duration: &d}))

	e, found, err := GetLatestEvent(ctx, conn, "a.zip", FileTypeArchive)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, EventProcessEnd, e.Event)
	assert.Equal(t, "/out/a.tif", e.OutputPath)
	assert.Equal(t, "run-1", e.RunID)
	require.NotNil(t, e.Duration)
	assert.Equal(t, d, *e.Duration)

	_, found, err = GetLatestEvent(ctx, conn, "b.zip", FileTypeArchive)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCatalog_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	rec := NewRecorder(conn, "run-2")

	require.NoError(t, rec.RecordComposite(ctx, CatalogEntry{
		Archive: "b.zip", OutputPath: "/out/b.tif", Bands: []string{"B02", "B03"},
		Width: 4, Height: 4, DataType: "UInt16", StartMS: 200, EndMS: 300,
	}))
	require.NoError(t, rec.RecordComposite(ctx, CatalogEntry{
		Archive: "a.zip", OutputPath: "/out/a.tif", Bands: []string{"B02"},
		Width: 4, Height: 4, DataType: "UInt16", StartMS: 100, EndMS: 150,
	}))
	// Rerun replaces the row.
	require.NoError(t, rec.RecordComposite(ctx, CatalogEntry{
		Archive: "b.zip", OutputPath: "/out/b.tif", Bands: []string{"B02", "B03", "B04"},
		Width: 4, Height: 4, DataType: "UInt16", StartMS: 200, EndMS: 300,
	}))

	entries, err := ListCatalog(ctx, conn)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.zip", entries[0].Archive)
	assert.Equal(t, []string{"B02", "B03", "B04"}, entries[1].Bands)
	assert.Equal(t, "run-2", entries[1].RunID)

	completed, err := GetCompletedArchives(ctx, conn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.zip": "/out/a.tif", "b.zip": "/out/b.tif"}, completed)
}

func TestRecorder_StampsRunID(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	rec := NewRecorder(conn, "run-3")
	require.NoError(t, rec.LogEvent(ctx, Event{Filename: "c.zip", FileType: FileTypeArchive, Event: EventError, Message: "boom"}))

	e, found, err := GetLatestEvent(ctx, conn, "c.zip", FileTypeArchive)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "run-3", e.RunID)
	assert.Equal(t, "boom", e.Message)
}

func TestListEvents_Filters(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	d := 250 * time.Millisecond
	require.NoError(t, LogEvent(ctx, conn, Event{Filename: "a.zip", FileType: FileTypeArchive, Event: EventProcessStart}))
	require.NoError(t, LogEvent(ctx, conn, Event{Filename: "a.zip", FileType: FileTypeArchive, Event: EventProcessEnd, Duration: &d, OutputPath: "/out/a.tif"}))
	require.NoError(t, LogEvent(ctx, conn, Event{Filename: "a.tif", FileType: FileTypeComposite, Event: EventProcessEnd}))

	all, err := ListEvents(ctx, conn, HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := ListEvents(ctx, conn, HistoryFilter{FileType: FileTypeArchive, Event: EventProcessEnd, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/out/a.tif", got[0].OutputPath)
	require.NotNil(t, got[0].Duration)
	assert.Equal(t, d, *got[0].Duration)

	limited, err := ListEvents(ctx, conn, HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	var buf bytes.Buffer
	require.NoError(t, PrintHistory(&buf, got))
	assert.Contains(t, buf.String(), "a.zip")
	assert.Contains(t, buf.String(), "-> a.tif")
	assert.Contains(t, buf.String(), "1 records")
}
