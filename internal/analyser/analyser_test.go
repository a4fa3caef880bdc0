package analyser

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/brensch/s2composite/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), catalog.FileName)
	require.NoError(t, catalog.Write(path, []catalog.Record{
		{Archive: "a.zip", Bands: "B02,B03", BandCount: 2, StartMS: 1685585730123, EndMS: 1685585759024},
		{Archive: "b.zip", Bands: "B02,B03", BandCount: 2, StartMS: 1685590000000, EndMS: 1685590030000},
		{Archive: "c.zip", Bands: "B02", BandCount: 1, StartMS: 1685672130000, EndMS: 1685672159000},
	}, logger))

	conn, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer conn.Close()

	r, err := Analyse(context.Background(), conn, path, logger)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.Composites)
	assert.Equal(t, int64(1685585730123), r.FirstMS)
	assert.Equal(t, int64(1685672159000), r.LastMS)
	assert.Equal(t, []DayCount{{"2023-06-01", 2}, {"2023-06-02", 1}}, r.PerDay)
	assert.Equal(t, []BandSetCount{{"B02,B03", 2}, {"B02", 1}}, r.BandSets)
	assert.Equal(t, 86428877*time.Millisecond, r.Span())

	var buf bytes.Buffer
	r.Print(&buf)
	assert.Contains(t, buf.String(), "Composites: 3")
	assert.Contains(t, buf.String(), "2023-06-02")
}

func TestAnalyse_MissingCatalog(t *testing.T) {
	conn, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer conn.Close()

	_, err = Analyse(context.Background(), conn, filepath.Join(t.TempDir(), "absent.parquet"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
