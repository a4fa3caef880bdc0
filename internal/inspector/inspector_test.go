package inspector

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/s2composite/internal/raster"
	"github.com/brensch/s2composite/internal/raster/memraster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	startKey = "system-time_start"
	endKey   = "system-time_end"
)

func put(t *testing.T, d *memraster.Driver, path string, labels []string, meta map[string]string) {
	t.Helper()
	g := raster.Grid{
		Width: 2, Height: 2, BandCount: len(labels), DataType: raster.UInt16,
		Projection: "LOCAL_CS", GeoTransform: [6]float64{0, 10, 0, 0, 0, -10},
	}
	pixels := make([][]float64, len(labels))
	for i := range pixels {
		pixels[i] = make([]float64, g.Pixels())
	}
	require.NoError(t, d.Put(path, g, pixels...))
	ds, err := d.Open(path)
	require.NoError(t, err)
	for i, l := range labels {
		require.NoError(t, ds.SetDescription(i+1, l))
	}
	for k, v := range meta {
		require.NoError(t, ds.SetMetadata(k, v))
	}
	require.NoError(t, ds.Close())
}

func TestDescribe(t *testing.T) {
	d := memraster.New()
	put(t, d, "/out/good.tif", []string{"B02", "B03"}, map[string]string{startKey: "1685585730123", endKey: "1685585759024"})
	put(t, d, "/out/partial.tif", []string{"B02", ""}, map[string]string{startKey: "1685585759024", endKey: "1685585730123"})
	put(t, d, "/out/bare.tif", []string{"B02"}, nil)

	s, err := Describe(d, "/out/good.tif", startKey, endKey)
	require.NoError(t, err)
	assert.True(t, s.Complete())
	assert.Equal(t, []string{"B02", "B03"}, s.Bands)
	assert.Equal(t, int64(1685585730123), s.StartMS)

	s, err = Describe(d, "/out/partial.tif", startKey, endKey)
	require.NoError(t, err)
	assert.False(t, s.Complete())
	assert.Len(t, s.Problems, 2)

	s, err = Describe(d, "/out/bare.tif", startKey, endKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"missing or invalid " + startKey, "missing or invalid " + endKey}, s.Problems)

	_, err = Describe(d, "/out/absent.tif", startKey, endKey)
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	d := memraster.New()
	put(t, d, "/out/good.tif", []string{"B02", "B03"}, map[string]string{startKey: "1685585730123", endKey: "1685585759024"})

	var buf bytes.Buffer
	summaries, err := Inspect(d, []string{"/out/good.tif", "/out/absent.tif"}, startKey, endKey, &buf, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
	require.Len(t, summaries, 1)
	assert.Contains(t, buf.String(), "good.tif")
	assert.Contains(t, buf.String(), "B02,B03")
	assert.Contains(t, buf.String(), "2023-06-01T02:15:30.123Z")
}

func TestFindComposites(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.tif", "a.tif", "catalog.parquet"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "x_resampled.tif"), nil, 0o644))

	got, err := FindComposites(dir, ".tif")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.tif"), filepath.Join(dir, "b.tif")}, got)
}
