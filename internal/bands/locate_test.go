package bands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func touch(t *testing.T, root string, rel string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	return p
}

func TestParseTileName(t *testing.T) {
	tests := []struct {
		name     string
		band     string
		res      string
		wantOkay bool
	}{
		{"T46RGV_20230601T041459_B02_10m.jp2", "B02", "10m", true},
		{"T46RGV_20230601T041459_B8A_20m.jp2", "B8A", "20m", true},
		{"MTD_MSIL2A.xml", "", "", false},
		{"B02_10m.jp2", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band, res, ok := ParseTileName(tt.name)
			assert.Equal(t, tt.wantOkay, ok)
			assert.Equal(t, tt.band, band)
			assert.Equal(t, tt.res, res)
		})
	}
}

func TestLocate_SelectsConfiguredResolutionOnly(t *testing.T) {
	root := t.TempDir()
	b02 := touch(t, root, "GRANULE/L2A/IMG_DATA/R10m/T46RGV_X_B02_10m.jp2")
	touch(t, root, "GRANULE/L2A/IMG_DATA/R20m/T46RGV_X_B02_20m.jp2")
	touch(t, root, "GRANULE/L2A/IMG_DATA/R60m/T46RGV_X_B02_60m.jp2")
	b11 := touch(t, root, "GRANULE/L2A/IMG_DATA/R20m/T46RGV_X_B11_20m.jp2")
	touch(t, root, "GRANULE/L2A/IMG_DATA/R60m/T46RGV_X_B11_60m.jp2")
	touch(t, root, "GRANULE/L2A/IMG_DATA/R20m/T46RGV_X_B05_20m.jp2")
	touch(t, root, "GRANULE/L2A/IMG_DATA/R20m/T46RGV_X_B11_20m_resampled.tif")
	touch(t, root, "MTD_MSIL2A.xml")

	spec := Spec{"B02": "10m", "B11": "20m", "B12": "20m"}
	table, err := Locate(root, spec, ".jp2", discardLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"B02", "B11"}, table.Bands())
	p, ok := table.Path("B02")
	require.True(t, ok)
	assert.Equal(t, b02, p)
	p, ok = table.Path("B11")
	require.True(t, ok)
	assert.Equal(t, b11, p)
	_, ok = table.Path("B12")
	assert.False(t, ok)
}

func TestLocate_SortedRegardlessOfLayout(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a/T_X_B12_20m.jp2")
	touch(t, root, "b/T_X_B03_10m.jp2")
	touch(t, root, "c/T_X_B08_10m.jp2")
	touch(t, root, "d/T_X_B02_10m.jp2")

	table, err := Locate(root, DefaultSpec(), ".jp2", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"B02", "B03", "B08", "B12"}, table.Bands())
}

func TestLocate_DuplicateFirstWins(t *testing.T) {
	root := t.TempDir()
	first := touch(t, root, "a/T1_X_B02_10m.jp2")
	touch(t, root, "b/T2_X_B02_10m.jp2")

	table, err := Locate(root, Spec{"B02": "10m"}, ".jp2", discardLogger())
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	p, _ := table.Path("B02")
	assert.Equal(t, first, p)
}

func TestLocate_EmptyIsNotAnError(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "MTD_MSIL2A.xml")
	touch(t, root, "x/T_X_B01_60m.jp2")

	table, err := Locate(root, DefaultSpec(), ".jp2", discardLogger())
	require.NoError(t, err)
	assert.True(t, table.Empty())
}

func TestLocate_MissingRoot(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "missing"), DefaultSpec(), ".jp2", discardLogger())
	assert.Error(t, err)
}

func TestNewTable(t *testing.T) {
	table := NewTable(
		Entry{Band: "B11", Resolution: "20m", Path: "/b11"},
		Entry{Band: "B02", Resolution: "10m", Path: "/b02"},
		Entry{Band: "B02", Resolution: "10m", Path: "/dup"},
	)
	assert.Equal(t, []string{"B02", "B11"}, table.Bands())
	p, _ := table.Path("B02")
	assert.Equal(t, "/b02", p)
}

func TestSpec(t *testing.T) {
	spec := DefaultSpec()
	assert.Equal(t, []string{"B02", "B03", "B04", "B08", "B11", "B12"}, spec.Bands())
	assert.Equal(t, "B02=10m,B03=10m,B04=10m,B08=10m,B11=20m,B12=20m", spec.String())

	parsed, err := ParseSpec(map[string]string{" B02 ": "10m"})
	require.NoError(t, err)
	res, ok := parsed.Resolution("B02")
	assert.True(t, ok)
	assert.Equal(t, "10m", res)

	_, err = ParseSpec(map[string]string{"B_02": "10m"})
	assert.Error(t, err)
}
