package archive

import (
	"archive/zip"
	"context"
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

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestStem(t *testing.T) {
	assert.Equal(t, "S2A_MSIL2A_20230601", Stem("/in/S2A_MSIL2A_20230601.zip"))
	assert.Equal(t, "/out/S2A", ExtractDir("/out", "/in/S2A.zip"))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.zip", "a.ZIP", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.zip"), 0o755))

	got, err := List(dir, ".zip")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.ZIP"), filepath.Join(dir, "b.zip")}, got)

	_, err = List(filepath.Join(dir, "missing"), ".zip")
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	zipPath := filepath.Join(in, "product.zip")
	writeZip(t, zipPath, map[string]string{
		"product.SAFE/MTD_MSIL2A.xml":                       "<xml/>",
		"product.SAFE/GRANULE/IMG_DATA/R10m/T_X_B02_10m.jp2": "pixels",
	})

	dest, err := Extract(context.Background(), zipPath, out, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "product"), dest)

	b, err := os.ReadFile(filepath.Join(dest, "product.SAFE", "GRANULE", "IMG_DATA", "R10m", "T_X_B02_10m.jp2"))
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(b))

	// A second extraction overwrites in place.
	_, err = Extract(context.Background(), zipPath, out, discardLogger())
	require.NoError(t, err)
}

func TestExtract_RejectsTraversal(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	zipPath := filepath.Join(in, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"../escape.txt": "x",
		"ok.txt":        "y",
	})

	dest, err := Extract(context.Background(), zipPath, out, discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.FileExists(t, filepath.Join(dest, "ok.txt"))
	assert.NoFileExists(t, filepath.Join(out, "escape.txt"))
}

func TestExtract_NotAZip(t *testing.T) {
	in := t.TempDir()
	p := filepath.Join(in, "broken.zip")
	require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))

	_, err := Extract(context.Background(), p, t.TempDir(), discardLogger())
	assert.Error(t, err)
}
