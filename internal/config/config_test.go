package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/s2composite/internal/bands"
	"github.com/brensch/s2composite/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.MaxConcurrent)
	assert.Equal(t, raster.UInt16, cfg.OutputDataType)
	assert.Equal(t, raster.Bilinear, cfg.Resampling)
	assert.True(t, cfg.BigTIFF)
	assert.Equal(t, bands.DefaultSpec(), cfg.Bands)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("S2C_INPUT_DIR", "/data/in")
	t.Setenv("S2C_MAX_CONCURRENT", "3")
	t.Setenv("S2C_BANDS", "B02=10m, B8A=20m")
	t.Setenv("S2C_OUTPUT_DATA_TYPE", "float32")
	t.Setenv("S2C_RESAMPLING", "cubic")
	t.Setenv("S2C_BIGTIFF", "false")
	t.Setenv("S2C_FEED_URLS", "https://a.example/index/, https://b.example/")

	cfg, err := ApplyEnv(Defaults())
	require.NoError(t, err)
	assert.Equal(t, "/data/in", cfg.InputDir)
	assert.Equal(t, "./output_composites", cfg.OutputDir)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, bands.Spec{"B02": "10m", "B8A": "20m"}, cfg.Bands)
	assert.Equal(t, raster.Float32, cfg.OutputDataType)
	assert.Equal(t, raster.Cubic, cfg.Resampling)
	assert.False(t, cfg.BigTIFF)
	assert.Equal(t, []string{"https://a.example/index/", "https://b.example/"}, cfg.FeedURLs)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	t.Setenv("S2C_MAX_CONCURRENT", "many")
	t.Setenv("S2C_RESAMPLING", "lanczos")
	_, err := ApplyEnv(Defaults())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S2C_MAX_CONCURRENT")
	assert.Contains(t, err.Error(), "S2C_RESAMPLING")
}

func TestLoadDotEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("S2C_OUTPUT_DIR=/from/dotenv\n"), 0o644))
	t.Setenv("S2C_OUTPUT_DIR", "")
	os.Unsetenv("S2C_OUTPUT_DIR")

	require.NoError(t, LoadDotEnv(p))
	cfg, err := ApplyEnv(Defaults())
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.OutputDir)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }},
		{"no bands", func(c *Config) { c.Bands = bands.Spec{} }},
		{"reference not in bands", func(c *Config) { c.ReferenceBand = "B01" }},
		{"reference wrong resolution", func(c *Config) { c.ReferenceResolution = "20m" }},
		{"bad archive ext", func(c *Config) { c.ArchiveExt = "zip" }},
		{"unknown data type", func(c *Config) { c.OutputDataType = raster.Unknown }},
		{"same metadata keys", func(c *Config) { c.EndTimeKey = c.StartTimeKey }},
		{"suffix shadows tiles", func(c *Config) { c.ResampledSuffix = "_r.jp2" }},
		{"bad feed url", func(c *Config) { c.FeedURLs = []string{"not a url"} }},
		{"missing input", func(c *Config) { c.InputDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseBands(t *testing.T) {
	spec, err := ParseBands("B02=10m,,B11=20m")
	require.NoError(t, err)
	assert.Equal(t, bands.Spec{"B02": "10m", "B11": "20m"}, spec)

	_, err = ParseBands("B02")
	assert.Error(t, err)
	_, err = ParseBands(" , ")
	assert.Error(t, err)
}

func TestCompositeOptions(t *testing.T) {
	opts := Defaults().CompositeOptions()
	assert.Equal(t, "B02", opts.ReferenceBand)
	assert.Equal(t, ".tif", opts.Extension)
	assert.Equal(t, "system-time_start", opts.StartKey)
	assert.Equal(t, "system-time_end", opts.EndKey)
}
