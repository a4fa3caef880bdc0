package cmd

import (
	"log/slog"
	"testing"

	"github.com/brensch/s2composite/internal/config"
	"github.com/brensch/s2composite/internal/raster"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	d := config.Defaults()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("output-dir", d.OutputDir, "")
	fs.Int("max-concurrent", d.MaxConcurrent, "")
	fs.StringSlice("band", nil, "")
	fs.String("output-type", d.OutputDataType.String(), "")
	fs.String("resampling", d.Resampling.String(), "")
	fs.Bool("force", false, "")
	return fs
}

func TestApplyFlags_OnlyChangedFlagsWin(t *testing.T) {
	base := config.Defaults()
	base.OutputDir = "/from/env"
	base.MaxConcurrent = 4

	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--max-concurrent=2", "--band=B02=10m", "--band=B11=20m", "--output-type=Float32", "--force"}))

	cfg, err := applyFlags(fs, base)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.OutputDir)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, []string{"B02", "B11"}, cfg.Bands.Bands())
	assert.Equal(t, raster.Float32, cfg.OutputDataType)
	assert.True(t, cfg.Force)
}

func TestApplyFlags_Errors(t *testing.T) {
	fs := testFlags()
	require.NoError(t, fs.Parse([]string{"--resampling=lanczos", "--band=B02"}))

	_, err := applyFlags(fs, config.Defaults())
	assert.ErrorContains(t, err, "--resampling")
	assert.ErrorContains(t, err, "--band")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
