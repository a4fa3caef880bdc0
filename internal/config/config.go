package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/brensch/s2composite/internal/bands"
	"github.com/brensch/s2composite/internal/composite"
	"github.com/brensch/s2composite/internal/raster"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "S2C_"

// Defaults for the Sentinel-2 L2A product family.
const (
	DefaultMaxConcurrent       = 10
	DefaultReferenceBand       = "B02"
	DefaultReferenceResolution = "10m"
	DefaultArchiveExt          = ".zip"
	DefaultTileExt             = ".jp2"
	DefaultMetadataFile        = "MTD_MSIL2A.xml"
	DefaultResampledSuffix     = "_resampled.tif"
	DefaultCompositeExt        = ".tif"
	DefaultStartTimeKey        = "system-time_start"
	DefaultEndTimeKey          = "system-time_end"
)

// DefaultFeedURLs are the archive index pages `fetch` scans when no
// --feed-url is given. Empty: every deployment points at its own mirror.
var DefaultFeedURLs []string

// Config holds application settings. It is built once at start-up and
// shared read-only by every archive task.
type Config struct {
	InputDir  string `validate:"required"`
	OutputDir string `validate:"required"`
	DbPath    string `validate:"required"`

	MaxConcurrent int `validate:"min=1,max=1024"`

	Bands               bands.Spec `validate:"required,min=1"`
	ReferenceBand       string     `validate:"required"`
	ReferenceResolution string     `validate:"required"`

	ArchiveExt      string `validate:"required,startswith=."`
	TileExt         string `validate:"required,startswith=."`
	MetadataFile    string `validate:"required"`
	ResampledSuffix string `validate:"required"`
	CompositeExt    string `validate:"required,startswith=."`

	OutputDataType raster.DataType `validate:"gt=0"`
	Resampling     raster.Resampling
	BigTIFF        bool

	StartTimeKey string `validate:"required"`
	EndTimeKey   string `validate:"required,nefield=StartTimeKey"`

	FeedURLs []string `validate:"dive,url"`
	Force    bool
}

// Defaults returns a Config with every default applied. Directories are
// relative to the working directory.
func Defaults() Config {
	return Config{
		InputDir:            "./input_archives",
		OutputDir:           "./output_composites",
		DbPath:              "./s2composite_state.duckdb",
		MaxConcurrent:       DefaultMaxConcurrent,
		Bands:               bands.DefaultSpec(),
		ReferenceBand:       DefaultReferenceBand,
		ReferenceResolution: DefaultReferenceResolution,
		ArchiveExt:          DefaultArchiveExt,
		TileExt:             DefaultTileExt,
		MetadataFile:        DefaultMetadataFile,
		ResampledSuffix:     DefaultResampledSuffix,
		CompositeExt:        DefaultCompositeExt,
		OutputDataType:      raster.UInt16,
		Resampling:          raster.Bilinear,
		BigTIFF:             true,
		StartTimeKey:        DefaultStartTimeKey,
		EndTimeKey:          DefaultEndTimeKey,
		FeedURLs:            DefaultFeedURLs,
	}
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays S2C_* environment variables onto base.
func ApplyEnv(base Config) (Config, error) {
	cfg := base
	var errs []error

	cfg.InputDir = getenvDefault("INPUT_DIR", cfg.InputDir)
	cfg.OutputDir = getenvDefault("OUTPUT_DIR", cfg.OutputDir)
	cfg.DbPath = getenvDefault("DB_PATH", cfg.DbPath)
	cfg.ReferenceBand = getenvDefault("REFERENCE_BAND", cfg.ReferenceBand)
	cfg.ReferenceResolution = getenvDefault("REFERENCE_RESOLUTION", cfg.ReferenceResolution)
	cfg.ArchiveExt = getenvDefault("ARCHIVE_EXT", cfg.ArchiveExt)
	cfg.TileExt = getenvDefault("TILE_EXT", cfg.TileExt)
	cfg.MetadataFile = getenvDefault("METADATA_FILE", cfg.MetadataFile)
	cfg.ResampledSuffix = getenvDefault("RESAMPLED_SUFFIX", cfg.ResampledSuffix)
	cfg.CompositeExt = getenvDefault("COMPOSITE_EXT", cfg.CompositeExt)
	cfg.StartTimeKey = getenvDefault("START_TIME_KEY", cfg.StartTimeKey)
	cfg.EndTimeKey = getenvDefault("END_TIME_KEY", cfg.EndTimeKey)

	if v, ok := lookup("MAX_CONCURRENT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %sMAX_CONCURRENT: %w", EnvPrefix, err))
		}
		cfg.MaxConcurrent = n
	}
	if v, ok := lookup("BANDS"); ok {
		spec, err := ParseBands(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %sBANDS: %w", EnvPrefix, err))
		}
		cfg.Bands = spec
	}
	if v, ok := lookup("OUTPUT_DATA_TYPE"); ok {
		dt, err := raster.ParseDataType(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %sOUTPUT_DATA_TYPE: %w", EnvPrefix, err))
		}
		cfg.OutputDataType = dt
	}
	if v, ok := lookup("RESAMPLING"); ok {
		r, err := raster.ParseResampling(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %sRESAMPLING: %w", EnvPrefix, err))
		}
		cfg.Resampling = r
	}
	if v, ok := lookup("BIGTIFF"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %sBIGTIFF: %w", EnvPrefix, err))
		}
		cfg.BigTIFF = b
	}
	if v, ok := lookup("FEED_URLS"); ok {
		cfg.FeedURLs = splitList(v)
	}

	return cfg, errors.Join(errs...)
}

// Validate checks struct constraints and the cross-field rules the pipeline
// relies on.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	var errs []error
	res, ok := c.Bands.Resolution(c.ReferenceBand)
	switch {
	case !ok:
		errs = append(errs, fmt.Errorf("reference band %s is not in the band set %s", c.ReferenceBand, c.Bands))
	case res != c.ReferenceResolution:
		errs = append(errs, fmt.Errorf("reference band %s is configured at %s, want %s", c.ReferenceBand, res, c.ReferenceResolution))
	}
	// Intermediates must never be mistaken for source tiles on a rerun.
	if strings.EqualFold(c.ResampledSuffix, c.TileExt) || strings.HasSuffix(strings.ToLower(c.ResampledSuffix), strings.ToLower(c.TileExt)) {
		errs = append(errs, fmt.Errorf("resampled suffix %q must not end in tile extension %q", c.ResampledSuffix, c.TileExt))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CompositeOptions projects the settings the composite writer needs.
func (c Config) CompositeOptions() composite.Options {
	return composite.Options{
		ReferenceBand:       c.ReferenceBand,
		ReferenceResolution: c.ReferenceResolution,
		ResampledSuffix:     c.ResampledSuffix,
		Extension:           c.CompositeExt,
		DataType:            c.OutputDataType,
		Resampling:          c.Resampling,
		BigTIFF:             c.BigTIFF,
		StartKey:            c.StartTimeKey,
		EndKey:              c.EndTimeKey,
	}
}

// ParseBands reads "B02=10m,B11=20m". Blank entries are skipped.
func ParseBands(s string) (bands.Spec, error) {
	entries := make(map[string]string)
	for _, item := range splitList(s) {
		band, res, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("band entry %q is not BAND=RES", item)
		}
		entries[band] = res
	}
	if len(entries) == 0 {
		return nil, errors.New("empty band list")
	}
	return bands.ParseSpec(entries)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func getenvDefault(key, def string) string {
	if v, ok := lookup(key); ok {
		return v
	}
	return def
}
