package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/s2composite/internal/config"
	"github.com/brensch/s2composite/internal/db"
	"github.com/brensch/s2composite/internal/raster"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// tuiLogFile receives logs while the progress UI owns the terminal.
const tuiLogFile = "s2composite.log"

var (
	envFile   string
	logFormat string
	logLevel  string
	logOutput string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	logFile    *os.File
	dbConn     *sql.DB
	appConfig  config.Config
)

var rootCmd = &cobra.Command{
	Use:   "s2composite",
	Short: "Composite Sentinel-2 product archives into multi-band GeoTIFFs.",
	Long: `s2composite extracts Sentinel-2 L2A product archives, aligns the configured
bands onto the reference band's grid and writes one multi-band composite per
archive, labelled by band and stamped with the acquisition time window.

The primary command is 'run'. 'fetch' downloads archives from index pages,
'state' shows the event history kept in DuckDB, 'inspect' describes finished
composites, 'save' exports the catalog to Parquet and 'analyse' summarises it.

Settings come from built-in defaults, then a .env file, then S2C_* environment
variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logWriter, err := openLogOutput(cmd)
		if err != nil {
			return err
		}
		opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}
		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized", "level", logLevel, "format", logFormat, "output", logOutput)

		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg, err := config.ApplyEnv(config.Defaults())
		if err != nil {
			return err
		}
		if cfg, err = applyFlags(cmd.Flags(), cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		appConfig = cfg
		rootLogger.Debug("Configuration loaded", slog.Any("config", appConfig))

		if appConfig.DbPath != ":memory:" {
			dbDir := filepath.Dir(appConfig.DbPath)
			if err := os.MkdirAll(dbDir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}

		rootLogger.Debug("Initializing DuckDB connection", "path", appConfig.DbPath)
		dsn := appConfig.DbPath
		if dsn == ":memory:" {
			dsn = ""
		}
		dbConn, err = sql.Open("duckdb", dsn)
		if err != nil {
			return fmt.Errorf("failed to open duckdb database (%s): %w", appConfig.DbPath, err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = dbConn.PingContext(pingCtx); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to ping duckdb database (%s): %w", appConfig.DbPath, err)
		}
		if err := db.InitializeSchema(dbConn); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
		rootLogger.Debug("Database schema initialized.")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var errs []error
		if dbConn != nil {
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("Failed to close DuckDB connection cleanly", "error", err)
				errs = append(errs, err)
			}
		}
		if logFile != nil {
			errs = append(errs, logFile.Close())
		}
		return errors.Join(errs...)
	},
}

// Execute runs the command tree. It is called by main.main().
func Execute() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(analyseCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	d := config.Defaults()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before S2C_* variables")
	pf.StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	pf.StringP("input-dir", "i", d.InputDir, "Directory holding product archives")
	pf.StringP("output-dir", "o", d.OutputDir, "Directory for extracted products and composites")
	pf.StringP("db-path", "d", d.DbPath, "Path to DuckDB state database file (:memory: for in-memory)")
	pf.IntP("max-concurrent", "w", d.MaxConcurrent, "Maximum archives processed at once")
	pf.StringSlice("band", nil, "Band to include as BAND=RES, repeatable (default B02,B03,B04,B08=10m B11,B12=20m)")
	pf.String("reference-band", d.ReferenceBand, "Band whose grid every composite uses")
	pf.String("reference-resolution", d.ReferenceResolution, "Native resolution of the reference band")
	pf.String("archive-ext", d.ArchiveExt, "Extension of product archives")
	pf.String("tile-ext", d.TileExt, "Extension of band tiles inside a product")
	pf.String("metadata-file", d.MetadataFile, "Product metadata document holding the time window")
	pf.String("output-type", d.OutputDataType.String(), "Composite pixel type (Byte, UInt16, Int16, UInt32, Int32, Float32, Float64)")
	pf.String("resampling", d.Resampling.String(), "Resampling kernel (near, bilinear, cubic)")
	pf.Bool("bigtiff", d.BigTIFF, "Write composites as BigTIFF")
	pf.StringSlice("feed-url", d.FeedURLs, "Index page listing archives for fetch (repeatable)")

	rootCmd.Version = "1.0.0"
}

// applyFlags overlays every flag the user actually set onto cfg, so unset
// flags never mask .env or environment values.
func applyFlags(fs *pflag.FlagSet, cfg config.Config) (config.Config, error) {
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "input-dir":
			cfg.InputDir = f.Value.String()
		case "output-dir":
			cfg.OutputDir = f.Value.String()
		case "db-path":
			cfg.DbPath = f.Value.String()
		case "max-concurrent":
			cfg.MaxConcurrent, err = fs.GetInt(f.Name)
		case "band":
			var items []string
			if items, err = fs.GetStringSlice(f.Name); err == nil {
				cfg.Bands, err = config.ParseBands(strings.Join(items, ","))
			}
		case "reference-band":
			cfg.ReferenceBand = f.Value.String()
		case "reference-resolution":
			cfg.ReferenceResolution = f.Value.String()
		case "archive-ext":
			cfg.ArchiveExt = f.Value.String()
		case "tile-ext":
			cfg.TileExt = f.Value.String()
		case "metadata-file":
			cfg.MetadataFile = f.Value.String()
		case "output-type":
			cfg.OutputDataType, err = raster.ParseDataType(f.Value.String())
		case "resampling":
			cfg.Resampling, err = raster.ParseResampling(f.Value.String())
		case "bigtiff":
			cfg.BigTIFF, err = fs.GetBool(f.Name)
		case "feed-url":
			cfg.FeedURLs, err = fs.GetStringSlice(f.Name)
		case "force":
			cfg.Force, err = fs.GetBool(f.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
		}
	})
	return cfg, errors.Join(errs...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// openLogOutput resolves --log-output. With --tui on the terminal, stderr
// logging moves to tuiLogFile.
func openLogOutput(cmd *cobra.Command) (io.Writer, error) {
	target := strings.ToLower(logOutput)
	if tui, err := cmd.Flags().GetBool("tui"); err == nil && tui && (target == "" || target == "stderr" || target == "stdout") {
		target = tuiLogFile
	}
	switch target {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}
	if target != tuiLogFile {
		target = logOutput
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", target, err)
	}
	logFile = f
	return f, nil
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getDB() *sql.DB { return dbConn }

func getConfig() config.Config { return appConfig }
