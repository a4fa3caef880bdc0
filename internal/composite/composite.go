// Package composite assembles the located band tiles of one archive into a
// single multi-band raster on the reference grid.
package composite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brensch/s2composite/internal/bands"
	"github.com/brensch/s2composite/internal/product"
	"github.com/brensch/s2composite/internal/raster"
)

// ErrReferenceMissing means the reference band was not among the located tiles.
var ErrReferenceMissing = errors.New("reference band not located")

// ErrMisaligned means a band tile does not sit on the reference grid.
var ErrMisaligned = errors.New("band not aligned to reference grid")

// Options are the process-wide knobs of the writer. They are read-only once
// a Writer is built.
type Options struct {
	ReferenceBand       string
	ReferenceResolution string
	ResampledSuffix     string
	Extension           string
	DataType            raster.DataType
	Resampling          raster.Resampling
	BigTIFF             bool
	StartKey            string
	EndKey              string
}

// Result describes a finalised composite.
type Result struct {
	Path   string
	Bands  []string
	Grid   raster.Grid
	Window product.TimeWindow
	// Resampled lists the intermediate aligned rasters that were materialised.
	Resampled []string
}

// Writer builds composites through a raster.Driver. Safe for concurrent use
// when the driver is.
type Writer struct {
	driver raster.Driver
	opts   Options
	logger *slog.Logger
}

func NewWriter(driver raster.Driver, opts Options, logger *slog.Logger) *Writer {
	return &Writer{driver: driver, opts: opts, logger: logger}
}

// OutputPath is the composite written for an archive extracted into
// extractDir: a sibling file with the same base name.
func OutputPath(extractDir, ext string) string {
	return filepath.Clean(extractDir) + ext
}

// Reference returns the path of the reference band tile and its grid.
func (w *Writer) Reference(table bands.Table) (string, raster.Grid, error) {
	refPath, ok := table.Path(w.opts.ReferenceBand)
	if !ok {
		return "", raster.Grid{}, fmt.Errorf("%w: %s", ErrReferenceMissing, w.opts.ReferenceBand)
	}
	grid, err := raster.ReadGrid(w.driver, refPath)
	if err != nil {
		return "", raster.Grid{}, err
	}
	return refPath, grid, nil
}

// Write creates the composite for extractDir, one band per table entry in
// table order, labels each band with its identifier, stamps the time window
// and closes the file. Any failure removes the output so no half-written
// composite survives.
func (w *Writer) Write(ctx context.Context, extractDir string, table bands.Table, refPath string, grid raster.Grid, window product.TimeWindow) (Result, error) {
	if table.Empty() {
		return Result{}, bands.ErrNoBands
	}
	outPath := OutputPath(extractDir, w.opts.Extension)
	l := w.logger.With(slog.String("output", outPath))
	start := time.Now()

	outGrid := grid.WithBands(table.Len(), w.opts.DataType)
	ds, err := w.driver.Create(outPath, outGrid, raster.CreateOptions{BigTIFF: w.opts.BigTIFF})
	if err != nil {
		return Result{}, fmt.Errorf("create composite %s: %w", outPath, err)
	}

	res := Result{Path: outPath, Grid: outGrid, Window: window}
	fail := func(err error) (Result, error) {
		err = errors.Join(err, ds.Close())
		if rmErr := w.driver.Remove(outPath); rmErr != nil {
			l.Warn("Failed to remove partial composite.", "error", rmErr)
		}
		return Result{}, err
	}

	for i, e := range table.Entries() {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		idx := i + 1
		src := e.Path
		if e.Resolution != w.opts.ReferenceResolution {
			src, err = raster.Resample(w.driver, e.Path, refPath, w.opts.ResampledSuffix, w.opts.Resampling)
			if err != nil {
				return fail(fmt.Errorf("band %s: %w", e.Band, err))
			}
			res.Resampled = append(res.Resampled, src)
			l.Debug("Band resampled.", slog.String("band", e.Band), slog.String("path", src))
		}
		if err := w.copyBand(ds, idx, src, grid); err != nil {
			return fail(fmt.Errorf("band %s: %w", e.Band, err))
		}
		if err := ds.SetDescription(idx, e.Band); err != nil {
			return fail(fmt.Errorf("label band %d as %s: %w", idx, e.Band, err))
		}
		res.Bands = append(res.Bands, e.Band)
	}

	if err := ds.SetMetadata(w.opts.StartKey, strconv.FormatInt(window.StartMS, 10)); err != nil {
		return fail(fmt.Errorf("set %s: %w", w.opts.StartKey, err))
	}
	if err := ds.SetMetadata(w.opts.EndKey, strconv.FormatInt(window.EndMS, 10)); err != nil {
		return fail(fmt.Errorf("set %s: %w", w.opts.EndKey, err))
	}

	if err := ds.Close(); err != nil {
		if rmErr := w.driver.Remove(outPath); rmErr != nil {
			l.Warn("Failed to remove partial composite.", "error", rmErr)
		}
		return Result{}, fmt.Errorf("finalise composite %s: %w", outPath, err)
	}

	l.Info("Composite written.",
		slog.Int("bands", len(res.Bands)),
		slog.Int("resampled", len(res.Resampled)),
		slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return res, nil
}

// copyBand reads band 1 of src, which must sit on the reference grid, and
// writes it into band idx of dst converted to the output pixel type.
func (w *Writer) copyBand(dst raster.Dataset, idx int, srcPath string, ref raster.Grid) error {
	src, err := w.driver.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", srcPath, err)
	}
	defer src.Close()

	g, err := src.Grid()
	if err != nil {
		return fmt.Errorf("describe %s: %w", srcPath, err)
	}
	if !g.Aligned(ref) {
		return fmt.Errorf("%w: %s is %dx%d at %v, reference is %dx%d at %v",
			ErrMisaligned, srcPath, g.Width, g.Height, g.GeoTransform, ref.Width, ref.Height, ref.GeoTransform)
	}

	buf, err := w.opts.DataType.NewBuffer(ref.Pixels())
	if err != nil {
		return err
	}
	if err := src.Read(1, buf); err != nil {
		return fmt.Errorf("read %s: %w", srcPath, err)
	}
	if err := dst.Write(idx, buf); err != nil {
		return fmt.Errorf("write band %d: %w", idx, err)
	}
	return nil
}
