// Package inspector describes finished composites: grid, band labels and
// the acquisition window stored in their metadata.
package inspector

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/brensch/s2composite/internal/raster"
	"github.com/brensch/s2composite/internal/util"
)

// Summary is what Describe reports for one composite.
type Summary struct {
	Path    string
	Grid    raster.Grid
	Bands   []string
	StartMS int64
	EndMS   int64
	// Problems lists anything that makes the composite incomplete.
	Problems []string
}

// Complete reports whether every band is labelled and the time window is
// present and ordered.
func (s Summary) Complete() bool { return len(s.Problems) == 0 }

// Describe opens path and reads its structure. The metadata keys are those
// the composite writer used.
func Describe(driver raster.Driver, path, startKey, endKey string) (Summary, error) {
	s := Summary{Path: path}
	ds, err := driver.Open(path)
	if err != nil {
		return s, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	if s.Grid, err = ds.Grid(); err != nil {
		return s, fmt.Errorf("describe %s: %w", path, err)
	}
	for i := 1; i <= s.Grid.BandCount; i++ {
		d := ds.Description(i)
		if d == "" {
			s.Problems = append(s.Problems, fmt.Sprintf("band %d has no description", i))
		}
		s.Bands = append(s.Bands, d)
	}

	var startOK, endOK bool
	s.StartMS, startOK = epochMetadata(ds, startKey)
	s.EndMS, endOK = epochMetadata(ds, endKey)
	if !startOK {
		s.Problems = append(s.Problems, "missing or invalid "+startKey)
	}
	if !endOK {
		s.Problems = append(s.Problems, "missing or invalid "+endKey)
	}
	if startOK && endOK && s.StartMS > s.EndMS {
		s.Problems = append(s.Problems, fmt.Sprintf("%s after %s", startKey, endKey))
	}
	return s, nil
}

func epochMetadata(ds raster.Dataset, key string) (int64, bool) {
	v := ds.Metadata(key)
	if v == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	return ms, err == nil
}

// FindComposites lists files with extension ext directly in dir, sorted.
// Intermediate resampled bands live one level down and are not matched.
func FindComposites(dir, ext string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, fmt.Errorf("failed glob composites in %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Inspect describes each composite in paths and writes a table to w.
// Composites that cannot be opened are logged and joined into the returned
// error; the rest are still reported.
func Inspect(driver raster.Driver, paths []string, startKey, endKey string, w io.Writer, logger *slog.Logger) ([]Summary, error) {
	if len(paths) == 0 {
		logger.Info("No composites to inspect.")
		return nil, nil
	}
	logger.Info("Inspecting composites.", slog.Int("count", len(paths)))

	var summaries []Summary
	var errs []error
	for _, p := range paths {
		s, err := Describe(driver, p, startKey, endKey)
		if err != nil {
			logger.Warn("Skipping unreadable composite.", slog.String("file", filepath.Base(p)), "error", err)
			errs = append(errs, err)
			continue
		}
		summaries = append(summaries, s)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tTYPE\tBANDS\tSTART (UTC)\tEND (UTC)\tSTATUS")
	for _, s := range summaries {
		status := "ok"
		if !s.Complete() {
			status = strings.Join(s.Problems, "; ")
		}
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\t%s\t%s\t%s\n",
			filepath.Base(s.Path), s.Grid.Width, s.Grid.Height, s.Grid.DataType,
			strings.Join(s.Bands, ","), formatMS(s.StartMS), formatMS(s.EndMS), status)
	}
	if err := tw.Flush(); err != nil {
		errs = append(errs, err)
	}
	return summaries, errors.Join(errs...)
}

func formatMS(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return util.EpochMSToTime(ms).Format("2006-01-02T15:04:05.000Z")
}
