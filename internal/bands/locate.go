package bands

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoBands marks an archive without a single qualifying tile.
var ErrNoBands = errors.New("no qualifying band tiles found")

// Entry is one row of a Table.
type Entry struct {
	Band       string
	Resolution string
	Path       string
}

// Table maps band identifiers to tile paths, ordered by band identifier.
// Entry i becomes composite band i+1.
type Table struct {
	entries []Entry
}

func (t Table) Len() int { return len(t.entries) }

// Empty is the "nothing found" signal; callers report ErrNoBands.
func (t Table) Empty() bool { return len(t.entries) == 0 }

// Entries returns a copy of the rows in band order.
func (t Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Path looks up the tile for band.
func (t Table) Path(band string) (string, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Band >= band })
	if i < len(t.entries) && t.entries[i].Band == band {
		return t.entries[i].Path, true
	}
	return "", false
}

// Bands lists the identifiers in table order.
func (t Table) Bands() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Band
	}
	return out
}

// ParseTileName splits "<anything>_<BAND>_<RES>.<ext>" into band and
// resolution. ok is false when the name has fewer than three '_' parts.
func ParseTileName(name string) (band, resolution string, ok bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return "", "", false
	}
	band, resolution = parts[len(parts)-2], parts[len(parts)-1]
	if band == "" || resolution == "" {
		return "", "", false
	}
	return band, resolution, true
}

// Locate walks root and keeps every file with extension ext whose encoded
// band is in spec at exactly the required resolution. The walk is lexical,
// so when several files qualify for one band the first one wins and the
// rest are logged and ignored. An empty Table with a nil error means the
// archive had nothing usable.
func Locate(root string, spec Spec, ext string, logger *slog.Logger) (Table, error) {
	found := make(map[string]Entry)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ext) {
			return nil
		}
		band, res, ok := ParseTileName(d.Name())
		if !ok {
			return nil
		}
		want, inSpec := spec[band]
		if !inSpec || want != res {
			return nil
		}
		if prev, dup := found[band]; dup {
			logger.Warn("Duplicate tile for band, keeping first.", "band", band, "kept", prev.Path, "ignored", path)
			return nil
		}
		found[band] = Entry{Band: band, Resolution: res, Path: path}
		return nil
	})
	if err != nil {
		return Table{}, fmt.Errorf("walk %s: %w", root, err)
	}

	entries := make([]Entry, 0, len(found))
	for _, e := range found {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Band < entries[j].Band })
	logger.Debug("Located band tiles.", slog.Int("count", len(entries)), slog.String("root", root))
	return Table{entries: entries}, nil
}

// NewTable builds a Table from explicit entries, sorting them by band.
// Later entries for the same band are dropped.
func NewTable(entries ...Entry) Table {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if seen[e.Band] {
			continue
		}
		seen[e.Band] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Band < out[j].Band })
	return Table{entries: out}
}
