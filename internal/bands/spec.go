// Package bands resolves which raster tiles of an extracted product feed a
// composite: the Band Specification (band -> required resolution) and the
// per-archive Band Path Table built by walking the extraction directory.
package bands

import (
	"fmt"
	"sort"
	"strings"
)

// Spec maps a band identifier (B02, B8A, ...) to the resolution tag (10m,
// 20m, 60m) its tile must carry. A Spec is built once and never mutated.
type Spec map[string]string

// DefaultSpec is the Sentinel-2 L2A selection: visible and NIR at 10 m,
// SWIR at 20 m. Excluded bands are listed for reference.
func DefaultSpec() Spec {
	return Spec{
		// "B01": "60m",
		"B02": "10m",
		"B03": "10m",
		"B04": "10m",
		// "B05": "20m",
		// "B06": "20m",
		// "B07": "20m",
		"B08": "10m",
		// "B8A": "20m",
		// "B09": "60m",
		"B11": "20m",
		"B12": "20m",
		// "AOT": "10m",
		// "WVP": "10m",
		// "SCL": "20m",
		// "TCI": "10m",
	}
}

// Bands returns the identifiers in sorted order, which is composite band order.
func (s Spec) Bands() []string {
	out := make([]string, 0, len(s))
	for b := range s {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Resolution reports the required resolution tag for band.
func (s Spec) Resolution(band string) (string, bool) {
	r, ok := s[band]
	return r, ok
}

// String renders the spec as "B02=10m,B03=10m,...".
func (s Spec) String() string {
	parts := make([]string, 0, len(s))
	for _, b := range s.Bands() {
		parts = append(parts, b+"="+s[b])
	}
	return strings.Join(parts, ",")
}

// ParseSpec builds a Spec from band -> resolution pairs, trimming both
// sides and rejecting empty entries. config.ParseBands handles the
// "B02=10m,B11=20m" string form.
func ParseSpec(entries map[string]string) (Spec, error) {
	spec := make(Spec, len(entries))
	for band, res := range entries {
		band, res = strings.TrimSpace(band), strings.TrimSpace(res)
		if band == "" || res == "" {
			return nil, fmt.Errorf("invalid band entry %q=%q", band, res)
		}
		if strings.Contains(band, "_") || strings.Contains(res, "_") {
			return nil, fmt.Errorf("band entry %q=%q must not contain '_'", band, res)
		}
		spec[band] = res
	}
	return spec, nil
}
