// Package product reads the product metadata document shipped inside each
// archive.
package product

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/s2composite/internal/util"
)

const (
	startElement = "PRODUCT_START_TIME"
	stopElement  = "PRODUCT_STOP_TIME"
)

// ErrMalformed covers a missing document, unparsable XML, absent time
// fields, bad timestamps and inverted windows.
var ErrMalformed = errors.New("product metadata malformed")

// TimeWindow is the acquisition window in Unix epoch milliseconds.
type TimeWindow struct {
	StartMS int64
	EndMS   int64
}

// Duration is the length of the acquisition window.
func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w.EndMS-w.StartMS) * time.Millisecond
}

// ReadTimeWindow opens the metadata document at path and extracts the
// product start and stop times.
func ReadTimeWindow(path string) (TimeWindow, error) {
	f, err := os.Open(path)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	w, err := ParseTimeWindow(f)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// ParseTimeWindow scans an XML stream for the first PRODUCT_START_TIME and
// PRODUCT_STOP_TIME elements, at any depth and in any namespace.
func ParseTimeWindow(r io.Reader) (TimeWindow, error) {
	dec := xml.NewDecoder(r)
	var start, stop string
	var haveStart, haveStop bool

	for !(haveStart && haveStop) {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TimeWindow{}, fmt.Errorf("%w: decode: %v", ErrMalformed, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case startElement:
			if haveStart {
				continue
			}
			if err := dec.DecodeElement(&start, &se); err != nil {
				return TimeWindow{}, fmt.Errorf("%w: %s: %v", ErrMalformed, startElement, err)
			}
			haveStart = true
		case stopElement:
			if haveStop {
				continue
			}
			if err := dec.DecodeElement(&stop, &se); err != nil {
				return TimeWindow{}, fmt.Errorf("%w: %s: %v", ErrMalformed, stopElement, err)
			}
			haveStop = true
		}
	}

	var missing []string
	if !haveStart {
		missing = append(missing, startElement)
	}
	if !haveStop {
		missing = append(missing, stopElement)
	}
	if len(missing) > 0 {
		return TimeWindow{}, fmt.Errorf("%w: missing %s", ErrMalformed, strings.Join(missing, ", "))
	}

	startMS, err := util.ISOToEpochMS(start)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: %s: %v", ErrMalformed, startElement, err)
	}
	stopMS, err := util.ISOToEpochMS(stop)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("%w: %s: %v", ErrMalformed, stopElement, err)
	}
	if startMS > stopMS {
		return TimeWindow{}, fmt.Errorf("%w: start %d after stop %d", ErrMalformed, startMS, stopMS)
	}
	return TimeWindow{StartMS: startMS, EndMS: stopMS}, nil
}

// FindMetadata returns the shallowest file called name under root. Ties at
// the same depth go to the lexically first path.
func FindMetadata(root, name string) (string, error) {
	best := ""
	bestDepth := -1
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		depth := strings.Count(filepath.ToSlash(rel), "/")
		if bestDepth < 0 || depth < bestDepth {
			best, bestDepth = path, depth
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: search %s: %v", ErrMalformed, root, err)
	}
	if best == "" {
		return "", fmt.Errorf("%w: %s not found under %s", ErrMalformed, name, root)
	}
	return best, nil
}
