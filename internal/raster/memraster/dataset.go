package memraster

import (
	"errors"
	"fmt"

	"github.com/brensch/s2composite/internal/raster"
)

// Dataset is a handle on a registered raster. Writes land in the registry
// immediately; Close only invalidates the handle.
type Dataset struct {
	path   string
	store  *store
	closed bool
}

var errClosed = errors.New("memraster: dataset is closed")

func (ds *Dataset) Grid() (raster.Grid, error) {
	if ds.closed {
		return raster.Grid{}, errClosed
	}
	ds.store.mu.RLock()
	defer ds.store.mu.RUnlock()
	return ds.store.grid, nil
}

func (ds *Dataset) band(band int) error {
	if ds.closed {
		return errClosed
	}
	if band < 1 || band > len(ds.store.bands) {
		return fmt.Errorf("memraster: %s has no band %d", ds.path, band)
	}
	return nil
}

func (ds *Dataset) Read(band int, buf any) error {
	if err := ds.band(band); err != nil {
		return err
	}
	ds.store.mu.RLock()
	defer ds.store.mu.RUnlock()
	src := ds.store.bands[band-1]
	if n := bufferLen(buf); n != len(src) {
		return fmt.Errorf("memraster: read buffer of %d for %d pixels", n, len(src))
	}
	switch b := buf.(type) {
	case []uint8:
		for i, v := range src {
			b[i] = uint8(v)
		}
	case []uint16:
		for i, v := range src {
			b[i] = uint16(v)
		}
	case []int16:
		for i, v := range src {
			b[i] = int16(v)
		}
	case []uint32:
		for i, v := range src {
			b[i] = uint32(v)
		}
	case []int32:
		for i, v := range src {
			b[i] = int32(v)
		}
	case []float32:
		for i, v := range src {
			b[i] = float32(v)
		}
	case []float64:
		copy(b, src)
	default:
		return fmt.Errorf("memraster: unsupported buffer type %T", buf)
	}
	return nil
}

func (ds *Dataset) Write(band int, buf any) error {
	if err := ds.band(band); err != nil {
		return err
	}
	ds.store.mu.Lock()
	defer ds.store.mu.Unlock()
	dst := ds.store.bands[band-1]
	if n := bufferLen(buf); n != len(dst) {
		return fmt.Errorf("memraster: write buffer of %d for %d pixels", n, len(dst))
	}
	switch b := buf.(type) {
	case []uint8:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []uint16:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []uint32:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []float32:
		for i, v := range b {
			dst[i] = float64(v)
		}
	case []float64:
		copy(dst, b)
	default:
		return fmt.Errorf("memraster: unsupported buffer type %T", buf)
	}
	return nil
}

func bufferLen(buf any) int {
	switch b := buf.(type) {
	case []uint8:
		return len(b)
	case []uint16:
		return len(b)
	case []int16:
		return len(b)
	case []uint32:
		return len(b)
	case []int32:
		return len(b)
	case []float32:
		return len(b)
	case []float64:
		return len(b)
	}
	return -1
}

func (ds *Dataset) SetDescription(band int, desc string) error {
	if err := ds.band(band); err != nil {
		return err
	}
	ds.store.mu.Lock()
	ds.store.descs[band-1] = desc
	ds.store.mu.Unlock()
	return nil
}

func (ds *Dataset) Description(band int) string {
	if ds.band(band) != nil {
		return ""
	}
	ds.store.mu.RLock()
	defer ds.store.mu.RUnlock()
	return ds.store.descs[band-1]
}

func (ds *Dataset) SetMetadata(key, value string) error {
	if ds.closed {
		return errClosed
	}
	ds.store.mu.Lock()
	ds.store.metadata[key] = value
	ds.store.mu.Unlock()
	return nil
}

func (ds *Dataset) Metadata(key string) string {
	if ds.closed {
		return ""
	}
	ds.store.mu.RLock()
	defer ds.store.mu.RUnlock()
	return ds.store.metadata[key]
}

func (ds *Dataset) Close() error {
	if ds.closed {
		return errClosed
	}
	ds.closed = true
	return nil
}
