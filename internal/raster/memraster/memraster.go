// Package memraster is an in-memory raster.Driver. Datasets live in a
// path-keyed registry so pipeline code can address them exactly like files.
// Reprojection uses the golang.org/x/image/draw kernels and is limited to
// Byte and UInt16 bands sharing one projection.
package memraster

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/brensch/s2composite/internal/raster"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrNotExist is returned by Open and Remove for unknown paths.
var ErrNotExist = errors.New("memraster: dataset does not exist")

// Driver is safe for concurrent use.
type Driver struct {
	mu       sync.RWMutex
	datasets map[string]*store
}

// New returns an empty Driver.
func New() *Driver {
	return &Driver{datasets: make(map[string]*store)}
}

type store struct {
	mu       sync.RWMutex
	grid     raster.Grid
	bands    [][]float64
	descs    []string
	metadata map[string]string
}

func newStore(grid raster.Grid) *store {
	s := &store{
		grid:     grid,
		bands:    make([][]float64, grid.BandCount),
		descs:    make([]string, grid.BandCount),
		metadata: make(map[string]string),
	}
	for i := range s.bands {
		s.bands[i] = make([]float64, grid.Pixels())
	}
	return s
}

// Put registers a single-band dataset at path holding pixels (row-major).
// It is the seeding hook for tests and callers that already hold data.
func (d *Driver) Put(path string, grid raster.Grid, pixels ...[]float64) error {
	if len(pixels) != grid.BandCount {
		return fmt.Errorf("memraster: %d pixel slices for %d bands", len(pixels), grid.BandCount)
	}
	s := newStore(grid)
	for i, p := range pixels {
		if len(p) != grid.Pixels() {
			return fmt.Errorf("memraster: band %d has %d pixels, want %d", i+1, len(p), grid.Pixels())
		}
		copy(s.bands[i], p)
	}
	d.mu.Lock()
	d.datasets[path] = s
	d.mu.Unlock()
	return nil
}

// Exists reports whether a dataset is registered at path.
func (d *Driver) Exists(path string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.datasets[path]
	return ok
}

// Paths lists every registered path.
func (d *Driver) Paths() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.datasets))
	for p := range d.datasets {
		out = append(out, p)
	}
	return out
}

func (d *Driver) Open(path string) (raster.Dataset, error) {
	d.mu.RLock()
	s, ok := d.datasets[path]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return &Dataset{path: path, store: s}, nil
}

func (d *Driver) Create(path string, grid raster.Grid, _ raster.CreateOptions) (raster.Dataset, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("memraster: create %s: %w", path, err)
	}
	s := newStore(grid)
	d.mu.Lock()
	d.datasets[path] = s
	d.mu.Unlock()
	return &Dataset{path: path, store: s}, nil
}

func (d *Driver) Remove(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.datasets[path]; !ok {
		return fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	delete(d.datasets, path)
	return nil
}

// Reproject samples every band of src onto dst's grid. Destination pixels
// whose centre falls outside the source keep their current value.
func (d *Driver) Reproject(src, dst raster.Dataset, method raster.Resampling) error {
	s, ok := src.(*Dataset)
	if !ok {
		return fmt.Errorf("memraster: foreign source dataset %T", src)
	}
	t, ok := dst.(*Dataset)
	if !ok {
		return fmt.Errorf("memraster: foreign destination dataset %T", dst)
	}
	if s.closed || t.closed {
		return errors.New("memraster: reproject on closed dataset")
	}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	sg, tg := s.store.grid, t.store.grid
	if sg.Projection != tg.Projection {
		return fmt.Errorf("memraster: cannot reproject between different projections")
	}
	if sg.BandCount != tg.BandCount {
		return fmt.Errorf("memraster: band count mismatch %d != %d", sg.BandCount, tg.BandCount)
	}
	if !reprojectable(sg.DataType) || !reprojectable(tg.DataType) {
		return fmt.Errorf("memraster: reprojection supports Byte and UInt16, got %s -> %s", sg.DataType, tg.DataType)
	}
	m, err := raster.PixelMapping(sg, tg)
	if err != nil {
		return fmt.Errorf("memraster: %w", err)
	}

	kernel := interpolator(method)
	for i := range s.store.bands {
		srcImg := toGray16(s.store.bands[i], sg.Width, sg.Height)
		dstImg := toGray16(t.store.bands[i], tg.Width, tg.Height)
		kernel.Transform(dstImg, f64.Aff3(m), srcImg, srcImg.Bounds(), draw.Src, nil)
		fromGray16(dstImg, t.store.bands[i])
	}
	return nil
}

func reprojectable(dt raster.DataType) bool {
	return dt == raster.Byte || dt == raster.UInt16
}

func interpolator(method raster.Resampling) draw.Transformer {
	switch method {
	case raster.Nearest:
		return draw.NearestNeighbor
	case raster.Cubic:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

func toGray16(pix []float64, w, h int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range pix {
		u := uint16(math.Max(0, math.Min(math.MaxUint16, math.Round(v))))
		img.Pix[2*i] = uint8(u >> 8)
		img.Pix[2*i+1] = uint8(u)
	}
	return img
}

func fromGray16(img *image.Gray16, pix []float64) {
	for i := range pix {
		pix[i] = float64(uint16(img.Pix[2*i])<<8 | uint16(img.Pix[2*i+1]))
	}
}
