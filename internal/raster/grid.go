package raster

import (
	"errors"
	"fmt"
)

// Grid describes raster geometry: size, band count, pixel type, projection
// (an opaque CRS descriptor, usually WKT) and the affine geotransform
// mapping pixel (col,row) to georeferenced (x,y):
//
//	x = GeoTransform[0] + col*GeoTransform[1] + row*GeoTransform[2]
//	y = GeoTransform[3] + col*GeoTransform[4] + row*GeoTransform[5]
type Grid struct {
	Width        int
	Height       int
	BandCount    int
	DataType     DataType
	Projection   string
	GeoTransform [6]float64
}

// Pixels is the number of pixels in one band.
func (g Grid) Pixels() int {
	return g.Width * g.Height
}

// Aligned reports whether other shares the exact pixel grid of g.
// Band count and pixel type are not part of alignment.
func (g Grid) Aligned(other Grid) bool {
	return g.Width == other.Width &&
		g.Height == other.Height &&
		g.Projection == other.Projection &&
		g.GeoTransform == other.GeoTransform
}

// WithBands returns a copy of g carrying n bands of type dt.
func (g Grid) WithBands(n int, dt DataType) Grid {
	g.BandCount = n
	g.DataType = dt
	return g
}

// Validate rejects grids no driver could allocate.
func (g Grid) Validate() error {
	var errs []error
	if g.Width <= 0 || g.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", g.Width, g.Height))
	}
	if g.BandCount <= 0 {
		errs = append(errs, fmt.Errorf("invalid band count %d", g.BandCount))
	}
	if g.DataType == Unknown {
		errs = append(errs, errors.New("unknown data type"))
	}
	if g.GeoTransform[1] == 0 || g.GeoTransform[5] == 0 {
		errs = append(errs, fmt.Errorf("degenerate geotransform %v", g.GeoTransform))
	}
	return errors.Join(errs...)
}

// ReadGrid opens the reference band at path and reports its geometry.
// Every failure is wrapped with ErrGridUnreadable.
func ReadGrid(driver Driver, path string) (Grid, error) {
	ds, err := driver.Open(path)
	if err != nil {
		return Grid{}, fmt.Errorf("%w: open %s: %v", ErrGridUnreadable, path, err)
	}
	grid, gridErr := ds.Grid()
	closeErr := ds.Close()
	if gridErr != nil {
		return Grid{}, fmt.Errorf("%w: describe %s: %v", ErrGridUnreadable, path, gridErr)
	}
	if closeErr != nil {
		return Grid{}, fmt.Errorf("%w: close %s: %v", ErrGridUnreadable, path, closeErr)
	}
	if err := grid.Validate(); err != nil {
		return Grid{}, fmt.Errorf("%w: %s: %v", ErrGridUnreadable, path, err)
	}
	return grid, nil
}
