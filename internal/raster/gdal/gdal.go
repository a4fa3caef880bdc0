// Package gdal implements raster.Driver on top of GDAL through
// github.com/airbusgeo/godal. Every format GDAL reads (JPEG2000 tiles
// included) can be opened; new datasets are written as GeoTIFF.
package gdal

import (
	"fmt"
	"os"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/brensch/s2composite/internal/raster"
)

var registerOnce sync.Once

// Driver is the GDAL-backed raster.Driver.
type Driver struct{}

// New registers all GDAL drivers (once per process) and returns a Driver.
func New() *Driver {
	registerOnce.Do(godal.RegisterAll)
	return &Driver{}
}

func (d *Driver) Open(path string) (raster.Dataset, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gdal open %s: %w", path, err)
	}
	return &Dataset{ds: ds}, nil
}

func (d *Driver) Create(path string, grid raster.Grid, opts raster.CreateOptions) (raster.Dataset, error) {
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("gdal create %s: %w", path, err)
	}
	dt, err := toGDAL(grid.DataType)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("replace existing %s: %w", path, err)
		}
	}
	var createOpts []godal.DatasetCreateOption
	if opts.BigTIFF {
		createOpts = append(createOpts, godal.CreationOption("BIGTIFF=YES"))
	}
	ds, err := godal.Create(godal.GTiff, path, grid.BandCount, dt, grid.Width, grid.Height, createOpts...)
	if err != nil {
		return nil, fmt.Errorf("gdal create %s: %w", path, err)
	}
	if err := ds.SetGeoTransform(grid.GeoTransform); err != nil {
		ds.Close()
		return nil, fmt.Errorf("set geotransform on %s: %w", path, err)
	}
	if grid.Projection != "" {
		if err := ds.SetProjection(grid.Projection); err != nil {
			ds.Close()
			return nil, fmt.Errorf("set projection on %s: %w", path, err)
		}
	}
	return &Dataset{ds: ds}, nil
}

// Reproject warps src into the already georeferenced dst, the equivalent of
// gdalwarp into an existing file.
func (d *Driver) Reproject(src, dst raster.Dataset, method raster.Resampling) error {
	s, ok := src.(*Dataset)
	if !ok {
		return fmt.Errorf("gdal: foreign source dataset %T", src)
	}
	t, ok := dst.(*Dataset)
	if !ok {
		return fmt.Errorf("gdal: foreign destination dataset %T", dst)
	}
	if err := t.ds.WarpInto([]*godal.Dataset{s.ds}, []string{"-r", method.String()}); err != nil {
		return fmt.Errorf("gdal warp: %w", err)
	}
	return nil
}

func (d *Driver) Remove(path string) error {
	return os.Remove(path)
}

var typeMap = map[raster.DataType]godal.DataType{
	raster.Byte:    godal.Byte,
	raster.UInt16:  godal.UInt16,
	raster.Int16:   godal.Int16,
	raster.UInt32:  godal.UInt32,
	raster.Int32:   godal.Int32,
	raster.Float32: godal.Float32,
	raster.Float64: godal.Float64,
}

func toGDAL(dt raster.DataType) (godal.DataType, error) {
	if g, ok := typeMap[dt]; ok {
		return g, nil
	}
	return godal.Unknown, fmt.Errorf("gdal: unsupported data type %s", dt)
}

func fromGDAL(g godal.DataType) raster.DataType {
	for dt, candidate := range typeMap {
		if candidate == g {
			return dt
		}
	}
	return raster.Unknown
}
