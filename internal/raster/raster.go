// Package raster defines the raster capability the composite pipeline runs on:
// a Driver that opens, creates and reprojects datasets, and the Grid
// descriptor shared by every band of a composite.
//
// Concrete drivers live in sub-packages: gdal (backed by GDAL through godal)
// and memraster (an in-memory registry used by tests and small workloads).
package raster

import (
	"errors"
	"fmt"
	"strings"
)

// DataType is the pixel type of a raster band.
type DataType int

const (
	Unknown DataType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Byte:    "Byte",
	UInt16:  "UInt16",
	Int16:   "Int16",
	UInt32:  "UInt32",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
}

func (dt DataType) String() string {
	if name, ok := dataTypeNames[dt]; ok {
		return name
	}
	return "Unknown"
}

// ParseDataType accepts the GDAL type names (case-insensitive).
func ParseDataType(s string) (DataType, error) {
	for dt, name := range dataTypeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return dt, nil
		}
	}
	return Unknown, fmt.Errorf("unknown raster data type %q", s)
}

// NewBuffer allocates a typed pixel slice of n elements for dt. The concrete
// slice type is what drivers expect in Dataset.Read and Dataset.Write.
func (dt DataType) NewBuffer(n int) (any, error) {
	switch dt {
	case Byte:
		return make([]uint8, n), nil
	case UInt16:
		return make([]uint16, n), nil
	case Int16:
		return make([]int16, n), nil
	case UInt32:
		return make([]uint32, n), nil
	case Int32:
		return make([]int32, n), nil
	case Float32:
		return make([]float32, n), nil
	case Float64:
		return make([]float64, n), nil
	}
	return nil, fmt.Errorf("no buffer type for data type %s", dt)
}

// Resampling selects the interpolation kernel used when reprojecting.
type Resampling int

const (
	Nearest Resampling = iota
	Bilinear
	Cubic
)

func (r Resampling) String() string {
	switch r {
	case Nearest:
		return "near"
	case Bilinear:
		return "bilinear"
	case Cubic:
		return "cubic"
	}
	return "unknown"
}

// ParseResampling accepts the gdalwarp -r names.
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "near", "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	case "cubic":
		return Cubic, nil
	}
	return Bilinear, fmt.Errorf("unknown resampling method %q", s)
}

var (
	// ErrGridUnreadable wraps failures opening or describing a reference band.
	ErrGridUnreadable = errors.New("reference grid unreadable")
	// ErrResample wraps failures aligning a band onto the reference grid.
	ErrResample = errors.New("resample failed")
)

// CreateOptions tunes Driver.Create.
type CreateOptions struct {
	// BigTIFF requests a container able to exceed 4 GiB.
	BigTIFF bool
}

// Driver is the raster I/O capability supplied by an underlying library.
type Driver interface {
	Open(path string) (Dataset, error)
	// Create allocates a new dataset, replacing anything already at path.
	Create(path string, grid Grid, opts CreateOptions) (Dataset, error)
	// Reproject resamples every band of src onto the grid of dst.
	Reproject(src, dst Dataset, method Resampling) error
	Remove(path string) error
}

// Dataset is an open raster. Band indexes are 1-based.
type Dataset interface {
	Grid() (Grid, error)
	Read(band int, buf any) error
	Write(band int, buf any) error
	SetDescription(band int, desc string) error
	Description(band int) string
	SetMetadata(key, value string) error
	Metadata(key string) string
	// Close flushes pending writes and releases the handle.
	Close() error
}
