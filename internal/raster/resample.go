package raster

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ResampledPath is where Resample materialises the aligned copy of src:
// the source path with its extension replaced by suffix.
func ResampledPath(src, suffix string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + suffix
}

// Resample reprojects the band at srcPath onto the exact grid of the raster
// at refPath and writes it next to the source (see ResampledPath). The output
// keeps the source's band count and pixel type. On failure the partially
// written output is removed. Returned errors wrap ErrResample.
func Resample(driver Driver, srcPath, refPath, suffix string, method Resampling) (string, error) {
	src, err := driver.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("%w: open source %s: %v", ErrResample, srcPath, err)
	}
	defer src.Close()

	ref, err := driver.Open(refPath)
	if err != nil {
		return "", fmt.Errorf("%w: open reference %s: %v", ErrResample, refPath, err)
	}
	refGrid, refErr := ref.Grid()
	ref.Close()
	if refErr != nil {
		return "", fmt.Errorf("%w: describe reference %s: %v", ErrResample, refPath, refErr)
	}

	srcGrid, err := src.Grid()
	if err != nil {
		return "", fmt.Errorf("%w: describe source %s: %v", ErrResample, srcPath, err)
	}

	dstPath := ResampledPath(srcPath, suffix)
	dst, err := driver.Create(dstPath, refGrid.WithBands(srcGrid.BandCount, srcGrid.DataType), CreateOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrResample, dstPath, err)
	}

	warpErr := driver.Reproject(src, dst, method)
	closeErr := dst.Close()
	if err := errors.Join(warpErr, closeErr); err != nil {
		if rmErr := driver.Remove(dstPath); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("remove partial %s: %w", dstPath, rmErr))
		}
		return "", fmt.Errorf("%w: %s -> %s: %v", ErrResample, srcPath, dstPath, err)
	}
	return dstPath, nil
}
