package raster

import "fmt"

// Affine is a 2x3 matrix {a, b, c, d, e, f} mapping (x, y) to
// (a*x + b*y + c, d*x + e*y + f). Its layout matches
// golang.org/x/image/math/f64.Aff3.
type Affine [6]float64

// PixelToGeo converts a GDAL geotransform into an Affine.
func PixelToGeo(gt [6]float64) Affine {
	return Affine{gt[1], gt[2], gt[0], gt[4], gt[5], gt[3]}
}

// Apply maps a point through m.
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// Invert returns the inverse mapping, failing on singular matrices.
func (m Affine) Invert() (Affine, error) {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 {
		return Affine{}, fmt.Errorf("singular affine %v", m)
	}
	return Affine{
		m[4] / det,
		-m[1] / det,
		(m[1]*m[5] - m[4]*m[2]) / det,
		-m[3] / det,
		m[0] / det,
		(m[3]*m[2] - m[0]*m[5]) / det,
	}, nil
}

// Then returns the mapping that applies m first and next second.
func (m Affine) Then(next Affine) Affine {
	return Affine{
		next[0]*m[0] + next[1]*m[3],
		next[0]*m[1] + next[1]*m[4],
		next[0]*m[2] + next[1]*m[5] + next[2],
		next[3]*m[0] + next[4]*m[3],
		next[3]*m[1] + next[4]*m[4],
		next[3]*m[2] + next[4]*m[5] + next[5],
	}
}

// PixelMapping maps pixel coordinates of src onto pixel coordinates of dst,
// through their shared georeferenced space.
func PixelMapping(src, dst Grid) (Affine, error) {
	geoToDst, err := PixelToGeo(dst.GeoTransform).Invert()
	if err != nil {
		return Affine{}, fmt.Errorf("destination geotransform: %w", err)
	}
	return PixelToGeo(src.GeoTransform).Then(geoToDst), nil
}
