package gdal

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/brensch/s2composite/internal/raster"
)

// Dataset wraps an open *godal.Dataset.
type Dataset struct {
	ds *godal.Dataset
}

func (d *Dataset) Grid() (raster.Grid, error) {
	st := d.ds.Structure()
	gt, err := d.ds.GeoTransform()
	if err != nil {
		return raster.Grid{}, fmt.Errorf("read geotransform: %w", err)
	}
	return raster.Grid{
		Width:        st.SizeX,
		Height:       st.SizeY,
		BandCount:    st.NBands,
		DataType:     fromGDAL(st.DataType),
		Projection:   d.ds.Projection(),
		GeoTransform: gt,
	}, nil
}

func (d *Dataset) bandAt(band int) (godal.Band, error) {
	bands := d.ds.Bands()
	if band < 1 || band > len(bands) {
		return godal.Band{}, fmt.Errorf("gdal: no band %d (have %d)", band, len(bands))
	}
	return bands[band-1], nil
}

func (d *Dataset) Read(band int, buf any) error {
	b, err := d.bandAt(band)
	if err != nil {
		return err
	}
	st := b.Structure()
	if err := b.Read(0, 0, buf, st.SizeX, st.SizeY); err != nil {
		return fmt.Errorf("read band %d: %w", band, err)
	}
	return nil
}

func (d *Dataset) Write(band int, buf any) error {
	b, err := d.bandAt(band)
	if err != nil {
		return err
	}
	st := b.Structure()
	if err := b.Write(0, 0, buf, st.SizeX, st.SizeY); err != nil {
		return fmt.Errorf("write band %d: %w", band, err)
	}
	return nil
}

func (d *Dataset) SetDescription(band int, desc string) error {
	b, err := d.bandAt(band)
	if err != nil {
		return err
	}
	return b.SetDescription(desc)
}

func (d *Dataset) Description(band int) string {
	b, err := d.bandAt(band)
	if err != nil {
		return ""
	}
	return b.Description()
}

func (d *Dataset) SetMetadata(key, value string) error {
	return d.ds.SetMetadata(key, value)
}

func (d *Dataset) Metadata(key string) string {
	return d.ds.Metadata(key)
}

// Close flushes the GDAL block cache to disk.
func (d *Dataset) Close() error {
	return d.ds.Close()
}
