// Package catalog exports the composite catalog as a Parquet file so
// downstream tools can index composites without opening them.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brensch/s2composite/internal/db"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// FileName is the catalog written into the output directory.
const FileName = "catalog.parquet"

// Record is one Parquet row. Times are Unix epoch milliseconds.
type Record struct {
	Archive    string `parquet:"name=archive, type=BYTE_ARRAY, convertedtype=UTF8"`
	OutputPath string `parquet:"name=output_path, type=BYTE_ARRAY, convertedtype=UTF8"`
	Bands      string `parquet:"name=bands, type=BYTE_ARRAY, convertedtype=UTF8"`
	BandCount  int32  `parquet:"name=band_count, type=INT32"`
	Width      int32  `parquet:"name=width, type=INT32"`
	Height     int32  `parquet:"name=height, type=INT32"`
	DataType   string `parquet:"name=data_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Projection string `parquet:"name=projection, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartMS    int64  `parquet:"name=start_ms, type=INT64"`
	EndMS      int64  `parquet:"name=end_ms, type=INT64"`
	RunID      string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// FromEntry converts a database catalog row.
func FromEntry(e db.CatalogEntry) Record {
	return Record{
		Archive:    e.Archive,
		OutputPath: e.OutputPath,
		Bands:      strings.Join(e.Bands, ","),
		BandCount:  int32(len(e.Bands)),
		Width:      int32(e.Width),
		Height:     int32(e.Height),
		DataType:   e.DataType,
		Projection: e.Projection,
		StartMS:    e.StartMS,
		EndMS:      e.EndMS,
		RunID:      e.RunID,
	}
}

// Write stores records at path with Snappy compression. The file is built
// next to path and renamed into place once complete.
func Write(path string, records []Record, logger *slog.Logger) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	tmp := path + ".tmp"
	fw, err := local.NewLocalFileWriter(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(Record), 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("init parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	var writeErrs []error
	for i := range records {
		if err := pw.Write(records[i]); err != nil {
			writeErrs = append(writeErrs, fmt.Errorf("write %s: %w", records[i].Archive, err))
		}
	}
	stopErr := pw.WriteStop()
	closeErr := fw.Close()
	if err := errors.Join(append(writeErrs, stopErr, closeErr)...); err != nil {
		return fmt.Errorf("write catalog %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalise catalog %s: %w", path, err)
	}
	logger.Info("Catalog written.", slog.String("path", path), slog.Int("records", len(records)))
	return nil
}

// Read loads every record from a catalog file.
func Read(path string) ([]Record, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Record), 4)
	if err != nil {
		return nil, fmt.Errorf("init parquet reader for %s: %w", path, err)
	}
	defer pr.ReadStop()

	records := make([]Record, int(pr.GetNumRows()))
	if len(records) == 0 {
		return records, nil
	}
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}
