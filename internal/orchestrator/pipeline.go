package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/s2composite/internal/archive"
	"github.com/brensch/s2composite/internal/bands"
	"github.com/brensch/s2composite/internal/db"
	"github.com/brensch/s2composite/internal/product"
)

// processArchive runs the whole per-archive pipeline: extract, locate bands,
// read the reference grid and time window, write the composite, catalogue
// it. Any returned error is contained to this archive.
func (b *batch) processArchive(ctx context.Context, archivePath string) error {
	name := filepath.Base(archivePath)
	l := b.logger.With(slog.String("archive", name))
	start := time.Now()

	l.Info("Processing archive.")
	b.record(ctx, db.Event{Filename: name, FileType: db.FileTypeArchive, Event: db.EventProcessStart})

	b.emit(ArchiveEvent{Archive: name, Stage: StageExtracting, Elapsed: time.Since(start)})
	b.record(ctx, db.Event{Filename: name, FileType: db.FileTypeArchive, Event: db.EventExtractStart})
	dir, err := archive.Extract(ctx, archivePath, b.cfg.OutputDir, l)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	extractDur := time.Since(start)
	b.record(ctx, db.Event{Filename: name, FileType: db.FileTypeArchive, Event: db.EventExtractEnd, OutputPath: dir, Duration: &extractDur})

	b.emit(ArchiveEvent{Archive: name, Stage: StageLocating, Elapsed: time.Since(start)})
	table, err := bands.Locate(dir, b.cfg.Bands, b.cfg.TileExt, l)
	if err != nil {
		return fmt.Errorf("locate bands: %w", err)
	}
	if table.Empty() {
		return fmt.Errorf("%w in %s", bands.ErrNoBands, dir)
	}
	l.Debug("Band table built.", slog.Any("bands", table.Bands()))

	refPath, grid, err := b.writer.Reference(table)
	if err != nil {
		return err
	}

	mtdPath, err := product.FindMetadata(dir, b.cfg.MetadataFile)
	if err != nil {
		return err
	}
	window, err := product.ReadTimeWindow(mtdPath)
	if err != nil {
		return err
	}
	l.Debug("Time window read.", slog.Int64("start_ms", window.StartMS), slog.Duration("span", window.Duration()))

	b.emit(ArchiveEvent{Archive: name, Stage: StageWriting, Elapsed: time.Since(start)})
	res, err := b.writer.Write(ctx, dir, table, refPath, grid, window)
	if err != nil {
		return fmt.Errorf("write composite: %w", err)
	}

	if b.recorder != nil {
		entry := db.CatalogEntry{
			Archive:    name,
			OutputPath: res.Path,
			Bands:      res.Bands,
			Width:      res.Grid.Width,
			Height:     res.Grid.Height,
			DataType:   res.Grid.DataType.String(),
			Projection: res.Grid.Projection,
			StartMS:    res.Window.StartMS,
			EndMS:      res.Window.EndMS,
			RunID:      b.runID,
		}
		if err := b.recorder.RecordComposite(ctx, entry); err != nil {
			l.Warn("Failed to catalogue composite.", "error", err)
		}
	}

	b.record(ctx, db.Event{Filename: filepath.Base(res.Path), FileType: db.FileTypeComposite, Event: db.EventProcessEnd, OutputPath: res.Path, Message: strings.Join(res.Bands, ",")})
	elapsed := time.Since(start)
	b.record(ctx, db.Event{Filename: name, FileType: db.FileTypeArchive, Event: db.EventProcessEnd, OutputPath: res.Path, Duration: &elapsed})
	l.Info("Archive processed.", slog.String("output", res.Path), slog.Duration("duration", elapsed.Round(time.Millisecond)))
	b.emit(ArchiveEvent{Archive: name, Stage: StageDone, Output: res.Path, Elapsed: elapsed})
	return nil
}
