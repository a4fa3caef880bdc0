package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brensch/s2composite/internal/archive"
	"github.com/brensch/s2composite/internal/composite"
	"github.com/brensch/s2composite/internal/config"
	"github.com/brensch/s2composite/internal/db"
	"github.com/brensch/s2composite/internal/raster"
	"github.com/google/uuid"
)

// batch carries the state shared by the tasks of one RunBatch call.
type batch struct {
	cfg        config.Config
	driver     raster.Driver
	writer     *composite.Writer
	recorder   Recorder
	logger     *slog.Logger
	onProgress ProgressFunc
	runID      string

	mu      sync.Mutex
	summary Summary
}

// RunBatch composites every archive in cfg.InputDir into cfg.OutputDir,
// running at most cfg.MaxConcurrent archives at once. Per-archive failures
// are logged, recorded and counted, never returned: the only errors are a
// missing input directory (ErrInputAbsent), an unusable output directory or
// a cancelled ctx. RunBatch returns once every started archive has finished.
func RunBatch(ctx context.Context, cfg config.Config, driver raster.Driver, recorder Recorder, logger *slog.Logger, onProgress ProgressFunc) (Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))

	info, err := os.Stat(cfg.InputDir)
	if err != nil || !info.IsDir() {
		logger.Error("Input directory missing, nothing to do.", slog.String("input_dir", cfg.InputDir))
		return Summary{RunID: runID}, fmt.Errorf("%w: %s", ErrInputAbsent, cfg.InputDir)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Summary{RunID: runID}, fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	archives, err := archive.List(cfg.InputDir, cfg.ArchiveExt)
	if err != nil {
		return Summary{RunID: runID}, err
	}
	logger.Info("Discovered archives.", slog.Int("count", len(archives)), slog.String("input_dir", cfg.InputDir))

	b := &batch{
		cfg:        cfg,
		driver:     driver,
		writer:     composite.NewWriter(driver, cfg.CompositeOptions(), logger),
		recorder:   recorder,
		logger:     logger,
		onProgress: onProgress,
		runID:      runID,
		summary:    Summary{RunID: runID, Discovered: len(archives)},
	}

	completed := b.completedArchives(ctx)
	sched := NewScheduler(cfg.MaxConcurrent, logger, b.finish)

	var admitErr error
	for _, path := range archives {
		name := filepath.Base(path)
		if out, done := completed[name]; done && b.outputExists(out) {
			b.skip(ctx, name, out)
			continue
		}
		b.record(ctx, db.Event{Filename: name, FileType: db.FileTypeArchive, Event: db.EventDiscovered, OutputPath: path})
		b.emit(ArchiveEvent{Archive: name, Stage: StageQueued})
		if err := sched.Submit(ctx, name, func(ctx context.Context) error {
			return b.processArchive(ctx, path)
		}); err != nil {
			admitErr = err
			break
		}
	}
	sched.Wait()

	b.mu.Lock()
	summary := b.summary
	b.mu.Unlock()
	summary.Duration = time.Since(start)

	logger.Info("Batch finished.",
		slog.Int("discovered", summary.Discovered),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
		slog.Duration("duration", summary.Duration.Round(time.Millisecond)))

	if admitErr != nil {
		return summary, errors.Join(admitErr, ctx.Err())
	}
	return summary, nil
}

func (b *batch) completedArchives(ctx context.Context) map[string]string {
	if b.recorder == nil || b.cfg.Force {
		return nil
	}
	completed, err := b.recorder.CompletedArchives(ctx, b.logger)
	if err != nil {
		b.logger.Warn("Could not read completed archives, processing everything.", "error", err)
	}
	return completed
}

// outputExists checks through the driver so it works for any backend.
func (b *batch) outputExists(path string) bool {
	ds, err := b.driver.Open(path)
	if err != nil {
		return false
	}
	ds.Close()
	return true
}

func (b *batch) skip(ctx context.Context, name, out string) {
	b.logger.Info("Skipping archive, composite already exists.", slog.String("archive", name), slog.String("output", out))
	b.record(ctx, db.Event{Filename: name, FileType: db.FileTypeArchive, Event: db.EventSkipProcess, OutputPath: out, Message: "composite already exists"})
	b.mu.Lock()
	b.summary.Skipped++
	b.mu.Unlock()
	b.emit(ArchiveEvent{Archive: name, Stage: StageSkipped, Output: out})
}

// finish is the scheduler's outcome hook; it runs for every admitted archive.
func (b *batch) finish(name string, err error, elapsed time.Duration) {
	l := b.logger.With(slog.String("archive", name))
	b.mu.Lock()
	if err != nil {
		b.summary.Failed++
	} else {
		b.summary.Succeeded++
	}
	b.mu.Unlock()

	if err != nil {
		l.Error("Archive failed, skipping.", "error", err, slog.Duration("duration", elapsed.Round(time.Millisecond)))
		b.record(context.Background(), db.Event{Filename: name, FileType: db.FileTypeArchive, Event: db.EventError, Message: err.Error(), Duration: &elapsed})
		b.emit(ArchiveEvent{Archive: name, Stage: StageFailed, Err: err, Elapsed: elapsed})
	}
}

func (b *batch) emit(e ArchiveEvent) {
	if b.onProgress != nil {
		b.onProgress(e)
	}
}

func (b *batch) record(ctx context.Context, e db.Event) {
	if b.recorder == nil {
		return
	}
	e.RunID = b.runID
	if err := b.recorder.LogEvent(ctx, e); err != nil {
		b.logger.Warn("Failed to record event.", "event", e.Event, "archive", e.Filename, "error", err)
	}
}
