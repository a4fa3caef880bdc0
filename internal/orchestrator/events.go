package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brensch/s2composite/internal/db"
)

var (
	// ErrInputAbsent is the only batch-level failure: nothing is processed.
	ErrInputAbsent = errors.New("input directory does not exist")
	// ErrTaskPanic wraps a panic recovered from an archive task.
	ErrTaskPanic = errors.New("archive task panicked")
)

// Stage is where an archive currently is in the pipeline.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageSkipped    Stage = "skipped"
	StageExtracting Stage = "extracting"
	StageLocating   Stage = "locating"
	StageWriting    Stage = "writing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Terminal reports whether no further events follow for the archive.
func (s Stage) Terminal() bool {
	return s == StageSkipped || s == StageDone || s == StageFailed
}

// ArchiveEvent is published on every stage change of an archive.
type ArchiveEvent struct {
	Archive string
	Stage   Stage
	Output  string
	Err     error
	Elapsed time.Duration
}

// ProgressFunc receives ArchiveEvents. It is called from worker goroutines
// and must be safe for concurrent use.
type ProgressFunc func(ArchiveEvent)

// Recorder persists run history. A nil Recorder disables persistence.
type Recorder interface {
	LogEvent(ctx context.Context, e db.Event) error
	RecordComposite(ctx context.Context, e db.CatalogEntry) error
	CompletedArchives(ctx context.Context, logger *slog.Logger) (map[string]string, error)
}

// Summary counts archive outcomes for one batch.
type Summary struct {
	RunID      string
	Discovered int
	Skipped    int
	Succeeded  int
	Failed     int
	Duration   time.Duration
}
