package app

import (
	"fmt"

	"github.com/brensch/s2composite/internal/orchestrator"
)

// ArchiveMsg carries one pipeline stage change into the UI.
type ArchiveMsg orchestrator.ArchiveEvent

// BatchFinishedMsg signals that RunBatch returned.
type BatchFinishedMsg struct {
	Summary orchestrator.Summary
	Err     error
}

func (a ArchiveMsg) String() string {
	return fmt.Sprintf("Archive %s: %s", a.Archive, a.Stage)
}

func (b BatchFinishedMsg) String() string {
	return fmt.Sprintf("BatchFinished %s: %d ok, %d failed", b.Summary.RunID, b.Summary.Succeeded, b.Summary.Failed)
}
