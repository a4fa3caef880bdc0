package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of archive work.
type Task func(ctx context.Context) error

// FinishFunc observes every task outcome, including recovered panics.
// It runs on the task's goroutine before the gate unit is released.
type FinishFunc func(name string, err error, elapsed time.Duration)

// Scheduler admits tasks through a counting gate of fixed size. Submit blocks
// while the gate is exhausted; each admitted task releases its unit exactly
// once when it returns, fails or panics.
type Scheduler struct {
	sem      *semaphore.Weighted
	size     int64
	wg       sync.WaitGroup
	logger   *slog.Logger
	onFinish FinishFunc
}

// NewScheduler builds a scheduler running at most maxConcurrent tasks at once.
func NewScheduler(maxConcurrent int, logger *slog.Logger, onFinish FinishFunc) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		size:     int64(maxConcurrent),
		logger:   logger,
		onFinish: onFinish,
	}
}

// Submit waits for a free gate unit and starts task on its own goroutine.
// It returns an error only when ctx ends before a unit becomes free, in
// which case task never runs.
func (s *Scheduler) Submit(ctx context.Context, name string, task Task) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("admit %s: %w", name, err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		start := time.Now()
		err := s.run(ctx, name, task)
		if s.onFinish != nil {
			s.onFinish(name, err, time.Since(start))
		}
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Task panicked.", slog.String("task", name), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task(ctx)
}

// Wait blocks until every submitted task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
