package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_NeverExceedsGate(t *testing.T) {
	const n, m = 3, 24
	var current, peak, finished atomic.Int64

	sched := NewScheduler(n, discardLogger(), func(string, error, time.Duration) { finished.Add(1) })
	for i := 0; i < m; i++ {
		err := sched.Submit(context.Background(), fmt.Sprintf("a%d", i), func(ctx context.Context) error {
			c := current.Add(1)
			for {
				p := peak.Load()
				if c <= p || peak.CompareAndSwap(p, c) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			return nil
		})
		require.NoError(t, err)
	}
	sched.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(n))
	assert.Equal(t, int64(m), finished.Load())
	// Every unit was returned.
	assert.True(t, sched.sem.TryAcquire(n))
}

func TestScheduler_FailuresAndPanicsAreIsolated(t *testing.T) {
	const n = 2
	var mu sync.Mutex
	outcomes := map[string]error{}

	sched := NewScheduler(n, discardLogger(), func(name string, err error, _ time.Duration) {
		mu.Lock()
		outcomes[name] = err
		mu.Unlock()
	})

	boom := errors.New("boom")
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("a%d", i)
		var task Task
		switch i % 3 {
		case 0:
			task = func(context.Context) error { return boom }
		case 1:
			task = func(context.Context) error { panic("corrupt tile") }
		default:
			task = func(context.Context) error { return nil }
		}
		require.NoError(t, sched.Submit(context.Background(), name, task))
	}
	sched.Wait()

	require.Len(t, outcomes, 10)
	for i := 0; i < 10; i++ {
		err := outcomes[fmt.Sprintf("a%d", i)]
		switch i % 3 {
		case 0:
			assert.ErrorIs(t, err, boom)
		case 1:
			assert.ErrorIs(t, err, ErrTaskPanic)
		default:
			assert.NoError(t, err)
		}
	}
	assert.True(t, sched.sem.TryAcquire(n))
}

func TestScheduler_SubmitBlocksUntilRelease(t *testing.T) {
	sched := NewScheduler(1, discardLogger(), nil)
	release := make(chan struct{})
	require.NoError(t, sched.Submit(context.Background(), "first", func(context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sched.Submit(ctx, "second", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, sched.Submit(context.Background(), "third", func(context.Context) error { return nil }))
	sched.Wait()
}
