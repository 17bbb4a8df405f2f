package krunner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// Mode selects how matching work is scheduled.
type Mode int

const (
	// ModeSync runs one match at a time on the goroutine handling the call.
	ModeSync Mode = iota
	// ModeAsync runs each match as an independent task on a bounded pool.
	ModeAsync
)

// ParseMode parses "sync" or "async".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "sync":
		return ModeSync, nil
	case "async":
		return ModeAsync, nil
	default:
		return ModeSync, fmt.Errorf("unknown mode %q (want sync or async)", s)
	}
}

func (m Mode) String() string {
	if m == ModeAsync {
		return "async"
	}
	return "sync"
}

type matchTask func(ctx context.Context) ([]Match, error)

// executor runs a match task and waits for its result. Tasks must not panic.
type executor interface {
	execute(ctx context.Context, task matchTask) ([]Match, error)
}

// syncExecutor runs one task at a time on the calling goroutine. Callers
// queued behind a running task give up when their context ends.
type syncExecutor struct {
	turn *semaphore.Weighted
}

func newSyncExecutor() *syncExecutor {
	return &syncExecutor{turn: semaphore.NewWeighted(1)}
}

func (e *syncExecutor) execute(ctx context.Context, task matchTask) ([]Match, error) {
	if err := e.turn.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.turn.Release(1)
	return task(ctx)
}

type taskResult struct {
	matches []Match
	err     error
}

// asyncExecutor gives every task its own goroutine and context. A caller
// whose context ends stops waiting; the abandoned task keeps its pool slot
// until it returns.
type asyncExecutor struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func newAsyncExecutor(workers int, timeout time.Duration) *asyncExecutor {
	return &asyncExecutor{
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
	}
}

func (e *asyncExecutor) execute(ctx context.Context, task matchTask) ([]Match, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for worker: %w", err)
	}

	done := make(chan taskResult, 1)
	go func() {
		defer e.sem.Release(1)
		matches, err := task(ctx)
		done <- taskResult{matches: matches, err: err}
	}()

	select {
	case r := <-done:
		return r.matches, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
