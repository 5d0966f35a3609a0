package core

// limiter.go caps how many batch runs the server processes at once.
//
// Each run holds one slot for its whole duration. When every slot is busy a
// new run waits up to maxWait and then fails with ErrTooManyRuns. Shutdown
// calls WaitForDrain so in-flight runs can finish.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyRuns is returned when no processing slot frees up in time.
var ErrTooManyRuns = errors.New("too many runs in progress")

const (
	// DefaultMaxConcurrentRuns is used for a non-positive limit.
	DefaultMaxConcurrentRuns = 5

	// DefaultMaxWait is used for a non-positive wait.
	DefaultMaxWait = 30 * time.Second

	drainPollInterval = 50 * time.Millisecond
)

// RunLimiter is a counting semaphore for batch runs.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewRunLimiter allows at most maxConcurrent simultaneous runs.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait.
// The caller must call Release once the run is over.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyRuns
	}
}

// Release returns a slot taken by Acquire.
func (l *RunLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of runs holding a slot.
func (l *RunLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the slot count.
func (l *RunLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	if l.ActiveCount() == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a snapshot of the limiter for health output.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *RunLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
