package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLimiter_AcquireRelease(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	ctx := context.Background()

	assert.Equal(t, 0, limiter.ActiveCount())
	assert.Equal(t, 2, limiter.Status().Available)

	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))
	assert.Equal(t, 2, limiter.ActiveCount())
	assert.Equal(t, 0, limiter.Status().Available)

	limiter.Release()
	assert.Equal(t, 1, limiter.ActiveCount())
	assert.Equal(t, 1, limiter.Status().Available)

	limiter.Release()
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestRunLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewRunLimiter(1, 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTooManyRuns)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestRunLimiter_NeverExceedsMax(t *testing.T) {
	const maxConcurrent = 3
	limiter := NewRunLimiter(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if n := limiter.ActiveCount(); n > maxObserved {
				maxObserved = n
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxObserved, maxConcurrent)
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestRunLimiter_ContextCancellation(t *testing.T) {
	limiter := NewRunLimiter(1, 5*time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- limiter.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestRunLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRunLimiter(2, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))
	require.NoError(t, limiter.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() { done <- limiter.WaitForDrain(context.Background()) }()

	limiter.Release()
	select {
	case <-done:
		t.Fatal("WaitForDrain returned with one run active")
	case <-time.After(100 * time.Millisecond):
	}

	limiter.Release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after all runs released")
	}
}

func TestRunLimiter_WaitForDrainCancelled(t *testing.T) {
	limiter := NewRunLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, limiter.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestRunLimiter_Defaults(t *testing.T) {
	limiter := NewRunLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrentRuns, limiter.MaxConcurrent())
	assert.Equal(t, DefaultMaxWait, limiter.maxWait)
}
