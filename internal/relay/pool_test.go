package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startPool runs p until the test ends.
func startPool(t *testing.T, p *Pool) {
	t.Helper()

	done := make(chan error, 1)

	go func() { done <- p.Run(context.Background()) }()

	t.Cleanup(func() {
		p.Stop()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("pool did not stop")
		}
	})
}

// blockingTask runs until released or canceled.
func blockingTask(key string, started chan<- struct{}, release <-chan struct{}) Task {
	return Task{Key: key, Run: func(ctx context.Context) error {
		started <- struct{}{}

		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

func TestPool_RunsTask(t *testing.T) {
	t.Parallel()

	p := NewPool(2, 4, testLogger(t))
	startPool(t, p)

	var ran atomic.Bool

	_, err := p.Submit(Task{Key: "u1", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ran.Load() && !p.Active("u1") }, 2*time.Second, 5*time.Millisecond)
}

func TestPool_OneActiveRunPerKey(t *testing.T) {
	t.Parallel()

	p := NewPool(2, 4, testLogger(t))
	startPool(t, p)

	started := make(chan struct{}, 1)
	release := make(chan struct{})

	_, err := p.Submit(blockingTask("u1", started, release))
	require.NoError(t, err)
	<-started

	_, err = p.Submit(blockingTask("u1", started, release))
	require.ErrorIs(t, err, ErrBusy)

	_, err = p.Submit(Task{Key: "u2", Run: func(context.Context) error { return nil }})
	require.NoError(t, err, "other users are not blocked")

	close(release)

	require.Eventually(t, func() bool { return !p.Active("u1") }, 2*time.Second, 5*time.Millisecond)

	_, err = p.Submit(Task{Key: "u1", Run: func(context.Context) error { return nil }})
	require.NoError(t, err)
}

func TestPool_QueueFull(t *testing.T) {
	t.Parallel()

	// No workers are running, so nothing drains the queue.
	p := NewPool(1, 1, testLogger(t))

	_, err := p.Submit(Task{Key: "a", Run: func(context.Context) error { return nil }})
	require.NoError(t, err)

	_, err = p.Submit(Task{Key: "b", Run: func(context.Context) error { return nil }})
	require.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, p.Active("b"))
}

func TestPool_CancelRunningTask(t *testing.T) {
	t.Parallel()

	p := NewPool(1, 1, testLogger(t))
	startPool(t, p)

	started := make(chan struct{}, 1)
	finished := make(chan error, 1)

	_, err := p.Submit(Task{Key: "u1", Run: func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		finished <- ctx.Err()

		return ctx.Err()
	}})
	require.NoError(t, err)
	<-started

	assert.True(t, p.Cancel("u1"))

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not canceled")
	}

	assert.False(t, p.Cancel("nobody"))
}

func TestPool_CancelQueuedTaskNeverRuns(t *testing.T) {
	t.Parallel()

	p := NewPool(1, 2, testLogger(t))
	startPool(t, p)

	started := make(chan struct{}, 2)
	release := make(chan struct{})

	_, err := p.Submit(blockingTask("busy", started, release))
	require.NoError(t, err)
	<-started

	var ran atomic.Bool

	_, err = p.Submit(Task{Key: "queued", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}})
	require.NoError(t, err)

	require.True(t, p.Cancel("queued"))
	close(release)

	require.Eventually(t, func() bool { return !p.Active("queued") }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, ran.Load())
}

func TestPool_CancelQueuedTaskFreesKey(t *testing.T) {
	t.Parallel()

	p := NewPool(1, 2, testLogger(t))
	startPool(t, p)

	started := make(chan struct{}, 1)
	release := make(chan struct{})

	_, err := p.Submit(blockingTask("busy", started, release))
	require.NoError(t, err)
	<-started

	var first, second atomic.Bool

	_, err = p.Submit(Task{Key: "u", Run: func(context.Context) error {
		first.Store(true)
		return nil
	}})
	require.NoError(t, err)

	require.True(t, p.Cancel("u"))
	assert.False(t, p.Active("u"))

	_, err = p.Submit(Task{Key: "u", Run: func(context.Context) error {
		second.Store(true)
		return nil
	}})
	require.NoError(t, err)
	assert.True(t, p.Active("u"))

	close(release)

	require.Eventually(t, func() bool { return second.Load() && !p.Active("u") }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, first.Load())
}

func TestPool_StopRejectsAndCancels(t *testing.T) {
	t.Parallel()

	p := NewPool(1, 1, testLogger(t))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	started := make(chan struct{}, 1)
	taskErr := make(chan error, 1)

	_, err := p.Submit(Task{Key: "u1", Run: func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		taskErr <- ctx.Err()

		return ctx.Err()
	}})
	require.NoError(t, err)
	<-started

	p.Stop()

	require.ErrorIs(t, <-taskErr, context.Canceled)
	require.NoError(t, <-done)

	_, err = p.Submit(Task{Key: "u2", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_RunReturnsOnContextCancel(t *testing.T) {
	t.Parallel()

	p := NewPool(2, 2, testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	_, err := p.Submit(Task{Key: "x", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_PanickingTaskIsContained(t *testing.T) {
	t.Parallel()

	p := NewPool(1, 2, testLogger(t))
	startPool(t, p)

	_, err := p.Submit(Task{Key: "boom", Run: func(context.Context) error {
		panic("kaboom")
	}})
	require.NoError(t, err)

	var ran atomic.Bool

	require.Eventually(t, func() bool { return !p.Active("boom") }, 2*time.Second, 5*time.Millisecond)

	_, err = p.Submit(Task{Key: "after", Run: func(context.Context) error {
		ran.Store(true)
		return errors.New("ordinary failure")
	}})
	require.NoError(t, err)

	require.Eventually(t, ran.Load, 2*time.Second, 5*time.Millisecond)
}
