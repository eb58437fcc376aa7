package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ocean-map-engine/internal/engine"
	"github.com/couchcryptid/ocean-map-engine/internal/observability"
)

func startPool(t *testing.T, workers, queueSize int) (*engine.Pool, context.CancelFunc) {
	t.Helper()
	p := engine.New(workers, queueSize, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) == nil
	}, time.Second, 5*time.Millisecond)

	return p, cancel
}

func TestPool_Do_ExecutesJob(t *testing.T) {
	p, _ := startPool(t, 2, 8)

	var result int
	err := p.Do(context.Background(), "heatmap", func(_ context.Context) error {
		result = 42
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestPool_Do_PropagatesJobError(t *testing.T) {
	p, _ := startPool(t, 1, 8)

	wantErr := errors.New("bad rows")
	err := p.Do(context.Background(), "vectors", func(_ context.Context) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
}

func TestPool_Submit_QueueFull(t *testing.T) {
	p, _ := startPool(t, 1, 1)

	gate := make(chan struct{})
	defer close(gate)

	// Occupy the single worker, then fill the single queue slot.
	err := p.Submit(context.Background(), engine.Job{Name: "block", Fn: func(_ context.Context) error {
		<-gate
		return nil
	}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.Submit(context.Background(), engine.Job{Name: "fill", Fn: func(_ context.Context) error {
			return nil
		}}) == nil
	}, time.Second, time.Millisecond)

	err = p.Submit(context.Background(), engine.Job{Name: "overflow", Fn: func(_ context.Context) error {
		return nil
	}})
	assert.ErrorIs(t, err, engine.ErrQueueFull)
}

func TestPool_Do_CancelledCaller(t *testing.T) {
	p, _ := startPool(t, 1, 8)

	gate := make(chan struct{})
	defer close(gate)

	go p.Do(context.Background(), "block", func(_ context.Context) error { //nolint:errcheck
		<-gate
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, "waiting", func(_ context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ReadinessReflectsLifecycle(t *testing.T) {
	p := engine.New(1, 1, slog.Default(), observability.NewMetricsForTesting())
	assert.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return p.CheckReadiness(context.Background()) == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Error(t, p.CheckReadiness(context.Background()))
}
