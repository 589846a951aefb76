package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJob(t *testing.T) {
	s := New(context.Background(), nil)

	ran := make(chan struct{}, 8)
	_, err := s.AddJob("@every 50ms", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, JobOptions{Name: "tick"})
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatal("job did not run in time")
		}
	}
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	s := New(context.Background(), nil)

	_, err := s.AddJob("not a schedule", func(ctx context.Context) error {
		return nil
	}, JobOptions{Name: "broken"})
	assert.Error(t, err)
}

func TestSchedulerSkipIfRunning(t *testing.T) {
	s := New(context.Background(), nil)

	var running, overlapped atomic.Int32
	release := make(chan struct{})

	_, err := s.AddJob("@every 50ms", func(ctx context.Context) error {
		if running.Add(1) > 1 {
			overlapped.Add(1)
		}
		defer running.Add(-1)

		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, JobOptions{Name: "slow", OverlapPolicy: SkipIfRunning})
	require.NoError(t, err)

	s.Start()
	time.Sleep(300 * time.Millisecond)
	close(release)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	assert.Zero(t, overlapped.Load(), "overlapping runs must be skipped")
}

func TestSchedulerJobErrorDoesNotStopOthers(t *testing.T) {
	s := New(context.Background(), nil)

	ran := make(chan struct{}, 4)
	_, err := s.AddJob("@every 50ms", func(ctx context.Context) error {
		return errors.New("always fails")
	}, JobOptions{Name: "failing"})
	require.NoError(t, err)

	_, err = s.AddJob("@every 50ms", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, JobOptions{Name: "healthy"})
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("healthy job did not run")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := New(context.Background(), nil)
	s.Start()

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
