package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsEachJobOnItsOwnInterval(t *testing.T) {
	var fastCount, slowCount int32

	s := New()
	s.Register(Job{
		Name:     "fast",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&fastCount, 1)
			return nil
		},
	})
	s.Register(Job{
		Name:     "slow",
		Interval: 500 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&slowCount, 1)
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	require.Greater(t, int(atomic.LoadInt32(&fastCount)), 3)
	require.Equal(t, int32(0), atomic.LoadInt32(&slowCount))
}

func TestScheduler_JobFailureDoesNotStopOtherJobs(t *testing.T) {
	var failingRuns, healthyRuns int32

	s := New()
	s.Register(Job{
		Name:     "failing",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&failingRuns, 1)
			return context.DeadlineExceeded
		},
	})
	s.Register(Job{
		Name:     "healthy",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&healthyRuns, 1)
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(40 * time.Millisecond)
	s.Stop()

	require.Greater(t, int(atomic.LoadInt32(&failingRuns)), 1)
	require.Greater(t, int(atomic.LoadInt32(&healthyRuns)), 1)
}

func TestScheduler_StopWaitsForRunningJobs(t *testing.T) {
	started := make(chan struct{})
	released := make(chan struct{})

	s := New()
	s.Register(Job{
		Name:     "slow-tick",
		Interval: time.Millisecond,
		Run: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-released
			return nil
		},
	})

	s.Start(context.Background())
	<-started
	close(released)
	s.Stop()
}
