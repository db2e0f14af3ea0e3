package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunOnceDispatchesByName(t *testing.T) {
	var calls int32
	s := New([]Job{
		{Name: "a", Interval: time.Second, Run: func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 3, nil
		}},
		{Name: "b", Interval: time.Second, Run: func(context.Context) (int, error) {
			return 0, errors.New("boom")
		}},
	}, time.Second, nil)

	changed, err := s.RunOnce(context.Background(), "a")
	if err != nil || changed != 3 {
		t.Fatalf("unexpected result: changed=%d err=%v", changed, err)
	}
	if _, err := s.RunOnce(context.Background(), "b"); err == nil {
		t.Fatalf("expected job error to surface")
	}
	if _, err := s.RunOnce(context.Background(), "missing"); err == nil {
		t.Fatalf("expected unknown job error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestTickAppliesDeadline(t *testing.T) {
	s := New([]Job{{Name: "slow", Interval: time.Second, Run: func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}}, 20*time.Millisecond, nil)

	started := time.Now()
	_, err := s.RunOnce(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(started) > time.Second {
		t.Fatalf("tick deadline was not enforced")
	}
}

func TestRunFiresJobsUntilCancelled(t *testing.T) {
	var calls int32
	s := New([]Job{
		{Name: "fast", Interval: time.Second, Run: func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, nil
		}},
		{Name: "disabled", Interval: 0},
	}, time.Second, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if atomic.LoadInt32(&calls) < 1 {
		t.Fatalf("expected job to fire at least once")
	}
}
