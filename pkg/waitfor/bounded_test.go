package waitfor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoll_ImmediateChecksOnce(t *testing.T) {
	var calls atomic.Int32
	probe := func(context.Context) (bool, error) {
		calls.Add(1)
		return false, nil
	}

	err := Poll(Immediate(context.Background()), time.Millisecond, probe)
	if !errors.Is(err, ErrConditionNotMet) {
		t.Fatalf("err = %v, want ErrConditionNotMet", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPoll_RetriesUntilTrue(t *testing.T) {
	var calls atomic.Int32
	probe := func(context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	}

	if err := Poll(context.Background(), 5*time.Millisecond, probe); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestPoll_ProbeErrorStops(t *testing.T) {
	boom := errors.New("boom")
	err := Poll(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	if err != boom {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestPoll_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := Poll(ctx, 5*time.Millisecond, func(context.Context) (bool, error) { return false, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestBounded_NegativeWaitsWithoutBound(t *testing.T) {
	err := Bounded(context.Background(), -1, "slow", func(ctx context.Context) error {
		if IsImmediate(ctx) {
			t.Error("negative timeout must not be immediate")
		}
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("bounded: %v", err)
	}
}

func TestBounded_ZeroIsImmediate(t *testing.T) {
	var immediate bool
	_ = Bounded(context.Background(), 0, "now", func(ctx context.Context) error {
		immediate = IsImmediate(ctx)
		return nil
	})
	if !immediate {
		t.Error("zero timeout should run in immediate mode")
	}
}

func TestBounded_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Bounded(ctx, time.Second, "blocked", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
