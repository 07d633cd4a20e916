package waitfor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is a test entity that logs which checks ran, in order.
type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.log = append(r.log, s)
	r.mu.Unlock()
}

func (r *recorder) entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func logging(key Key) Condition[*recorder] {
	return New(key, func(_ context.Context, r *recorder) error {
		r.add(string(key))
		return nil
	})
}

func failing(key Key, err error) Condition[*recorder] {
	return New(key, func(_ context.Context, r *recorder) error {
		r.add(string(key))
		return err
	})
}

// after succeeds once d has elapsed.
func after(key Key, d time.Duration) Condition[*recorder] {
	return New(key, func(ctx context.Context, r *recorder) error {
		select {
		case <-time.After(d):
			r.add(string(key))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// never blocks until ctx is done.
func never(key Key) Condition[*recorder] {
	return New(key, func(ctx context.Context, _ *recorder) error {
		<-ctx.Done()
		return ctx.Err()
	})
}

func TestEngine_PreconditionsRunInOrderOnce(t *testing.T) {
	e := NewEngine[*recorder]()
	present, visible, clickable := logging("present"), logging("visible"), logging("clickable")

	if err := e.Require(clickable, visible); err != nil {
		t.Fatalf("require: %v", err)
	}
	if err := e.Require(visible, present); err != nil {
		t.Fatalf("require: %v", err)
	}

	r := &recorder{}
	if err := e.Evaluate(context.Background(), clickable, r); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	got := strings.Join(r.entries(), ",")
	if got != "present,visible,clickable" {
		t.Errorf("order = %q, want %q", got, "present,visible,clickable")
	}
}

func TestEngine_DiamondChecksSharedPreconditionOnce(t *testing.T) {
	e := NewEngine[*recorder]()
	base, left, right, top := logging("base"), logging("left"), logging("right"), logging("top")

	for _, reg := range [][2]Condition[*recorder]{{top, left}, {top, right}, {left, base}, {right, base}} {
		if err := e.Require(reg[0], reg[1]); err != nil {
			t.Fatalf("require: %v", err)
		}
	}

	r := &recorder{}
	if err := e.Evaluate(context.Background(), top, r); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got := strings.Join(r.entries(), ",")
	if got != "base,left,right,top" {
		t.Errorf("order = %q, want %q", got, "base,left,right,top")
	}
}

func TestEngine_SameFamilyPreconditionsAllRun(t *testing.T) {
	e := NewEngine[*recorder]()
	text := func(want string) Condition[*recorder] {
		return Named("text-present", "text:"+want, func(_ context.Context, r *recorder) error {
			r.add("text:" + want)
			return nil
		})
	}
	submit := logging("submit")

	for _, want := range []string{"alice", "bob"} {
		if err := e.Require(submit, text(want)); err != nil {
			t.Fatalf("require %s: %v", want, err)
		}
	}

	r := &recorder{}
	if err := e.Evaluate(context.Background(), submit, r); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := strings.Join(r.entries(), ","); got != "text:alice,text:bob,submit" {
		t.Errorf("order = %q, want %q", got, "text:alice,text:bob,submit")
	}
}

func TestEngine_RegistrationsAccumulate(t *testing.T) {
	e := NewEngine[*recorder]()
	target, a, b := logging("target"), logging("a"), logging("b")

	_ = e.Require(target, a)
	_ = e.Require(target, b)

	pre := e.Preconditions(target.Key())
	if len(pre) != 2 || pre[0].Key() != "a" || pre[1].Key() != "b" {
		t.Fatalf("preconditions = %v, want [a b]", pre)
	}
}

func TestEngine_RequireRejectsCycles(t *testing.T) {
	e := NewEngine[*recorder]()
	a, b, c := logging("a"), logging("b"), logging("c")

	if err := e.Require(a, b); err != nil {
		t.Fatalf("require a<-b: %v", err)
	}
	if err := e.Require(b, c); err != nil {
		t.Fatalf("require b<-c: %v", err)
	}
	if err := e.Require(c, a); !errors.Is(err, ErrPreconditionCycle) {
		t.Errorf("require c<-a: got %v, want ErrPreconditionCycle", err)
	}
	if err := e.Require(a, a); !errors.Is(err, ErrPreconditionCycle) {
		t.Errorf("require a<-a: got %v, want ErrPreconditionCycle", err)
	}
	if n := len(e.Preconditions("c")); n != 0 {
		t.Errorf("rejected registration leaked into graph: %d entries", n)
	}
}

func TestEngine_PreconditionFailureShortCircuits(t *testing.T) {
	e := NewEngine[*recorder]()
	boom := errors.New("boom")
	pre, target := failing("pre", boom), logging("target")
	_ = e.Require(target, pre)

	r := &recorder{}
	err := e.Evaluate(context.Background(), target, r)
	if err != boom {
		t.Fatalf("err = %v, want the precondition's error unchanged", err)
	}
	if got := strings.Join(r.entries(), ","); got != "pre" {
		t.Errorf("ran %q, target check must not run", got)
	}
}

func TestEngine_ImmediateSkipsPreconditions(t *testing.T) {
	e := NewEngine[*recorder]()
	pre, target := logging("pre"), logging("target")
	_ = e.Require(target, pre)

	r := &recorder{}
	if err := e.Wait(context.Background(), r, target, 0); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := strings.Join(r.entries(), ","); got != "target" {
		t.Errorf("ran %q, want only target", got)
	}
}

func TestEngine_WaitTimesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := NewEngine[*recorder]()
	start := time.Now()
	err := e.Wait(ctx, &recorder{}, after("slow", 500*time.Millisecond), 50*time.Millisecond)
	elapsed := time.Since(start)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if te.Bound != 50*time.Millisecond {
		t.Errorf("bound = %s, want 50ms", te.Bound)
	}
	if elapsed < 50*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("timed out after %s, want ~50ms", elapsed)
	}
}

func TestEngine_WaitResolvesBeforeBound(t *testing.T) {
	e := NewEngine[*recorder]()
	if err := e.Wait(context.Background(), &recorder{}, after("fast", 10*time.Millisecond), 50*time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestEngine_OrResolvesOnFirstSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := NewEngine[*recorder]()
	either := e.Or(after("a", 10*time.Millisecond), never("b"))

	start := time.Now()
	if err := e.Wait(ctx, &recorder{}, either, time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("or resolved after %s, want ~10ms", elapsed)
	}
}

func TestEngine_OrFailsWhenBothFail(t *testing.T) {
	e := NewEngine[*recorder]()
	errA, errB := errors.New("a"), errors.New("b")
	either := e.Or(failing("a", errA), failing("b", errB))

	err := e.Evaluate(context.Background(), either, &recorder{})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("err = %v, want both branch errors", err)
	}
}

func TestEngine_AndRequiresBoth(t *testing.T) {
	e := NewEngine[*recorder]()
	boom := errors.New("boom")

	r := &recorder{}
	if err := e.Evaluate(context.Background(), e.And(logging("a"), logging("b")), r); err != nil {
		t.Fatalf("and of successes: %v", err)
	}
	if n := len(r.entries()); n != 2 {
		t.Errorf("ran %d checks, want 2", n)
	}

	r = &recorder{}
	err := e.Evaluate(context.Background(), e.And(after("a", 20*time.Millisecond), failing("b", boom)), r)
	if err != boom {
		t.Errorf("err = %v, want boom", err)
	}
	if got := r.entries(); len(got) != 2 {
		t.Errorf("and must let both sides complete, ran %v", got)
	}
}

func TestEngine_CompositesHaveDistinctKeys(t *testing.T) {
	e := NewEngine[*recorder]()
	a, b := logging("a"), logging("b")
	if e.And(a, b).Key() == e.And(a, b).Key() {
		t.Error("two and() results share a key")
	}
}

func TestEngine_EvaluateEachRequiresAll(t *testing.T) {
	e := NewEngine[*recorder]()
	var calls atomic.Int32
	boom := errors.New("boom")
	cond := New("odd", func(_ context.Context, r *recorder) error {
		calls.Add(1)
		if len(r.entries()) > 0 {
			return boom
		}
		return nil
	})

	good := []*recorder{{}, {}, {}}
	if err := e.EvaluateEach(context.Background(), cond, good); err != nil {
		t.Fatalf("evaluate each: %v", err)
	}

	bad := &recorder{log: []string{"x"}}
	calls.Store(0)
	err := e.EvaluateEach(context.Background(), cond, []*recorder{{}, bad, {}})
	if err != boom {
		t.Errorf("err = %v, want boom", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}
