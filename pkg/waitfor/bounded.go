package waitfor

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

type immediateKey struct{}

// Immediate marks ctx so that evaluations check once and skip preconditions.
func Immediate(ctx context.Context) context.Context {
	return context.WithValue(ctx, immediateKey{}, true)
}

// IsImmediate reports whether ctx was marked by Immediate.
func IsImmediate(ctx context.Context) bool {
	v, _ := ctx.Value(immediateKey{}).(bool)
	return v
}

// Bounded races eval against a timer of length timeout.
//
// When eval settles first the timer is stopped and eval's result returned.
// When the timer fires first Bounded returns a *TimeoutError; eval is not
// cancelled and keeps running under ctx, detached from the caller.
// A zero timeout runs eval once in immediate mode, a negative one waits for
// eval without bound.
func Bounded(ctx context.Context, timeout time.Duration, name string, eval func(context.Context) error) error {
	if timeout == 0 {
		return eval(Immediate(ctx))
	}
	if timeout < 0 {
		return eval(ctx)
	}

	result := make(chan error, 1)
	go func() { result <- eval(ctx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return &TimeoutError{Condition: name, Bound: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DefaultPollInterval paces Poll when no interval is given.
const DefaultPollInterval = 100 * time.Millisecond

// Probe is a single non-blocking check of some state.
type Probe func(ctx context.Context) (bool, error)

// Poll calls probe until it reports true, returns an error, or ctx is done.
// Attempts are paced to one per interval. In immediate mode probe is
// called exactly once and a false result yields ErrConditionNotMet.
func Poll(ctx context.Context, interval time.Duration, probe Probe) error {
	if IsImmediate(ctx) {
		ok, err := probe(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConditionNotMet
		}
		return nil
	}

	if interval <= 0 {
		interval = DefaultPollInterval
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := pace(ctx, limiter); err != nil {
			return err
		}
		ok, err := probe(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// pace blocks until limiter grants the next attempt.
func pace(ctx context.Context, limiter *rate.Limiter) error {
	delay := limiter.Reserve().Delay()
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
