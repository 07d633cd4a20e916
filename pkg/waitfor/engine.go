package waitfor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine evaluates conditions over E and owns their precondition graph.
// The graph is append-only and safe for concurrent use.
type Engine[E any] struct {
	mu     sync.RWMutex
	pre    map[Key][]Condition[E]
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for discarded `Or` outcomes.
func WithLogger(l *slog.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = l }
}

// NewEngine creates an Engine with an empty precondition graph.
func NewEngine[E any](opts ...EngineOption) *Engine[E] {
	o := engineOptions{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	return &Engine[E]{
		pre:    make(map[Key][]Condition[E]),
		logger: o.logger,
	}
}

// Require appends req to the ordered precondition list of cond. Repeated
// registrations accumulate. A registration that would make cond reachable
// from itself fails with ErrPreconditionCycle and leaves the graph untouched.
func (e *Engine[E]) Require(cond, req Condition[E]) error {
	if cond.IsZero() || req.IsZero() {
		return fmt.Errorf("waitfor: require %q <- %q: undefined condition", cond.name, req.name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reachableLocked(req.key, cond.key) {
		return fmt.Errorf("waitfor: require %s <- %s: %w", cond.key, req.key, ErrPreconditionCycle)
	}
	e.pre[cond.key] = append(e.pre[cond.key], req)
	return nil
}

// reachableLocked reports whether target is from or one of its transitive
// preconditions. Must be called with e.mu held.
func (e *Engine[E]) reachableLocked(from, target Key) bool {
	seen := map[Key]struct{}{}
	stack := []Key{from}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if k == target {
			return true
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		for _, c := range e.pre[k] {
			stack = append(stack, c.key)
		}
	}
	return false
}

// Preconditions returns a copy of the ordered list registered for key.
func (e *Engine[E]) Preconditions(key Key) []Condition[E] {
	e.mu.RLock()
	defer e.mu.RUnlock()
	list := e.pre[key]
	out := make([]Condition[E], len(list))
	copy(out, list)
	return out
}

// Evaluate runs the preconditions of cond depth-first in registration order,
// each to completion, then cond's own check. A condition instance (key and
// name) is checked at most once per evaluation, so a shared precondition in
// a diamond runs once while two instances of one family both run. The first
// failure aborts the evaluation and is returned unchanged.
//
// In immediate mode (see Immediate) preconditions are skipped.
func (e *Engine[E]) Evaluate(ctx context.Context, cond Condition[E], entity E) error {
	if cond.IsZero() {
		return fmt.Errorf("waitfor: evaluate: undefined condition")
	}
	if IsImmediate(ctx) {
		return cond.check(ctx, entity)
	}
	return e.evaluate(ctx, cond, entity, map[instance]struct{}{})
}

// instance identifies one condition value within an evaluation.
type instance struct {
	key  Key
	name string
}

func (e *Engine[E]) evaluate(ctx context.Context, cond Condition[E], entity E, seen map[instance]struct{}) error {
	id := instance{cond.key, cond.name}
	if _, ok := seen[id]; ok {
		return nil
	}
	seen[id] = struct{}{}

	for _, req := range e.Preconditions(cond.key) {
		if err := e.evaluate(ctx, req, entity, seen); err != nil {
			return err
		}
	}
	return cond.check(ctx, entity)
}

// EvaluateEach evaluates cond against every entity concurrently and
// succeeds only when all of them do. The first failure cancels the
// remaining evaluations and is returned unchanged.
func (e *Engine[E]) EvaluateEach(ctx context.Context, cond Condition[E], entities []E) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ent := range entities {
		g.Go(func() error {
			return e.Evaluate(gctx, cond, ent)
		})
	}
	return g.Wait()
}

// And returns a condition that holds when both a and b hold. Both sides are
// started before either is awaited and both must complete.
func (e *Engine[E]) And(a, b Condition[E]) Condition[E] {
	key := compositeKey("and", a, b)
	return Named(key, fmt.Sprintf("and(%s, %s)", a, b), func(ctx context.Context, entity E) error {
		var g errgroup.Group
		g.Go(func() error { return e.Evaluate(ctx, a, entity) })
		g.Go(func() error { return e.Evaluate(ctx, b, entity) })
		return g.Wait()
	})
}

// Or returns a condition that holds as soon as either a or b holds. The
// losing side keeps running in the background; its outcome is logged at
// debug level and otherwise dropped. Or fails only when both sides fail.
func (e *Engine[E]) Or(a, b Condition[E]) Condition[E] {
	key := compositeKey("or", a, b)
	name := fmt.Sprintf("or(%s, %s)", a, b)
	return Named(key, name, func(ctx context.Context, entity E) error {
		results := make(chan error, 2)
		go func() { results <- e.Evaluate(ctx, a, entity) }()
		go func() { results <- e.Evaluate(ctx, b, entity) }()

		var errs []error
		for i := 0; i < 2; i++ {
			err := <-results
			if err == nil {
				if pending := 1 - i; pending > 0 {
					go e.discard(name, results)
				}
				return nil
			}
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
}

func (e *Engine[E]) discard(name string, results <-chan error) {
	if err := <-results; err != nil {
		e.logger.Debug("waitfor: discarded losing branch", "condition", name, "error", err)
	}
}

// Wait evaluates cond against entity bounded by timeout.
//
// A positive timeout races the evaluation against a timer. A zero timeout
// checks cond once, immediately, without its precondition chain. A negative
// timeout waits without bound.
func (e *Engine[E]) Wait(ctx context.Context, entity E, cond Condition[E], timeout time.Duration) error {
	return Bounded(ctx, timeout, cond.name, func(ctx context.Context) error {
		return e.Evaluate(ctx, cond, entity)
	})
}

// WaitEach is Wait over every entity of a collection, element-wise.
func (e *Engine[E]) WaitEach(ctx context.Context, entities []E, cond Condition[E], timeout time.Duration) error {
	return Bounded(ctx, timeout, cond.name, func(ctx context.Context) error {
		return e.EvaluateEach(ctx, cond, entities)
	})
}
