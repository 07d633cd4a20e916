// Package waitfor evaluates named asynchronous predicates over an entity.
//
// Conditions carry an explicit identity Key. An Engine keeps an ordered
// precondition list per Key and runs every precondition before the
// condition's own check. Bounded turns an evaluation into an operation
// that fails with a TimeoutError once its bound expires.
package waitfor

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Key identifies a condition in the precondition graph. Conditions produced
// by the same factory share a Key regardless of their arguments.
type Key string

// CheckFunc is the condition's own check. It blocks until the condition
// holds, fails, or ctx is done.
type CheckFunc[E any] func(ctx context.Context, entity E) error

// Condition is a named asynchronous predicate over E.
type Condition[E any] struct {
	key   Key
	name  string
	check CheckFunc[E]
}

// New defines a condition whose display name equals its key.
func New[E any](key Key, check CheckFunc[E]) Condition[E] {
	return Condition[E]{key: key, name: string(key), check: check}
}

// Named defines a condition with a descriptive name, used by factories such
// as "title contains X": the key names the family, the name carries the
// argument.
func Named[E any](key Key, name string, check CheckFunc[E]) Condition[E] {
	return Condition[E]{key: key, name: name, check: check}
}

// Key returns the identity used by the precondition graph.
func (c Condition[E]) Key() Key { return c.key }

// Name returns a human readable description.
func (c Condition[E]) Name() string { return c.name }

// IsZero reports whether c was never defined.
func (c Condition[E]) IsZero() bool { return c.check == nil }

func (c Condition[E]) String() string { return c.name }

var compositeSeq atomic.Uint64

// compositeKey gives every combinator result its own identity, so
// registering a precondition on one `and` never leaks to another.
func compositeKey(op string, a, b fmt.Stringer) Key {
	return Key(fmt.Sprintf("%s(%s,%s)#%d", op, a, b, compositeSeq.Add(1)))
}
