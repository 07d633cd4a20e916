package browser

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/rodchain/pkg/future"
)

// NodeSet is an ordered snapshot of the elements matched by one lookup.
// Index i is the driver's match i at lookup time; the set never re-queries.
type NodeSet struct {
	session  *Session
	parent   *Node
	selector string
	nodes    []*Node
}

// Predicate reports whether a node matches.
type Predicate func(ctx context.Context, n *Node) (bool, error)

// snapshot reads the count once and binds a Node to every index.
func snapshot(ctx context.Context, s *Session, parent *Node, selector string, list ElementList) (*NodeSet, error) {
	count, err := list.Count(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, count)
	for i := range nodes {
		nodes[i] = &Node{session: s, parent: parent, handle: list.Index(i), selector: selector}
	}
	return &NodeSet{session: s, parent: parent, selector: selector, nodes: nodes}, nil
}

func (ns *NodeSet) derive(nodes []*Node) *NodeSet {
	return &NodeSet{session: ns.session, parent: ns.parent, selector: ns.selector, nodes: nodes}
}

// Session returns the owning session.
func (ns *NodeSet) Session() (*Session, error) { return ns.session, nil }

// Parent returns the node the set was looked up under, or nil.
func (ns *NodeSet) Parent() (*Node, error) { return ns.parent, nil }

// Nodes returns a copy of the snapshot.
func (ns *NodeSet) Nodes() ([]*Node, error) { return slices.Clone(ns.nodes), nil }

// Len returns the snapshot size without going through a future.
func (ns *NodeSet) Len() int { return len(ns.nodes) }

// Await returns the set itself.
func (ns *NodeSet) Await(context.Context) (*NodeSet, error) { return ns, nil }

// Future returns an already settled future of the set.
func (ns *NodeSet) Future() *future.Future[*NodeSet] { return future.Resolved(ns) }

// Count resolves to the snapshot size.
func (ns *NodeSet) Count() *future.Future[int] {
	return future.Resolved(len(ns.nodes))
}

// Get resolves to the node at index i.
func (ns *NodeSet) Get(i int) *NodePromise {
	if i < 0 || i >= len(ns.nodes) {
		return newNodePromise(future.Rejected[*Node](fmt.Errorf("%w: %q has no index %d of %d", ErrNotFound, ns.selector, i, len(ns.nodes))))
	}
	return newNodePromise(future.Resolved(ns.nodes[i]))
}

func (ns *NodeSet) First() *NodePromise  { return ns.Get(0) }
func (ns *NodeSet) Second() *NodePromise { return ns.Get(1) }
func (ns *NodeSet) Third() *NodePromise  { return ns.Get(2) }
func (ns *NodeSet) Last() *NodePromise   { return ns.Get(len(ns.nodes) - 1) }

// matches evaluates pred over every node concurrently. The first error
// cancels the remaining evaluations and is returned unchanged.
func (ns *NodeSet) matches(pred Predicate) ([]bool, error) {
	out := make([]bool, len(ns.nodes))
	g, ctx := errgroup.WithContext(ns.session.ctx)
	for i, n := range ns.nodes {
		g.Go(func() error {
			ok, err := pred(ctx, n)
			out[i] = ok
			return err
		})
	}
	return out, g.Wait()
}

// Filter resolves to a new set holding the nodes that satisfy pred, in
// their original order. The receiver is not modified.
func (ns *NodeSet) Filter(pred Predicate) *NodeSetPromise {
	return newNodeSetPromise(future.Go(func() (*NodeSet, error) {
		ok, err := ns.matches(pred)
		if err != nil {
			return nil, err
		}
		var kept []*Node
		for i, n := range ns.nodes {
			if ok[i] {
				kept = append(kept, n)
			}
		}
		return ns.derive(kept), nil
	}))
}

// Find resolves to the lowest-index node satisfying pred. It fails with
// ErrNotFound when none does.
func (ns *NodeSet) Find(pred Predicate) *NodePromise {
	return newNodePromise(future.Go(func() (*Node, error) {
		ok, err := ns.matches(pred)
		if err != nil {
			return nil, err
		}
		if i := slices.Index(ok, true); i >= 0 {
			return ns.nodes[i], nil
		}
		return nil, fmt.Errorf("%w: no %q matched", ErrNotFound, ns.selector)
	}))
}

// ForEach calls fn on every node in index order, each call completing
// before the next starts. The first error stops the iteration.
func (ns *NodeSet) ForEach(fn func(ctx context.Context, n *Node) error) *NodeSetPromise {
	return newNodeSetPromise(future.Go(func() (*NodeSet, error) {
		for _, n := range ns.nodes {
			if err := fn(ns.session.ctx, n); err != nil {
				return nil, err
			}
		}
		return ns, nil
	}))
}

// Wait waits until cond holds for every node, bounded by the session's
// default timeout.
func (ns *NodeSet) Wait(cond NodeCondition) *NodeSetPromise {
	return ns.WaitTimeout(cond, ns.session.WaitConfig().Timeout)
}

// WaitTimeout evaluates cond against every node concurrently, bounded by
// timeout as a whole.
func (ns *NodeSet) WaitTimeout(cond NodeCondition, timeout time.Duration) *NodeSetPromise {
	return newNodeSetPromise(future.Go(func() (*NodeSet, error) {
		if _, err := ns.session.Handle(); err != nil {
			return nil, err
		}
		c := ns.session.client
		ctx, end := c.startSpan(ns.session.ctx, "nodeset.wait",
			attribute.String("nodeset.selector", ns.selector),
			attribute.Int("nodeset.count", len(ns.nodes)),
			attribute.String("condition", cond.Name()),
			attribute.Int64("timeout_ms", timeout.Milliseconds()))
		err := c.nodes.WaitEach(ctx, ns.nodes, cond, timeout)
		end(err)
		if err != nil {
			return nil, err
		}
		return ns, nil
	}))
}

// Expect checks cond once against every node.
func (ns *NodeSet) Expect(cond NodeCondition) *NodeSetPromise {
	return ns.WaitTimeout(cond, 0)
}

// Map applies fn to every node of the set concurrently and resolves to the
// results in index order. The first error cancels the other calls. src may
// be a NodeSet or a pending one.
func Map[T any](src NodeSetAPI, fn func(ctx context.Context, n *Node) (T, error)) *future.Future[[]T] {
	return future.Chain(src.Future(), func(ns *NodeSet) *future.Future[[]T] {
		return future.Go(func() ([]T, error) {
			out := make([]T, len(ns.nodes))
			g, ctx := errgroup.WithContext(ns.session.ctx)
			for i, n := range ns.nodes {
				g.Go(func() (err error) {
					out[i], err = fn(ctx, n)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			return out, nil
		})
	})
}
