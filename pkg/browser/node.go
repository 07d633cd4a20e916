package browser

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/rodchain/pkg/future"
)

// Node is one located element. It is a lightweight descriptor: lookups under
// it are relative to its handle, and it may go stale when the page changes.
type Node struct {
	session  *Session
	parent   *Node
	handle   Element
	selector string
}

// Session returns the owning session.
func (n *Node) Session() (*Session, error) { return n.session, nil }

// Parent returns the node this one was looked up under, or nil.
func (n *Node) Parent() (*Node, error) { return n.parent, nil }

// Selector returns the selector the node was located with.
func (n *Node) Selector() (string, error) { return n.selector, nil }

// Handle returns the driver element. It fails once the session is terminated.
func (n *Node) Handle() (Element, error) {
	if n.session.Terminated() {
		return nil, terminatedField("node handle")
	}
	return n.handle, nil
}

// Await returns the node itself.
func (n *Node) Await(context.Context) (*Node, error) { return n, nil }

// Future returns an already settled future of the node.
func (n *Node) Future() *future.Future[*Node] { return future.Resolved(n) }

func (n *Node) call(op string, fn func(ctx context.Context, el Element) error, attrs ...attribute.KeyValue) error {
	el, err := n.Handle()
	if err != nil {
		return err
	}
	attrs = append(attrs, attribute.String("session.id", n.session.id), attribute.String("node.selector", n.selector))
	ctx, end := n.session.client.startSpan(n.session.ctx, op, attrs...)
	err = fn(ctx, el)
	end(err)
	return err
}

func (n *Node) step(op string, fn func(ctx context.Context, el Element) error) *NodePromise {
	return newNodePromise(future.Go(func() (*Node, error) {
		if err := n.call(op, fn); err != nil {
			return nil, err
		}
		return n, nil
	}))
}

func (n *Node) read(op string, fn func(ctx context.Context, el Element) (string, error)) *future.Future[string] {
	return future.Go(func() (v string, err error) {
		err = n.call(op, func(ctx context.Context, el Element) (err error) {
			v, err = fn(ctx, el)
			return err
		})
		return v, err
	})
}

// Node looks up the first element matching selector under n.
func (n *Node) Node(selector string) *NodePromise {
	return newNodePromise(future.Go(func() (*Node, error) {
		var child Element
		err := n.call("node.node", func(ctx context.Context, el Element) (err error) {
			child, err = el.Find(ctx, selector)
			return err
		}, attribute.String("selector", selector))
		if err != nil {
			return nil, err
		}
		return &Node{session: n.session, parent: n, handle: child, selector: selector}, nil
	}))
}

// NodeSet looks up every element matching selector under n.
func (n *Node) NodeSet(selector string) *NodeSetPromise {
	return newNodeSetPromise(future.Go(func() (*NodeSet, error) {
		var set *NodeSet
		err := n.call("node.nodeset", func(ctx context.Context, el Element) error {
			list, err := el.FindAll(ctx, selector)
			if err != nil {
				return err
			}
			set, err = snapshot(ctx, n.session, n, selector, list)
			return err
		}, attribute.String("selector", selector))
		return set, err
	}))
}

// LocateParent finds the closest ancestor of n matching selector.
func (n *Node) LocateParent(selector string) *NodePromise {
	return newNodePromise(future.Go(func() (*Node, error) {
		var anc Element
		err := n.call("node.locate_parent", func(ctx context.Context, el Element) (err error) {
			anc, err = el.Parent(ctx, selector)
			return err
		}, attribute.String("selector", selector))
		if err != nil {
			return nil, err
		}
		return &Node{session: n.session, handle: anc, selector: selector}, nil
	}))
}

// Click clicks the element.
func (n *Node) Click() *NodePromise {
	return n.step("node.click", func(ctx context.Context, el Element) error { return el.Click(ctx) })
}

// SendKeys types keys into the element.
func (n *Node) SendKeys(keys ...string) *NodePromise {
	return n.step("node.send_keys", func(ctx context.Context, el Element) error { return el.SendKeys(ctx, keys...) })
}

// Clear empties an input or textarea.
func (n *Node) Clear() *NodePromise {
	return n.step("node.clear", func(ctx context.Context, el Element) error { return el.Clear(ctx) })
}

// Text reads the visible text.
func (n *Node) Text() *future.Future[string] {
	return n.read("node.text", func(ctx context.Context, el Element) (string, error) { return el.Text(ctx) })
}

// Attribute reads the named attribute.
func (n *Node) Attribute(name string) *future.Future[string] {
	return n.read("node.attribute", func(ctx context.Context, el Element) (string, error) { return el.Attribute(ctx, name) })
}

// Value reads the current form value.
func (n *Node) Value() *future.Future[string] {
	return n.Attribute("value")
}

// Classes reads the class list.
func (n *Node) Classes() *future.Future[[]string] {
	return future.Then(n.Attribute("class"), func(v string) ([]string, error) {
		return strings.Fields(v), nil
	})
}

// Wait waits for cond, bounded by the session's default timeout.
func (n *Node) Wait(cond NodeCondition) *NodePromise {
	return n.WaitTimeout(cond, n.session.WaitConfig().Timeout)
}

// WaitTimeout waits for cond, bounded by timeout.
func (n *Node) WaitTimeout(cond NodeCondition, timeout time.Duration) *NodePromise {
	return newNodePromise(future.Go(func() (*Node, error) {
		if _, err := n.Handle(); err != nil {
			return nil, err
		}
		c := n.session.client
		ctx, end := c.startSpan(n.session.ctx, "node.wait",
			attribute.String("node.selector", n.selector),
			attribute.String("condition", cond.Name()),
			attribute.Int64("timeout_ms", timeout.Milliseconds()))
		err := c.nodes.Wait(ctx, n, cond, timeout)
		end(err)
		if err != nil {
			return nil, err
		}
		return n, nil
	}))
}

// Expect checks cond once, immediately.
func (n *Node) Expect(cond NodeCondition) *NodePromise {
	return n.WaitTimeout(cond, 0)
}
