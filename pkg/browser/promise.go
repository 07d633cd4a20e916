package browser

import (
	"context"
	"time"

	"github.com/ysmood/gson"

	"github.com/nextlevelbuilder/rodchain/pkg/future"
)

// SessionAPI is implemented by *Session and *SessionPromise.
type SessionAPI interface {
	Handle() (DriverSession, error)

	Navigate(url string) *SessionPromise
	Restart() *SessionPromise
	Fork(opts ForkOptions) *SessionPromise
	Close() *future.Future[future.Void]
	Node(selector string) *NodePromise
	NodeSet(selector string) *NodeSetPromise
	SendKeys(keys ...string) *SessionPromise
	AddInitScript(js string) *SessionPromise
	Title() *future.Future[string]
	URL() *future.Future[string]
	ExecuteScript(code string) *future.Future[gson.JSON]
	ClearStorage() *future.Future[future.Void]
	ReadLocalStorage(key string) *future.Future[string]
	WriteLocalStorage(key, value string) *future.Future[future.Void]
	ReadSessionStorage(key string) *future.Future[string]
	WriteSessionStorage(key, value string) *future.Future[future.Void]
	Wait(cond SessionCondition) *SessionPromise
	WaitTimeout(cond SessionCondition, timeout time.Duration) *SessionPromise
	Expect(cond SessionCondition) *SessionPromise

	Await(ctx context.Context) (*Session, error)
	Future() *future.Future[*Session]
}

// NodeAPI is implemented by *Node and *NodePromise.
type NodeAPI interface {
	Session() (*Session, error)
	Parent() (*Node, error)
	Selector() (string, error)
	Handle() (Element, error)

	Node(selector string) *NodePromise
	NodeSet(selector string) *NodeSetPromise
	LocateParent(selector string) *NodePromise
	Click() *NodePromise
	SendKeys(keys ...string) *NodePromise
	Clear() *NodePromise
	Text() *future.Future[string]
	Attribute(name string) *future.Future[string]
	Value() *future.Future[string]
	Classes() *future.Future[[]string]
	Wait(cond NodeCondition) *NodePromise
	WaitTimeout(cond NodeCondition, timeout time.Duration) *NodePromise
	Expect(cond NodeCondition) *NodePromise

	Await(ctx context.Context) (*Node, error)
	Future() *future.Future[*Node]
}

// NodeSetAPI is implemented by *NodeSet and *NodeSetPromise.
type NodeSetAPI interface {
	Session() (*Session, error)
	Parent() (*Node, error)
	Nodes() ([]*Node, error)

	Count() *future.Future[int]
	Get(i int) *NodePromise
	First() *NodePromise
	Second() *NodePromise
	Third() *NodePromise
	Last() *NodePromise
	Filter(pred Predicate) *NodeSetPromise
	Find(pred Predicate) *NodePromise
	ForEach(fn func(ctx context.Context, n *Node) error) *NodeSetPromise
	Wait(cond NodeCondition) *NodeSetPromise
	WaitTimeout(cond NodeCondition, timeout time.Duration) *NodeSetPromise
	Expect(cond NodeCondition) *NodeSetPromise

	Await(ctx context.Context) (*NodeSet, error)
	Future() *future.Future[*NodeSet]
}

var (
	_ SessionAPI = (*Session)(nil)
	_ SessionAPI = (*SessionPromise)(nil)
	_ NodeAPI    = (*Node)(nil)
	_ NodeAPI    = (*NodePromise)(nil)
	_ NodeSetAPI = (*NodeSet)(nil)
	_ NodeSetAPI = (*NodeSetPromise)(nil)
)

// SessionPromise is a pending *Session. Each operation waits for the
// session, then runs the same operation on it. A rejected promise skips the
// operation and passes its error on.
type SessionPromise struct {
	f *future.Future[*Session]
}

func newSessionPromise(f *future.Future[*Session]) *SessionPromise {
	return &SessionPromise{f: f}
}

// Future returns the underlying future.
func (p *SessionPromise) Future() *future.Future[*Session] { return p.f }

// Done is closed once the session is resolved or rejected.
func (p *SessionPromise) Done() <-chan struct{} { return p.f.Done() }

// Await waits for the session or for ctx, whichever comes first.
func (p *SessionPromise) Await(ctx context.Context) (*Session, error) { return p.f.Await(ctx) }

// Catch recovers from a rejection through fn.
func (p *SessionPromise) Catch(fn func(error) (*Session, error)) *SessionPromise {
	return newSessionPromise(p.f.Catch(fn))
}

// Finally runs fn once the promise settles and keeps the chain going.
func (p *SessionPromise) Finally(fn func()) *SessionPromise {
	return newSessionPromise(p.f.Finally(fn))
}

// ID always fails: the session does not exist yet.
func (p *SessionPromise) ID() (string, error) { return "", pendingField("session id") }

// Terminated always fails: the session does not exist yet.
func (p *SessionPromise) Terminated() (bool, error) { return false, pendingField("session terminated") }

// Handle always fails: the session does not exist yet.
func (p *SessionPromise) Handle() (DriverSession, error) { return nil, pendingField("session handle") }

func (p *SessionPromise) session(fn func(*Session) *SessionPromise) *SessionPromise {
	return newSessionPromise(future.Chain(p.f, func(s *Session) *future.Future[*Session] { return fn(s).f }))
}

func (p *SessionPromise) Navigate(url string) *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.Navigate(url) })
}

func (p *SessionPromise) Restart() *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.Restart() })
}

func (p *SessionPromise) Fork(opts ForkOptions) *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.Fork(opts) })
}

func (p *SessionPromise) SendKeys(keys ...string) *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.SendKeys(keys...) })
}

func (p *SessionPromise) AddInitScript(js string) *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.AddInitScript(js) })
}

func (p *SessionPromise) Wait(cond SessionCondition) *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.Wait(cond) })
}

func (p *SessionPromise) WaitTimeout(cond SessionCondition, timeout time.Duration) *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.WaitTimeout(cond, timeout) })
}

func (p *SessionPromise) Expect(cond SessionCondition) *SessionPromise {
	return p.session(func(s *Session) *SessionPromise { return s.Expect(cond) })
}

func (p *SessionPromise) Node(selector string) *NodePromise {
	return newNodePromise(future.Chain(p.f, func(s *Session) *future.Future[*Node] { return s.Node(selector).f }))
}

func (p *SessionPromise) NodeSet(selector string) *NodeSetPromise {
	return newNodeSetPromise(future.Chain(p.f, func(s *Session) *future.Future[*NodeSet] { return s.NodeSet(selector).f }))
}

func (p *SessionPromise) Close() *future.Future[future.Void] {
	return future.Chain(p.f, (*Session).Close)
}

func (p *SessionPromise) Title() *future.Future[string] {
	return future.Chain(p.f, (*Session).Title)
}

func (p *SessionPromise) URL() *future.Future[string] {
	return future.Chain(p.f, (*Session).URL)
}

func (p *SessionPromise) ExecuteScript(code string) *future.Future[gson.JSON] {
	return future.Chain(p.f, func(s *Session) *future.Future[gson.JSON] { return s.ExecuteScript(code) })
}

func (p *SessionPromise) ClearStorage() *future.Future[future.Void] {
	return future.Chain(p.f, (*Session).ClearStorage)
}

func (p *SessionPromise) ReadLocalStorage(key string) *future.Future[string] {
	return future.Chain(p.f, func(s *Session) *future.Future[string] { return s.ReadLocalStorage(key) })
}

func (p *SessionPromise) WriteLocalStorage(key, value string) *future.Future[future.Void] {
	return future.Chain(p.f, func(s *Session) *future.Future[future.Void] { return s.WriteLocalStorage(key, value) })
}

func (p *SessionPromise) ReadSessionStorage(key string) *future.Future[string] {
	return future.Chain(p.f, func(s *Session) *future.Future[string] { return s.ReadSessionStorage(key) })
}

func (p *SessionPromise) WriteSessionStorage(key, value string) *future.Future[future.Void] {
	return future.Chain(p.f, func(s *Session) *future.Future[future.Void] { return s.WriteSessionStorage(key, value) })
}

// NodePromise is a pending *Node.
type NodePromise struct {
	f *future.Future[*Node]
}

func newNodePromise(f *future.Future[*Node]) *NodePromise {
	return &NodePromise{f: f}
}

func (p *NodePromise) Future() *future.Future[*Node]            { return p.f }
func (p *NodePromise) Done() <-chan struct{}                    { return p.f.Done() }
func (p *NodePromise) Await(ctx context.Context) (*Node, error) { return p.f.Await(ctx) }

func (p *NodePromise) Catch(fn func(error) (*Node, error)) *NodePromise {
	return newNodePromise(p.f.Catch(fn))
}

func (p *NodePromise) Finally(fn func()) *NodePromise {
	return newNodePromise(p.f.Finally(fn))
}

func (p *NodePromise) Session() (*Session, error) { return nil, pendingField("node session") }
func (p *NodePromise) Parent() (*Node, error)     { return nil, pendingField("node parent") }
func (p *NodePromise) Selector() (string, error)  { return "", pendingField("node selector") }
func (p *NodePromise) Handle() (Element, error)   { return nil, pendingField("node handle") }

func (p *NodePromise) node(fn func(*Node) *NodePromise) *NodePromise {
	return newNodePromise(future.Chain(p.f, func(n *Node) *future.Future[*Node] { return fn(n).f }))
}

func (p *NodePromise) Node(selector string) *NodePromise {
	return p.node(func(n *Node) *NodePromise { return n.Node(selector) })
}

func (p *NodePromise) LocateParent(selector string) *NodePromise {
	return p.node(func(n *Node) *NodePromise { return n.LocateParent(selector) })
}

func (p *NodePromise) Click() *NodePromise {
	return p.node((*Node).Click)
}

func (p *NodePromise) SendKeys(keys ...string) *NodePromise {
	return p.node(func(n *Node) *NodePromise { return n.SendKeys(keys...) })
}

func (p *NodePromise) Clear() *NodePromise {
	return p.node((*Node).Clear)
}

func (p *NodePromise) Wait(cond NodeCondition) *NodePromise {
	return p.node(func(n *Node) *NodePromise { return n.Wait(cond) })
}

func (p *NodePromise) WaitTimeout(cond NodeCondition, timeout time.Duration) *NodePromise {
	return p.node(func(n *Node) *NodePromise { return n.WaitTimeout(cond, timeout) })
}

func (p *NodePromise) Expect(cond NodeCondition) *NodePromise {
	return p.node(func(n *Node) *NodePromise { return n.Expect(cond) })
}

func (p *NodePromise) NodeSet(selector string) *NodeSetPromise {
	return newNodeSetPromise(future.Chain(p.f, func(n *Node) *future.Future[*NodeSet] { return n.NodeSet(selector).f }))
}

func (p *NodePromise) Text() *future.Future[string] {
	return future.Chain(p.f, (*Node).Text)
}

func (p *NodePromise) Attribute(name string) *future.Future[string] {
	return future.Chain(p.f, func(n *Node) *future.Future[string] { return n.Attribute(name) })
}

func (p *NodePromise) Value() *future.Future[string] {
	return future.Chain(p.f, (*Node).Value)
}

func (p *NodePromise) Classes() *future.Future[[]string] {
	return future.Chain(p.f, (*Node).Classes)
}

// NodeSetPromise is a pending *NodeSet.
type NodeSetPromise struct {
	f *future.Future[*NodeSet]
}

func newNodeSetPromise(f *future.Future[*NodeSet]) *NodeSetPromise {
	return &NodeSetPromise{f: f}
}

func (p *NodeSetPromise) Future() *future.Future[*NodeSet]            { return p.f }
func (p *NodeSetPromise) Done() <-chan struct{}                       { return p.f.Done() }
func (p *NodeSetPromise) Await(ctx context.Context) (*NodeSet, error) { return p.f.Await(ctx) }

func (p *NodeSetPromise) Catch(fn func(error) (*NodeSet, error)) *NodeSetPromise {
	return newNodeSetPromise(p.f.Catch(fn))
}

func (p *NodeSetPromise) Finally(fn func()) *NodeSetPromise {
	return newNodeSetPromise(p.f.Finally(fn))
}

func (p *NodeSetPromise) Session() (*Session, error) { return nil, pendingField("nodeset session") }
func (p *NodeSetPromise) Parent() (*Node, error)     { return nil, pendingField("nodeset parent") }
func (p *NodeSetPromise) Nodes() ([]*Node, error)    { return nil, pendingField("nodeset nodes") }

func (p *NodeSetPromise) set(fn func(*NodeSet) *NodeSetPromise) *NodeSetPromise {
	return newNodeSetPromise(future.Chain(p.f, func(ns *NodeSet) *future.Future[*NodeSet] { return fn(ns).f }))
}

func (p *NodeSetPromise) node(fn func(*NodeSet) *NodePromise) *NodePromise {
	return newNodePromise(future.Chain(p.f, func(ns *NodeSet) *future.Future[*Node] { return fn(ns).f }))
}

func (p *NodeSetPromise) Count() *future.Future[int] {
	return future.Chain(p.f, (*NodeSet).Count)
}

func (p *NodeSetPromise) Get(i int) *NodePromise {
	return p.node(func(ns *NodeSet) *NodePromise { return ns.Get(i) })
}

func (p *NodeSetPromise) First() *NodePromise  { return p.node((*NodeSet).First) }
func (p *NodeSetPromise) Second() *NodePromise { return p.node((*NodeSet).Second) }
func (p *NodeSetPromise) Third() *NodePromise  { return p.node((*NodeSet).Third) }
func (p *NodeSetPromise) Last() *NodePromise   { return p.node((*NodeSet).Last) }

func (p *NodeSetPromise) Filter(pred Predicate) *NodeSetPromise {
	return p.set(func(ns *NodeSet) *NodeSetPromise { return ns.Filter(pred) })
}

func (p *NodeSetPromise) Find(pred Predicate) *NodePromise {
	return p.node(func(ns *NodeSet) *NodePromise { return ns.Find(pred) })
}

func (p *NodeSetPromise) ForEach(fn func(ctx context.Context, n *Node) error) *NodeSetPromise {
	return p.set(func(ns *NodeSet) *NodeSetPromise { return ns.ForEach(fn) })
}

func (p *NodeSetPromise) Wait(cond NodeCondition) *NodeSetPromise {
	return p.set(func(ns *NodeSet) *NodeSetPromise { return ns.Wait(cond) })
}

func (p *NodeSetPromise) WaitTimeout(cond NodeCondition, timeout time.Duration) *NodeSetPromise {
	return p.set(func(ns *NodeSet) *NodeSetPromise { return ns.WaitTimeout(cond, timeout) })
}

func (p *NodeSetPromise) Expect(cond NodeCondition) *NodeSetPromise {
	return p.set(func(ns *NodeSet) *NodeSetPromise { return ns.Expect(cond) })
}
