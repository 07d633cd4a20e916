package browser

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/rodchain/pkg/future"
)

// Session is one browser session. Operations run under the session's
// lifetime context, which Close and Restart cancel.
type Session struct {
	id     string
	client *Client
	handle DriverSession

	ctx    context.Context
	cancel context.CancelFunc

	terminated atomic.Bool

	mu          sync.Mutex
	wait        *WaitConfig // per-session override
	initScripts []string
}

// ForkOptions selects what a forked session inherits.
type ForkOptions struct {
	// SameURL navigates the fork to the current URL of the source.
	SameURL bool
	// CopyMocks replays every script added with AddInitScript.
	CopyMocks bool
	// CopyConfig copies the source's wait config override.
	CopyConfig bool
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Client returns the client that opened the session.
func (s *Session) Client() *Client { return s.client }

// Terminated reports whether the session was restarted or closed.
func (s *Session) Terminated() bool { return s.terminated.Load() }

// Handle returns the driver session. It fails once the session is terminated.
func (s *Session) Handle() (DriverSession, error) {
	if s.terminated.Load() {
		return nil, terminatedField("session handle")
	}
	return s.handle, nil
}

// Context returns the lifetime context of the session.
func (s *Session) Context() context.Context { return s.ctx }

// WaitConfig returns the session's override, or the client's settings.
func (s *Session) WaitConfig() WaitConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wait != nil {
		return *s.wait
	}
	return s.client.WaitConfig()
}

// SetWaitConfig overrides the client's wait settings for this session only.
func (s *Session) SetWaitConfig(cfg WaitConfig) {
	s.mu.Lock()
	s.wait = &cfg
	s.mu.Unlock()
}

// InitScripts returns the scripts registered with AddInitScript. It fails
// once the session is terminated, since the scripts lived on its driver
// session.
func (s *Session) InitScripts() ([]string, error) {
	if s.terminated.Load() {
		return nil, terminatedField("session init scripts")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.initScripts), nil
}

// Await returns the session itself.
func (s *Session) Await(context.Context) (*Session, error) { return s, nil }

// Future returns an already settled future of the session.
func (s *Session) Future() *future.Future[*Session] { return future.Resolved(s) }

// call runs op against the live driver session inside a span.
func (s *Session) call(op string, fn func(ctx context.Context, h DriverSession) error, attrs ...attribute.KeyValue) error {
	h, err := s.Handle()
	if err != nil {
		return err
	}
	ctx, end := s.client.startSpan(s.ctx, op, append(attrs, attribute.String("session.id", s.id))...)
	err = fn(ctx, h)
	end(err)
	return err
}

// step runs fn and resolves to the session itself.
func (s *Session) step(op string, fn func(ctx context.Context, h DriverSession) error, attrs ...attribute.KeyValue) *SessionPromise {
	return newSessionPromise(future.Go(func() (*Session, error) {
		if err := s.call(op, fn, attrs...); err != nil {
			return nil, err
		}
		return s, nil
	}))
}

// Navigate loads url and resolves to the same session.
func (s *Session) Navigate(url string) *SessionPromise {
	return s.step("session.navigate", func(ctx context.Context, h DriverSession) error {
		return h.Navigate(ctx, url)
	}, attribute.String("url", url))
}

// Restart replaces the session with a fresh one. The receiver is terminated
// and leaves the registry in the same write that adds its replacement.
func (s *Session) Restart() *SessionPromise {
	return newSessionPromise(future.Go(func() (*Session, error) {
		var fresh DriverSession
		err := s.call("session.restart", func(ctx context.Context, h DriverSession) (err error) {
			fresh, err = h.Restart(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}

		next := s.client.newSession(fresh)
		s.client.registry.replace(s, next)
		s.terminate()
		s.client.logger.Info("browser: session restarted", "old", s.id, "new", next.id)
		return next, nil
	}))
}

// Fork opens an additional session. Both sessions stay registered.
func (s *Session) Fork(opts ForkOptions) *SessionPromise {
	return newSessionPromise(future.Go(func() (*Session, error) {
		var next *Session
		err := s.call("session.fork", func(ctx context.Context, h DriverSession) error {
			fresh, err := h.Fork(ctx)
			if err != nil {
				return err
			}
			next = s.client.newSession(fresh)
			if err := s.seed(ctx, h, next, opts); err != nil {
				next.terminate()
				return errors.Join(err, fresh.Close(ctx))
			}
			return nil
		}, attribute.Bool("fork.same_url", opts.SameURL), attribute.Bool("fork.copy_mocks", opts.CopyMocks))
		if err != nil {
			return nil, err
		}

		s.client.registry.add(next)
		s.client.logger.Info("browser: session forked", "source", s.id, "fork", next.id)
		return next, nil
	}))
}

// seed copies the state selected by opts from s into next.
func (s *Session) seed(ctx context.Context, h DriverSession, next *Session, opts ForkOptions) error {
	if opts.CopyConfig {
		s.mu.Lock()
		if s.wait != nil {
			cfg := *s.wait
			next.wait = &cfg
		}
		s.mu.Unlock()
	}
	if opts.CopyMocks {
		scripts, err := s.InitScripts()
		if err != nil {
			return err
		}
		for _, js := range scripts {
			if err := next.handle.AddInitScript(ctx, js); err != nil {
				return err
			}
			next.initScripts = append(next.initScripts, js)
		}
	}
	if opts.SameURL {
		url, err := h.URL(ctx)
		if err != nil {
			return err
		}
		if err := next.handle.Navigate(ctx, url); err != nil {
			return err
		}
	}
	return nil
}

// Close removes the session from the registry and releases the driver
// session. Closing a terminated session is a no-op.
func (s *Session) Close() *future.Future[future.Void] {
	return future.Go(func() (future.Void, error) {
		if !s.terminated.CompareAndSwap(false, true) {
			return future.Void{}, nil
		}
		s.client.registry.remove(s)

		ctx, end := s.client.startSpan(s.ctx, "session.close", attribute.String("session.id", s.id))
		err := s.handle.Close(ctx)
		end(err)
		s.cancel()
		s.client.logger.Info("browser: session closed", "session", s.id)
		return future.Void{}, err
	})
}

func (s *Session) terminate() {
	s.terminated.Store(true)
	s.cancel()
}

// Node looks up the first element matching selector in the whole page.
func (s *Session) Node(selector string) *NodePromise {
	return newNodePromise(future.Go(func() (*Node, error) {
		var el Element
		err := s.call("session.node", func(ctx context.Context, h DriverSession) (err error) {
			el, err = h.Find(ctx, selector)
			return err
		}, attribute.String("selector", selector))
		if err != nil {
			return nil, err
		}
		return &Node{session: s, handle: el, selector: selector}, nil
	}))
}

// NodeSet looks up every element matching selector. The set is a snapshot.
func (s *Session) NodeSet(selector string) *NodeSetPromise {
	return newNodeSetPromise(future.Go(func() (*NodeSet, error) {
		var set *NodeSet
		err := s.call("session.nodeset", func(ctx context.Context, h DriverSession) error {
			list, err := h.FindAll(ctx, selector)
			if err != nil {
				return err
			}
			set, err = snapshot(ctx, s, nil, selector, list)
			return err
		}, attribute.String("selector", selector))
		return set, err
	}))
}

// SendKeys types keys into the focused element.
func (s *Session) SendKeys(keys ...string) *SessionPromise {
	return s.step("session.send_keys", func(ctx context.Context, h DriverSession) error {
		return h.SendKeys(ctx, keys...)
	})
}

// AddInitScript registers js to run on every new document. Forks made with
// CopyMocks replay it.
func (s *Session) AddInitScript(js string) *SessionPromise {
	return s.step("session.add_init_script", func(ctx context.Context, h DriverSession) error {
		if err := h.AddInitScript(ctx, js); err != nil {
			return err
		}
		s.mu.Lock()
		s.initScripts = append(s.initScripts, js)
		s.mu.Unlock()
		return nil
	})
}

// Title reads the document title.
func (s *Session) Title() *future.Future[string] {
	return s.read("session.title", func(ctx context.Context, h DriverSession) (string, error) { return h.Title(ctx) })
}

// URL reads the current URL.
func (s *Session) URL() *future.Future[string] {
	return s.read("session.url", func(ctx context.Context, h DriverSession) (string, error) { return h.URL(ctx) })
}

func (s *Session) read(op string, fn func(ctx context.Context, h DriverSession) (string, error)) *future.Future[string] {
	return future.Go(func() (v string, err error) {
		err = s.call(op, func(ctx context.Context, h DriverSession) (err error) {
			v, err = fn(ctx, h)
			return err
		})
		return v, err
	})
}

// Wait waits for cond, bounded by the configured default timeout.
func (s *Session) Wait(cond SessionCondition) *SessionPromise {
	return s.WaitTimeout(cond, s.WaitConfig().Timeout)
}

// WaitTimeout waits for cond, bounded by timeout. Zero checks once without
// preconditions; a negative timeout waits without bound.
func (s *Session) WaitTimeout(cond SessionCondition, timeout time.Duration) *SessionPromise {
	return newSessionPromise(future.Go(func() (*Session, error) {
		if _, err := s.Handle(); err != nil {
			return nil, err
		}
		ctx, end := s.client.startSpan(s.ctx, "session.wait",
			attribute.String("session.id", s.id),
			attribute.String("condition", cond.Name()),
			attribute.Int64("timeout_ms", timeout.Milliseconds()))
		err := s.client.sessions.Wait(ctx, s, cond, timeout)
		end(err)
		if err != nil {
			return nil, err
		}
		return s, nil
	}))
}

// Expect checks cond once, immediately.
func (s *Session) Expect(cond SessionCondition) *SessionPromise {
	return s.WaitTimeout(cond, 0)
}
