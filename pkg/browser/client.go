// Package browser is a fluent chaining layer over a browser automation driver.
//
// Every operation on a Session, Node or NodeSet starts immediately and
// returns a promise of its result. A promise exposes the same operations as
// the entity it will resolve to, so a chain such as
//
//	s.Navigate(url).Node(".x").Click().Wait(browser.Visible)
//
// reads flat while each step runs asynchronously. A failure anywhere in the
// chain skips the remaining steps and surfaces, unchanged, from Await.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/rodchain/pkg/future"
	"github.com/nextlevelbuilder/rodchain/pkg/waitfor"
)

const tracerName = "github.com/nextlevelbuilder/rodchain/pkg/browser"

// WaitConfig controls bounded waits.
type WaitConfig struct {
	// Timeout bounds Wait when no explicit timeout is given.
	Timeout time.Duration
	// PollInterval paces driver probes inside a condition check.
	PollInterval time.Duration
	// DocumentReadyGuard makes title and URL conditions wait for the
	// document to leave the "loading" state first.
	DocumentReadyGuard bool
	// SessionReadyGuard makes them wait for the driver session to report ready.
	SessionReadyGuard bool
}

// DefaultWaitConfig returns sensible defaults.
func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		Timeout:            10 * time.Second,
		PollInterval:       waitfor.DefaultPollInterval,
		DocumentReadyGuard: true,
	}
}

// Client owns the driver, the session registry and the precondition graphs.
type Client struct {
	driver   Driver
	registry *Registry
	sessions *waitfor.Engine[*Session]
	nodes    *waitfor.Engine[*Node]
	wait     atomic.Pointer[WaitConfig]
	logger   *slog.Logger
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	activeMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the tracer used for driver-backed operations.
// Defaults to the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithRegistry shares a session registry between clients.
func WithRegistry(r *Registry) Option {
	return func(c *Client) { c.registry = r }
}

// WithWaitConfig overrides DefaultWaitConfig. The guard flags are read once,
// when the default precondition graph is built.
func WithWaitConfig(cfg WaitConfig) Option {
	return func(c *Client) { c.wait.Store(&cfg) }
}

// NewClient creates a Client over drv and registers the default
// precondition graph.
func NewClient(drv Driver, opts ...Option) *Client {
	c := &Client{
		driver: drv,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	def := DefaultWaitConfig()
	c.wait.Store(&def)
	for _, o := range opts {
		o(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.sessions = waitfor.NewEngine[*Session](waitfor.WithLogger(c.logger))
	c.nodes = waitfor.NewEngine[*Node](waitfor.WithLogger(c.logger))
	c.registerDefaults()
	return c
}

func (c *Client) registerDefaults() {
	mustRequire(c.nodes, Visible, Present)
	mustRequire(c.nodes, Clickable, Visible)
	mustRequire(c.nodes, Selected, Visible)
	mustRequire(c.nodes, Staleness, Invisible)

	cfg := c.WaitConfig()
	for _, cond := range []SessionCondition{TitleContains(""), TitleIs(""), URLContains(""), URLIs("")} {
		switch {
		case cfg.DocumentReadyGuard:
			mustRequire(c.sessions, cond, DocumentReady)
		case cfg.SessionReadyGuard:
			mustRequire(c.sessions, cond, SessionReady)
		}
	}
	if cfg.DocumentReadyGuard && cfg.SessionReadyGuard {
		mustRequire(c.sessions, DocumentReady, SessionReady)
	}
}

func mustRequire[E any](e *waitfor.Engine[E], cond, req waitfor.Condition[E]) {
	if err := e.Require(cond, req); err != nil {
		panic(err)
	}
}

// Registry returns the session registry.
func (c *Client) Registry() *Registry { return c.registry }

// Sessions returns the precondition graph of session conditions.
func (c *Client) Sessions() *waitfor.Engine[*Session] { return c.sessions }

// Nodes returns the precondition graph of node conditions.
func (c *Client) Nodes() *waitfor.Engine[*Node] { return c.nodes }

// WaitConfig returns the current wait settings.
func (c *Client) WaitConfig() WaitConfig { return *c.wait.Load() }

// SetWaitConfig replaces the wait settings used by sessions without an
// override. Safe to call while waits are running.
func (c *Client) SetWaitConfig(cfg WaitConfig) {
	c.wait.Store(&cfg)
	c.logger.Info("browser: wait config updated", "timeout", cfg.Timeout, "poll", cfg.PollInterval)
}

// Open starts a new session and appends it to the registry.
func (c *Client) Open() *SessionPromise {
	return newSessionPromise(future.Go(func() (*Session, error) {
		s, err := c.open()
		if err != nil {
			return nil, err
		}
		c.registry.add(s)
		return s, nil
	}))
}

// Active resolves to the first registered session, opening one when the
// registry is empty.
func (c *Client) Active() *SessionPromise {
	return newSessionPromise(future.Go(func() (*Session, error) {
		c.activeMu.Lock()
		defer c.activeMu.Unlock()

		if s := c.registry.Active(); s != nil {
			return s, nil
		}
		s, err := c.open()
		if err != nil {
			return nil, err
		}
		c.registry.add(s)
		return s, nil
	}))
}

func (c *Client) open() (*Session, error) {
	ctx, end := c.startSpan(c.ctx, "client.open")
	h, err := c.driver.NewSession(ctx)
	end(err)
	if err != nil {
		return nil, err
	}
	s := c.newSession(h)
	c.logger.Info("browser: session opened", "session", s.id)
	return s, nil
}

func (c *Client) newSession(h DriverSession) *Session {
	ctx, cancel := context.WithCancel(c.ctx)
	return &Session{
		id:     uuid.NewString(),
		client: c,
		handle: h,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close closes every registered session and stops all detached evaluations.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	for _, s := range c.registry.Sessions() {
		if s.client != c {
			continue
		}
		if _, err := s.Close().Await(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.id, err))
		}
	}
	c.cancel()
	return errors.Join(errs...)
}

// startSpan opens a span for a driver-backed operation. The returned func
// ends it, recording err when non-nil.
func (c *Client) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
