// Package rodriver implements browser.Driver on top of go-rod.
//
// Each session is an isolated incognito browser context with one page, so
// restarting or forking a session never shares cookies or storage with its
// siblings.
package rodriver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/mattn/go-shellwords"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// Driver manages the Chrome process and opens sessions on it.
type Driver struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher

	remoteURL string
	bin       string
	flags     string
	headless  bool
	stealth   bool
	logger    *slog.Logger
}

var _ browser.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithHeadless sets headless mode (default true).
func WithHeadless(h bool) Option {
	return func(d *Driver) { d.headless = h }
}

// WithRemoteURL connects to an already running Chrome instead of launching one.
func WithRemoteURL(u string) Option {
	return func(d *Driver) { d.remoteURL = u }
}

// WithBin sets the Chrome binary. Empty lets rod find or download one.
func WithBin(path string) Option {
	return func(d *Driver) { d.bin = path }
}

// WithFlags adds launcher flags given as a shell-style string,
// e.g. `--window-size=1280,800 --lang="en-US"`.
func WithFlags(s string) Option {
	return func(d *Driver) { d.flags = s }
}

// WithStealth opens pages with go-rod/stealth evasions applied.
func WithStealth(on bool) Option {
	return func(d *Driver) { d.stealth = on }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// New creates a Driver. Chrome is started on the first NewSession or by Start.
func New(opts ...Option) *Driver {
	d := &Driver{
		headless: true,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Start launches Chrome, or connects to the remote URL when one is set.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked(ctx)
}

func (d *Driver) startLocked(ctx context.Context) error {
	if d.browser != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	controlURL := d.remoteURL
	if controlURL == "" {
		l, err := d.newLauncher()
		if err != nil {
			return err
		}
		controlURL, err = l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		d.launcher = l
		d.logger.Info("rodriver: chrome launched", "cdp", controlURL, "headless", d.headless)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		d.cleanupLocked()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		d.logger.Warn("rodriver: ignore cert errors", "error", err)
	}
	d.browser = b
	return nil
}

func (d *Driver) newLauncher() (*launcher.Launcher, error) {
	extra, err := parseFlags(d.flags)
	if err != nil {
		return nil, err
	}
	l := launcher.New().
		Headless(d.headless).
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-blink-features", "AutomationControlled")
	if d.bin != "" {
		l = l.Bin(d.bin)
	}
	for _, f := range extra {
		l = l.Set(f.name, f.values...)
	}
	return l, nil
}

// Stop closes Chrome when this driver launched it. A remote browser is left running.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser == nil {
		return nil
	}
	var err error
	if d.launcher != nil {
		err = d.browser.Close()
	}
	d.browser = nil
	d.cleanupLocked()
	return err
}

func (d *Driver) cleanupLocked() {
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
}

// NewSession opens an incognito context with a single blank page.
func (d *Driver) NewSession(ctx context.Context) (browser.DriverSession, error) {
	d.mu.Lock()
	if err := d.startLocked(ctx); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	b := d.browser
	d.mu.Unlock()

	inc, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	var page *rod.Page
	if d.stealth {
		page, err = stealth.Page(inc)
	} else {
		page, err = inc.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = inc.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	d.logger.Debug("rodriver: session opened", "target", page.TargetID, "stealth", d.stealth)
	return &session{drv: d, ctx: inc, page: page}, nil
}

type launchFlag struct {
	name   flags.Flag
	values []string
}

// parseFlags splits a shell-style flag string into launcher flags.
// "--a=b" sets a to b, "--a" sets a bare switch. Order is kept.
func parseFlags(s string) ([]launchFlag, error) {
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse browser flags: %w", err)
	}
	out := make([]launchFlag, 0, len(args))
	for _, a := range args {
		a = strings.TrimLeft(a, "-")
		if a == "" {
			continue
		}
		name, value, ok := strings.Cut(a, "=")
		f := launchFlag{name: flags.Flag(name)}
		if ok {
			f.values = []string{value}
		}
		out = append(out, f)
	}
	return out, nil
}
