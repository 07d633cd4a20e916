// Package drivertest provides an in-memory browser driver for tests.
//
// Pages are scripted with elements that become present, visible or
// clickable after a delay. Every driver call is counted by name and can be
// made to fail.
package drivertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ysmood/gson"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// Driver is a fake browser.Driver.
type Driver struct {
	// Setup, when set, populates the page of every new session, including
	// sessions created by Restart and Fork.
	Setup func(p *Page)

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
	sessions []*Session
}

var _ browser.Driver = (*Driver)(nil)

// New creates a Driver.
func New() *Driver {
	return &Driver{calls: map[string]int{}, failures: map[string]error{}}
}

// Fail makes every subsequent call named op return err. A nil err clears it.
func (d *Driver) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// Calls returns how many times op was called.
func (d *Driver) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Sessions returns every session the driver created, in creation order.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

func (d *Driver) record(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++
	return d.failures[op]
}

func (d *Driver) NewSession(ctx context.Context) (browser.DriverSession, error) {
	if err := d.record("new_session"); err != nil {
		return nil, err
	}
	return d.newSession(), nil
}

func (d *Driver) newSession() *Session {
	s := &Session{driver: d, page: newPage()}
	if d.Setup != nil {
		d.Setup(s.page)
	}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s
}

// Session is a fake browser.DriverSession.
type Session struct {
	driver *Driver
	page   *Page

	mu     sync.Mutex
	closed bool
	keys   []string
}

var _ browser.DriverSession = (*Session)(nil)

// Page returns the session's document.
func (s *Session) Page() *Page { return s.page }

// Closed reports whether Close or Restart released the session.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Keys returns everything sent with SendKeys, joined.
func (s *Session) Keys() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.keys, "")
}

func (s *Session) Ready(ctx context.Context) (bool, error) {
	if err := s.driver.record("ready"); err != nil {
		return false, err
	}
	return !s.Closed(), nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.driver.record("navigate"); err != nil {
		return err
	}
	s.page.navigate(url)
	return nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	if err := s.driver.record("url"); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.driver.record("title"); err != nil {
		return "", err
	}
	s.page.mu.Lock()
	defer s.page.mu.Unlock()
	return s.page.title, nil
}

func (s *Session) Find(ctx context.Context, selector string) (browser.Element, error) {
	if err := s.driver.record("find"); err != nil {
		return nil, err
	}
	return &locator{sess: s, selector: selector}, nil
}

func (s *Session) FindAll(ctx context.Context, selector string) (browser.ElementList, error) {
	if err := s.driver.record("find_all"); err != nil {
		return nil, err
	}
	return s.list(nil, selector), nil
}

func (s *Session) list(scope *Element, selector string) list {
	s.page.mu.Lock()
	defer s.page.mu.Unlock()
	return list{sess: s, elements: s.page.match(scope, selector, time.Now())}
}

func (s *Session) SendKeys(ctx context.Context, keys ...string) error {
	if err := s.driver.record("send_keys"); err != nil {
		return err
	}
	s.mu.Lock()
	s.keys = append(s.keys, keys...)
	s.mu.Unlock()
	return nil
}

func (s *Session) Execute(ctx context.Context, js string) (gson.JSON, error) {
	if err := s.driver.record("execute"); err != nil {
		return gson.JSON{}, err
	}
	return s.page.execute(js)
}

func (s *Session) AddInitScript(ctx context.Context, js string) error {
	if err := s.driver.record("add_init_script"); err != nil {
		return err
	}
	s.page.mu.Lock()
	s.page.initJS = append(s.page.initJS, js)
	s.page.mu.Unlock()
	return nil
}

func (s *Session) Restart(ctx context.Context) (browser.DriverSession, error) {
	if err := s.driver.record("restart"); err != nil {
		return nil, err
	}
	s.release()
	return s.driver.newSession(), nil
}

func (s *Session) Fork(ctx context.Context) (browser.DriverSession, error) {
	if err := s.driver.record("fork"); err != nil {
		return nil, err
	}
	return s.driver.newSession(), nil
}

func (s *Session) Close(ctx context.Context) error {
	if err := s.driver.record("close"); err != nil {
		return err
	}
	s.release()
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
