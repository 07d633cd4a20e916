package drivertest

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// locator is a lazy lookup, or a bound element when el is set.
type locator struct {
	sess     *Session
	scope    *locator
	selector string
	el       *Element
}

var _ browser.Element = (*locator)(nil)

// resolve returns the element the locator points at now. Must be called
// with the page mutex held.
func (l *locator) resolve(now time.Time) (*Element, error) {
	if l.el != nil {
		if !l.el.attached(now) {
			return nil, browser.ErrNoSuchElement
		}
		return l.el, nil
	}
	var scope *Element
	if l.scope != nil {
		var err error
		if scope, err = l.scope.resolve(now); err != nil {
			return nil, err
		}
	}
	matches := l.sess.page.match(scope, l.selector, now)
	if len(matches) == 0 {
		return nil, browser.ErrNoSuchElement
	}
	return matches[0], nil
}

// with records op, resolves the element and runs fn under the page mutex.
func (l *locator) with(op string, fn func(e *Element, now time.Time) error) error {
	if err := l.sess.driver.record(op); err != nil {
		return err
	}
	p := l.sess.page
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	e, err := l.resolve(now)
	if err != nil {
		return err
	}
	return fn(e, now)
}

// probe is with for state checks: a missing element reads as false.
func (l *locator) probe(op string, fn func(e *Element, now time.Time) bool) (bool, error) {
	if err := l.sess.driver.record(op); err != nil {
		return false, err
	}
	p := l.sess.page
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	e, err := l.resolve(now)
	if err != nil {
		return false, nil
	}
	return fn(e, now), nil
}

func (l *locator) Find(ctx context.Context, selector string) (browser.Element, error) {
	if err := l.sess.driver.record("find"); err != nil {
		return nil, err
	}
	return &locator{sess: l.sess, scope: l, selector: selector}, nil
}

func (l *locator) FindAll(ctx context.Context, selector string) (browser.ElementList, error) {
	var out list
	err := l.with("find_all", func(e *Element, now time.Time) error {
		out = list{sess: l.sess, elements: l.sess.page.match(e, selector, now)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *locator) Parent(ctx context.Context, selector string) (browser.Element, error) {
	var anc *Element
	err := l.with("parent", func(e *Element, now time.Time) error {
		if anc = e.ancestor(selector, now); anc == nil {
			return browser.ErrNoSuchElement
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &locator{sess: l.sess, selector: selector, el: anc}, nil
}

func (l *locator) Click(ctx context.Context) error {
	return l.with("click", func(e *Element, now time.Time) error {
		e.clicks++
		return nil
	})
}

func (l *locator) SendKeys(ctx context.Context, keys ...string) error {
	return l.with("send_keys", func(e *Element, now time.Time) error {
		e.typed = append(e.typed, keys...)
		for _, k := range keys {
			e.attrs["value"] += k
		}
		return nil
	})
}

func (l *locator) Clear(ctx context.Context) error {
	return l.with("clear", func(e *Element, now time.Time) error {
		e.attrs["value"] = ""
		return nil
	})
}

func (l *locator) Text(ctx context.Context) (string, error) {
	var v string
	err := l.with("text", func(e *Element, now time.Time) error {
		v = e.text
		return nil
	})
	return v, err
}

func (l *locator) Attribute(ctx context.Context, name string) (string, error) {
	var v string
	err := l.with("attribute", func(e *Element, now time.Time) error {
		v = e.attrs[name]
		return nil
	})
	return v, err
}

func (l *locator) Present(ctx context.Context) (bool, error) {
	return l.probe("present", func(e *Element, now time.Time) bool { return true })
}

func (l *locator) Visible(ctx context.Context) (bool, error) {
	return l.probe("visible", (*Element).visible)
}

func (l *locator) Clickable(ctx context.Context) (bool, error) {
	return l.probe("clickable", (*Element).clickable)
}

// list is a fixed FindAll result.
type list struct {
	sess     *Session
	elements []*Element
}

func (l list) Count(ctx context.Context) (int, error) {
	if err := l.sess.driver.record("count"); err != nil {
		return 0, err
	}
	return len(l.elements), nil
}

func (l list) Index(i int) browser.Element {
	return &locator{sess: l.sess, el: l.elements[i]}
}
