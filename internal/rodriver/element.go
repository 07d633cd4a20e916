package rodriver

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

const (
	jsConnected = `function() { return this.isConnected }`
	jsDisabled  = `function() { return !!this.disabled }`
	jsClear     = `function() {
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`
)

// element is either a lazy locator (selector under scope, resolved on every
// use) or a bound handle captured by a multi-match lookup.
type element struct {
	s        *session
	scope    *element
	selector string
	bound    *rod.Element
}

var _ browser.Element = (*element)(nil)

func (e *element) resolve(ctx context.Context) (*rod.Element, error) {
	if e.bound != nil {
		el := e.bound.Context(ctx)
		res, err := el.Eval(jsConnected)
		if err != nil || !res.Value.Bool() {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, browser.ErrNoSuchElement
		}
		return el, nil
	}

	var (
		has bool
		el  *rod.Element
		err error
	)
	if e.scope == nil {
		has, el, err = e.s.p(ctx).Has(e.selector)
	} else {
		parent, perr := e.scope.resolve(ctx)
		if perr != nil {
			return nil, perr
		}
		has, el, err = parent.Has(e.selector)
	}
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, e.selector)
	}
	return el.Context(ctx), nil
}

// probe resolves the element and reports absence as false.
func (e *element) probe(ctx context.Context, fn func(el *rod.Element) (bool, error)) (bool, error) {
	el, err := e.resolve(ctx)
	if errors.Is(err, browser.ErrNoSuchElement) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fn(el)
}

func (e *element) Find(ctx context.Context, selector string) (browser.Element, error) {
	return &element{s: e.s, scope: e, selector: selector}, nil
}

func (e *element) FindAll(ctx context.Context, selector string) (browser.ElementList, error) {
	el, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}
	els, err := el.Elements(selector)
	if err != nil {
		return nil, err
	}
	return &elementList{s: e.s, els: els}, nil
}

func (e *element) Parent(ctx context.Context, selector string) (browser.Element, error) {
	el, err := e.resolve(ctx)
	if err != nil {
		return nil, err
	}
	parents, err := el.Parents(selector)
	if err != nil {
		return nil, err
	}
	if parents.Empty() {
		return nil, fmt.Errorf("%w: parent %s", browser.ErrNoSuchElement, selector)
	}
	return &element{s: e.s, bound: parents.First()}, nil
}

func (e *element) Click(ctx context.Context) error {
	el, err := e.resolve(ctx)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) SendKeys(ctx context.Context, keys ...string) error {
	el, err := e.resolve(ctx)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return err
	}
	return typeKeys(e.s.p(ctx), keys)
}

func (e *element) Clear(ctx context.Context) error {
	el, err := e.resolve(ctx)
	if err != nil {
		return err
	}
	_, err = el.Eval(jsClear)
	return err
}

func (e *element) Text(ctx context.Context) (string, error) {
	el, err := e.resolve(ctx)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	el, err := e.resolve(ctx)
	if err != nil {
		return "", err
	}
	if name == "value" {
		v, err := el.Property("value")
		if err != nil {
			return "", err
		}
		return v.Str(), nil
	}
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (e *element) Present(ctx context.Context) (bool, error) {
	return e.probe(ctx, func(*rod.Element) (bool, error) { return true, nil })
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	return e.probe(ctx, func(el *rod.Element) (bool, error) { return el.Visible() })
}

// Clickable means visible, not covered by another element, and enabled.
func (e *element) Clickable(ctx context.Context) (bool, error) {
	return e.probe(ctx, func(el *rod.Element) (bool, error) {
		if ok, err := el.Visible(); err != nil || !ok {
			return false, err
		}
		if _, err := el.Interactable(); err != nil {
			return false, nil
		}
		res, err := el.Eval(jsDisabled)
		if err != nil {
			return false, err
		}
		return !res.Value.Bool(), nil
	})
}

// elementList holds the handles matched at lookup time.
type elementList struct {
	s   *session
	els rod.Elements
}

var _ browser.ElementList = (*elementList)(nil)

func (l *elementList) Count(ctx context.Context) (int, error) {
	return len(l.els), nil
}

func (l *elementList) Index(i int) browser.Element {
	return &element{s: l.s, bound: l.els[i]}
}
