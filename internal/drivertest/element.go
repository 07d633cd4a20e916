package drivertest

import (
	"strings"
	"time"
)

// Element is a scripted DOM element. Timing helpers are relative to the
// moment the element is added to a page.
type Element struct {
	selector string
	text     string
	attrs    map[string]string
	children []*Element
	parent   *Element

	presentIn   time.Duration
	visibleIn   time.Duration
	clickableIn time.Duration
	hidden      bool
	disabled    bool

	page    *Page
	addedAt time.Time
	removed bool

	clicks int
	typed  []string
}

// NewElement creates an element matched by selector. Matching is exact:
// a selector matches an element created with the same string.
func NewElement(selector string) *Element {
	return &Element{selector: selector, attrs: map[string]string{}}
}

// WithText sets the element's text.
func (e *Element) WithText(text string) *Element { e.text = text; return e }

// WithAttr sets an attribute.
func (e *Element) WithAttr(name, value string) *Element { e.attrs[name] = value; return e }

// PresentAfter delays attachment.
func (e *Element) PresentAfter(d time.Duration) *Element { e.presentIn = d; return e }

// VisibleAfter delays visibility.
func (e *Element) VisibleAfter(d time.Duration) *Element { e.visibleIn = d; return e }

// ClickableAfter delays clickability.
func (e *Element) ClickableAfter(d time.Duration) *Element { e.clickableIn = d; return e }

// Hidden keeps the element attached but never visible.
func (e *Element) Hidden() *Element { e.hidden = true; return e }

// Disabled keeps the element visible but never clickable.
func (e *Element) Disabled() *Element { e.disabled = true; return e }

// Append adds children, in order.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		c.parent = e
		e.children = append(e.children, c)
	}
	return e
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.clicks
}

// Typed returns everything sent to the element, joined.
func (e *Element) Typed() string {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return strings.Join(e.typed, "")
}

// The methods below must be called with page.mu held.

func (e *Element) attached(now time.Time) bool {
	if e.removed || e.page == nil || now.Before(e.addedAt.Add(e.presentIn)) {
		return false
	}
	return e.parent == nil || e.parent.attached(now)
}

func (e *Element) visible(now time.Time) bool {
	return e.attached(now) && !e.hidden && !now.Before(e.addedAt.Add(e.visibleIn))
}

func (e *Element) clickable(now time.Time) bool {
	return e.visible(now) && !e.disabled && !now.Before(e.addedAt.Add(e.clickableIn))
}

func (e *Element) attach(p *Page, at time.Time) {
	e.page, e.addedAt, e.removed = p, at, false
	for _, c := range e.children {
		c.attach(p, at)
	}
}

func (e *Element) ancestor(selector string, now time.Time) *Element {
	for a := e.parent; a != nil; a = a.parent {
		if a.selector == selector && a.attached(now) {
			return a
		}
	}
	return nil
}
