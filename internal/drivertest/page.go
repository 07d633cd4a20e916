package drivertest

import (
	"strings"
	"sync"
	"time"

	"github.com/ysmood/gson"
)

// ScriptFunc answers Execute calls on a page.
type ScriptFunc func(js string) (gson.JSON, error)

// Page is the scripted document of one fake session.
type Page struct {
	mu         sync.Mutex
	url        string
	title      string
	readyState string
	roots      []*Element
	initJS     []string
	navigated  []string
	script     ScriptFunc
}

func newPage() *Page {
	return &Page{url: "about:blank", readyState: "complete"}
}

// Add attaches elements to the document root.
func (p *Page) Add(els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for _, e := range els {
		e.attach(p, now)
		p.roots = append(p.roots, e)
	}
}

// Remove detaches e and its subtree.
func (p *Page) Remove(e *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e.removed = true
}

// SetTitle sets the document title.
func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	p.title = title
	p.mu.Unlock()
}

// SetReadyState sets document.readyState.
func (p *Page) SetReadyState(state string) {
	p.mu.Lock()
	p.readyState = state
	p.mu.Unlock()
}

// OnExecute installs the handler for scripts other than readyState reads.
func (p *Page) OnExecute(fn ScriptFunc) {
	p.mu.Lock()
	p.script = fn
	p.mu.Unlock()
}

// URL returns the current URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Navigations returns every URL loaded, in order.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// InitScripts returns the scripts registered on the page.
func (p *Page) InitScripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.initJS...)
}

func (p *Page) navigate(url string) {
	p.mu.Lock()
	p.url = url
	p.navigated = append(p.navigated, url)
	p.mu.Unlock()
}

func (p *Page) execute(js string) (gson.JSON, error) {
	p.mu.Lock()
	state, fn := p.readyState, p.script
	p.mu.Unlock()

	if strings.Contains(js, "document.readyState") {
		return gson.New(state), nil
	}
	if fn != nil {
		return fn(js)
	}
	return gson.New(map[string]any{"success": true, "value": nil}), nil
}

// match returns the attached elements under scope matching selector, in
// document order. Must be called with p.mu held.
func (p *Page) match(scope *Element, selector string, now time.Time) []*Element {
	var out []*Element
	var walk func([]*Element)
	walk = func(list []*Element) {
		for _, e := range list {
			if !e.attached(now) {
				continue
			}
			if e.selector == selector {
				out = append(out, e)
			}
			walk(e.children)
		}
	}
	if scope == nil {
		walk(p.roots)
	} else {
		walk(scope.children)
	}
	return out
}
