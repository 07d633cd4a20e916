package browser

import (
	"context"
	"errors"

	"github.com/ysmood/gson"
)

// ErrNoSuchElement is returned by a driver when a locator matches nothing at
// the moment an interaction needs a concrete element.
var ErrNoSuchElement = errors.New("no such element")

// Driver opens sessions on a browser backend.
type Driver interface {
	NewSession(ctx context.Context) (DriverSession, error)
}

// DriverSession is one live session of the underlying automation client.
// Lookups are lazy: Find returns a locator that resolves on use.
type DriverSession interface {
	Ready(ctx context.Context) (bool, error)
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) (ElementList, error)

	// SendKeys types into whatever element currently has focus.
	SendKeys(ctx context.Context, keys ...string) error

	// Execute calls the function expression js in the page and returns its
	// JSON-serialisable result. A returned promise is awaited.
	Execute(ctx context.Context, js string) (gson.JSON, error)

	// AddInitScript registers js to run on every new document of the session.
	AddInitScript(ctx context.Context, js string) error

	// Restart replaces the session with a fresh one and closes the receiver.
	Restart(ctx context.Context) (DriverSession, error)
	// Fork opens an additional session with the same startup settings.
	Fork(ctx context.Context) (DriverSession, error)
	Close(ctx context.Context) error
}

// Element is a located element. Probe methods never block on the element
// appearing; they report the current state.
type Element interface {
	Find(ctx context.Context, selector string) (Element, error)
	FindAll(ctx context.Context, selector string) (ElementList, error)
	// Parent locates the closest ancestor matching selector.
	Parent(ctx context.Context, selector string) (Element, error)

	Click(ctx context.Context) error
	SendKeys(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error

	Text(ctx context.Context) (string, error)
	// Attribute reads an attribute. "value" reads the live form value.
	Attribute(ctx context.Context, name string) (string, error)

	Present(ctx context.Context) (bool, error)
	Visible(ctx context.Context) (bool, error)
	Clickable(ctx context.Context) (bool, error)
}

// ElementList is the result of a multi-match lookup, fixed at lookup time.
type ElementList interface {
	Count(ctx context.Context) (int, error)
	Index(i int) Element
}
