package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/rodchain/pkg/waitfor"
)

// NodeCondition is a wait condition over a single node. Waiting on a
// NodeSet evaluates it against every node.
type NodeCondition = waitfor.Condition[*Node]

// SessionCondition is a wait condition over a session.
type SessionCondition = waitfor.Condition[*Session]

var (
	// Present holds once the element is attached to the document.
	Present = waitfor.New("present", nodeProbe(func(ctx context.Context, el Element) (bool, error) {
		return el.Present(ctx)
	}))

	// Visible holds once the element is displayed. Requires Present.
	Visible = waitfor.New("visible", nodeProbe(func(ctx context.Context, el Element) (bool, error) {
		return el.Visible(ctx)
	}))

	// Clickable holds once the element is visible and enabled. Requires Visible.
	Clickable = waitfor.New("clickable", nodeProbe(clickable))

	// Selected requires Visible. Its check is the clickability probe, not a
	// selection-state read.
	Selected = waitfor.New("selected", nodeProbe(clickable))

	// Invisible holds once the element is hidden or gone.
	Invisible = waitfor.New("invisible", nodeProbe(func(ctx context.Context, el Element) (bool, error) {
		v, err := absentIsFalse(el.Visible(ctx))
		return !v, err
	}))

	// Staleness holds once the element left the document. Requires Invisible.
	Staleness = waitfor.New("staleness", nodeProbe(func(ctx context.Context, el Element) (bool, error) {
		p, err := absentIsFalse(el.Present(ctx))
		return !p, err
	}))

	// DocumentReady holds once document.readyState is past "loading".
	DocumentReady = waitfor.New("document-ready", sessionProbe(func(ctx context.Context, h DriverSession) (bool, error) {
		v, err := h.Execute(ctx, `() => document.readyState`)
		if err != nil {
			return false, err
		}
		return v.Str() != "" && v.Str() != "loading", nil
	}))

	// SessionReady holds once the driver reports the session ready.
	SessionReady = waitfor.New("session-ready", sessionProbe(func(ctx context.Context, h DriverSession) (bool, error) {
		return h.Ready(ctx)
	}))
)

func clickable(ctx context.Context, el Element) (bool, error) {
	return el.Clickable(ctx)
}

// TextToBePresent holds once the element's text contains text.
func TextToBePresent(text string) NodeCondition {
	return waitfor.Named("text-present", fmt.Sprintf("text %q present", text), nodeProbe(func(ctx context.Context, el Element) (bool, error) {
		v, err := el.Text(ctx)
		return absentIsFalse(strings.Contains(v, text), err)
	}))
}

// TextToBePresentInValue holds once the element's value contains text.
func TextToBePresentInValue(text string) NodeCondition {
	return waitfor.Named("text-present-in-value", fmt.Sprintf("value %q present", text), nodeProbe(func(ctx context.Context, el Element) (bool, error) {
		v, err := el.Attribute(ctx, "value")
		return absentIsFalse(strings.Contains(v, text), err)
	}))
}

// TitleContains holds once the document title contains text.
func TitleContains(text string) SessionCondition {
	return waitfor.Named("title-contains", fmt.Sprintf("title contains %q", text), sessionProbe(func(ctx context.Context, h DriverSession) (bool, error) {
		v, err := h.Title(ctx)
		return err == nil && strings.Contains(v, text), err
	}))
}

// TitleIs holds once the document title equals text.
func TitleIs(text string) SessionCondition {
	return waitfor.Named("title-is", fmt.Sprintf("title is %q", text), sessionProbe(func(ctx context.Context, h DriverSession) (bool, error) {
		v, err := h.Title(ctx)
		return err == nil && v == text, err
	}))
}

// URLContains holds once the current URL contains text.
func URLContains(text string) SessionCondition {
	return waitfor.Named("url-contains", fmt.Sprintf("url contains %q", text), sessionProbe(func(ctx context.Context, h DriverSession) (bool, error) {
		v, err := h.URL(ctx)
		return err == nil && strings.Contains(v, text), err
	}))
}

// URLIs holds once the current URL equals text.
func URLIs(text string) SessionCondition {
	return waitfor.Named("url-is", fmt.Sprintf("url is %q", text), sessionProbe(func(ctx context.Context, h DriverSession) (bool, error) {
		v, err := h.URL(ctx)
		return err == nil && v == text, err
	}))
}

// absentIsFalse turns a missing element into a negative probe result.
func absentIsFalse(ok bool, err error) (bool, error) {
	if errors.Is(err, ErrNoSuchElement) {
		return false, nil
	}
	return ok, err
}

func nodeProbe(probe func(ctx context.Context, el Element) (bool, error)) waitfor.CheckFunc[*Node] {
	return func(ctx context.Context, n *Node) error {
		el, err := n.Handle()
		if err != nil {
			return err
		}
		return waitfor.Poll(ctx, n.session.WaitConfig().PollInterval, func(ctx context.Context) (bool, error) {
			return probe(ctx, el)
		})
	}
}

func sessionProbe(probe func(ctx context.Context, h DriverSession) (bool, error)) waitfor.CheckFunc[*Session] {
	return func(ctx context.Context, s *Session) error {
		h, err := s.Handle()
		if err != nil {
			return err
		}
		return waitfor.Poll(ctx, s.WaitConfig().PollInterval, func(ctx context.Context) (bool, error) {
			return probe(ctx, h)
		})
	}
}
