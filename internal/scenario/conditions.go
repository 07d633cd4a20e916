package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
	"github.com/nextlevelbuilder/rodchain/pkg/waitfor"
)

var (
	nodeStates = map[string]browser.NodeCondition{
		"present":   browser.Present,
		"visible":   browser.Visible,
		"clickable": browser.Clickable,
		"selected":  browser.Selected,
		"invisible": browser.Invisible,
		"stale":     browser.Staleness,
	}
	sessionStates = map[string]browser.SessionCondition{
		"document_ready": browser.DocumentReady,
		"session_ready":  browser.SessionReady,
	}
)

// node builds the node condition c describes. Combinators are built on e.
func (c *Condition) node(e *waitfor.Engine[*browser.Node]) (browser.NodeCondition, error) {
	var zero browser.NodeCondition
	if err := c.single(); err != nil {
		return zero, err
	}
	switch {
	case c.Is != "":
		cond, ok := nodeStates[c.Is]
		if !ok {
			return zero, fmt.Errorf("unknown node state %q", c.Is)
		}
		return cond, nil
	case c.Text != "":
		return browser.TextToBePresent(c.Text), nil
	case c.Value != "":
		return browser.TextToBePresentInValue(c.Value), nil
	case c.CEL != "":
		p, err := compilePredicate(c.CEL)
		if err != nil {
			return zero, err
		}
		return waitfor.Named[*browser.Node]("cel", "cel("+c.CEL+")", func(ctx context.Context, n *browser.Node) error {
			s, _ := n.Session()
			return waitfor.Poll(ctx, s.WaitConfig().PollInterval, func(ctx context.Context) (bool, error) {
				return p.probe(ctx, n)
			})
		}), nil
	case len(c.Any) > 0:
		return fold(c.Any, e.Or, func(c *Condition) (browser.NodeCondition, error) { return c.node(e) })
	case len(c.All) > 0:
		return fold(c.All, e.And, func(c *Condition) (browser.NodeCondition, error) { return c.node(e) })
	}
	return zero, errors.New("title and url conditions apply to the session, not to nodes")
}

// session builds the session condition c describes.
func (c *Condition) session(e *waitfor.Engine[*browser.Session]) (browser.SessionCondition, error) {
	var zero browser.SessionCondition
	if err := c.single(); err != nil {
		return zero, err
	}
	switch {
	case c.Is != "":
		cond, ok := sessionStates[c.Is]
		if !ok {
			return zero, fmt.Errorf("unknown session state %q", c.Is)
		}
		return cond, nil
	case c.TitleIs != "":
		return browser.TitleIs(c.TitleIs), nil
	case c.TitleContains != "":
		return browser.TitleContains(c.TitleContains), nil
	case c.URLIs != "":
		return browser.URLIs(c.URLIs), nil
	case c.URLContains != "":
		return browser.URLContains(c.URLContains), nil
	case len(c.Any) > 0:
		return fold(c.Any, e.Or, func(c *Condition) (browser.SessionCondition, error) { return c.session(e) })
	case len(c.All) > 0:
		return fold(c.All, e.And, func(c *Condition) (browser.SessionCondition, error) { return c.session(e) })
	}
	return zero, errors.New("text, value and cel conditions apply to nodes, not to the session")
}

// single rejects conditions that set zero or several fields.
func (c *Condition) single() error {
	n := 0
	for _, set := range []bool{
		c.Is != "", c.Text != "", c.Value != "", c.CEL != "", len(c.Any) > 0, len(c.All) > 0,
		c.TitleIs != "", c.TitleContains != "", c.URLIs != "", c.URLContains != "",
	} {
		if set {
			n++
		}
	}
	switch n {
	case 0:
		return errors.New("empty condition")
	case 1:
		return nil
	}
	return errors.New("condition sets more than one field")
}

// fold combines conds left to right with op.
func fold[E any](conds []Condition, op func(a, b waitfor.Condition[E]) waitfor.Condition[E], build func(*Condition) (waitfor.Condition[E], error)) (waitfor.Condition[E], error) {
	acc, err := build(&conds[0])
	if err != nil {
		return acc, err
	}
	for i := range conds[1:] {
		next, err := build(&conds[i+1])
		if err != nil {
			return acc, err
		}
		acc = op(acc, next)
	}
	return acc, nil
}
