package browser_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/rodchain/internal/drivertest"
	"github.com/nextlevelbuilder/rodchain/pkg/browser"
	"github.com/nextlevelbuilder/rodchain/pkg/waitfor"
)

func TestNode_WaitTimesOut(t *testing.T) {
	_, c := newClient(t, nil)
	s := open(t, c)

	start := time.Now()
	_, err := s.Node(".missing").WaitTimeout(browser.Present, 50*time.Millisecond).Await(testContext(t))
	elapsed := time.Since(start)

	var te *waitfor.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TimeoutError", err)
	}
	if te.Bound != 50*time.Millisecond || te.Condition != "present" {
		t.Errorf("timeout error = %+v", te)
	}
	if elapsed > 250*time.Millisecond {
		t.Errorf("timed out after %s, want ~50ms", elapsed)
	}
}

func TestNode_WaitForLateElement(t *testing.T) {
	_, c := newClient(t, func(p *drivertest.Page) {
		p.Add(drivertest.NewElement(".late").WithText("ready now").PresentAfter(20 * time.Millisecond))
	})
	s := open(t, c)

	text, err := s.Node(".late").Wait(browser.Visible).Wait(browser.TextToBePresent("ready")).Text().Await(testContext(t))
	if err != nil || text != "ready now" {
		t.Errorf("Text() = %q, %v", text, err)
	}
}

func TestNode_WaitForStaleness(t *testing.T) {
	el := drivertest.NewElement(".toast")
	var page *drivertest.Page
	_, c := newClient(t, func(p *drivertest.Page) {
		page = p
		p.Add(el)
	})
	s := open(t, c)

	n, err := s.Node(".toast").Wait(browser.Present).Await(testContext(t))
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		page.Remove(el)
	}()
	if _, err := n.Wait(browser.Staleness).Await(testContext(t)); err != nil {
		t.Errorf("staleness: %v", err)
	}
}

func TestNode_ExpectSkipsPreconditions(t *testing.T) {
	drv, c := newClient(t, func(p *drivertest.Page) {
		p.Add(drivertest.NewElement("input").WithAttr("value", "abc").VisibleAfter(time.Hour))
	})
	s := open(t, c)
	ctx := testContext(t)

	_, err := s.Node("input").Expect(browser.Visible).Await(ctx)
	if !errors.Is(err, waitfor.ErrConditionNotMet) {
		t.Fatalf("err = %v, want ErrConditionNotMet", err)
	}
	if n := drv.Calls("present"); n != 0 {
		t.Errorf("present probed %d times by an immediate check", n)
	}

	if _, err := s.Node("input").Expect(browser.TextToBePresentInValue("b")).Await(ctx); err != nil {
		t.Errorf("value expect: %v", err)
	}
}

func TestNode_OrCombinator(t *testing.T) {
	_, c := newClient(t, func(p *drivertest.Page) {
		p.Add(drivertest.NewElement(".a").WithText("done").Disabled())
	})
	s := open(t, c)

	either := c.Nodes().Or(browser.Clickable, browser.TextToBePresent("done"))
	start := time.Now()
	if _, err := s.Node(".a").WaitTimeout(either, time.Second).Await(testContext(t)); err != nil {
		t.Fatalf("or: %v", err)
	}
	if time.Since(start) > 250*time.Millisecond {
		t.Error("or waited for both sides")
	}
}

func TestClient_CustomPrecondition(t *testing.T) {
	_, c := newClient(t, func(p *drivertest.Page) {
		p.Add(drivertest.NewElement(".x").WithText("hi"))
	})
	s := open(t, c)

	var order []string
	var checked atomic.Int32
	audit := waitfor.New("audit", func(ctx context.Context, n *browser.Node) error {
		checked.Add(1)
		order = append(order, "audit")
		return nil
	})
	target := waitfor.New("target", func(ctx context.Context, n *browser.Node) error {
		order = append(order, "target")
		return nil
	})
	if err := c.Nodes().Require(target, audit); err != nil {
		t.Fatalf("require: %v", err)
	}
	if err := c.Nodes().Require(browser.Present, target); err != nil {
		t.Fatalf("require: %v", err)
	}

	if _, err := s.Node(".x").Wait(browser.Clickable).Await(testContext(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if checked.Load() != 1 || len(order) != 2 || order[0] != "audit" {
		t.Errorf("precondition run order = %v", order)
	}

	if err := c.Nodes().Require(audit, browser.Clickable); !errors.Is(err, waitfor.ErrPreconditionCycle) {
		t.Errorf("cycle through defaults: %v, want ErrPreconditionCycle", err)
	}
}
