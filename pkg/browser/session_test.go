package browser_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ysmood/gson"

	"github.com/nextlevelbuilder/rodchain/internal/drivertest"
	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

func TestSession_RestartReplacesInRegistry(t *testing.T) {
	drv, c := newClient(t, nil)
	s := open(t, c)

	s2, err := s.Restart().Await(testContext(t))
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !s.Terminated() {
		t.Error("old session not terminated")
	}
	if c.Registry().Contains(s) {
		t.Error("old session still registered")
	}
	if !c.Registry().Contains(s2) {
		t.Error("new session not registered")
	}
	if c.Registry().Active() != s2 {
		t.Error("new session is not active")
	}
	if !drv.Sessions()[0].Closed() {
		t.Error("old driver session not released")
	}

	if _, err := s.Handle(); !errors.Is(err, browser.ErrStaleState) {
		t.Errorf("Handle() on terminated session: %v, want ErrStaleState", err)
	}
	before := drv.Calls("navigate")
	if _, err := s.Navigate("https://example.test").Await(testContext(t)); !errors.Is(err, browser.ErrStaleState) {
		t.Errorf("Navigate() on terminated session: %v, want ErrStaleState", err)
	}
	if drv.Calls("navigate") != before {
		t.Error("terminated session reached the driver")
	}
}

func TestSession_ForkKeepsBoth(t *testing.T) {
	drv, c := newClient(t, nil)
	s := open(t, c)
	ctx := testContext(t)

	if _, err := s.AddInitScript("window.mock = 1").Navigate("https://example.test/start").Await(ctx); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	cfg := browser.DefaultWaitConfig()
	cfg.Timeout = 3 * time.Second
	s.SetWaitConfig(cfg)

	f, err := s.Fork(browser.ForkOptions{SameURL: true, CopyMocks: true, CopyConfig: true}).Await(ctx)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if s.Terminated() || f.Terminated() {
		t.Error("fork terminated a session")
	}
	if c.Registry().Len() != 2 || !c.Registry().Contains(s) || !c.Registry().Contains(f) {
		t.Errorf("registry = %d sessions, want source and fork", c.Registry().Len())
	}

	page := drv.Sessions()[1].Page()
	if url := page.URL(); url != "https://example.test/start" {
		t.Errorf("fork url = %q", url)
	}
	if js := page.InitScripts(); len(js) != 1 || js[0] != "window.mock = 1" {
		t.Errorf("fork init scripts = %v", js)
	}
	if f.WaitConfig().Timeout != 3*time.Second {
		t.Errorf("fork timeout = %s, want copied override", f.WaitConfig().Timeout)
	}
}

func TestSession_ForkWithoutOptions(t *testing.T) {
	drv, c := newClient(t, nil)
	s := open(t, c)

	if _, err := s.AddInitScript("window.mock = 1").Fork(browser.ForkOptions{}).Await(testContext(t)); err != nil {
		t.Fatalf("fork: %v", err)
	}
	page := drv.Sessions()[1].Page()
	if len(page.InitScripts()) != 0 || len(page.Navigations()) != 0 {
		t.Error("fork without options inherited state")
	}
}

func TestSession_Close(t *testing.T) {
	drv, c := newClient(t, nil)
	s := open(t, c)
	ctx := testContext(t)

	if _, err := s.Close().Await(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Registry().Contains(s) {
		t.Error("closed session still registered")
	}
	if !s.Terminated() {
		t.Error("closed session not terminated")
	}
	if _, err := s.Handle(); !errors.Is(err, browser.ErrStaleState) {
		t.Errorf("Handle() after close: %v, want ErrStaleState", err)
	}
	if _, err := s.InitScripts(); !errors.Is(err, browser.ErrStaleState) {
		t.Errorf("InitScripts() after close: %v, want ErrStaleState", err)
	}
	if _, err := s.Close().Await(ctx); err != nil {
		t.Errorf("second close: %v", err)
	}
	if n := drv.Calls("close"); n != 1 {
		t.Errorf("driver close called %d times, want 1", n)
	}
}

func TestClient_ActiveOpensOnce(t *testing.T) {
	drv, c := newClient(t, nil)
	ctx := testContext(t)

	var wg sync.WaitGroup
	got := make([]*browser.Session, 5)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], _ = c.Active().Await(ctx)
		}()
	}
	wg.Wait()

	for i, s := range got {
		if s == nil || s != got[0] {
			t.Fatalf("Active()[%d] = %v, want one shared session", i, s)
		}
	}
	if n := drv.Calls("new_session"); n != 1 {
		t.Errorf("new_session called %d times, want 1", n)
	}
}

func TestSession_ExecuteScript(t *testing.T) {
	_, c := newClient(t, func(p *drivertest.Page) {
		p.OnExecute(func(js string) (gson.JSON, error) {
			if strings.Contains(js, "throw") {
				return gson.New(map[string]any{"success": false, "value": map[string]any{"message": "bad"}}), nil
			}
			return gson.New(map[string]any{"success": true, "value": 42.0}), nil
		})
	})
	s := open(t, c)
	ctx := testContext(t)

	v, err := s.ExecuteScript("return 42").Await(ctx)
	if err != nil || v.Int() != 42 {
		t.Fatalf("ExecuteScript() = %v, %v; want 42", v, err)
	}

	_, err = s.ExecuteScript("throw new Error('bad')").Await(ctx)
	var se *browser.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ScriptError", err)
	}
	if se.Value.Get("message").Str() != "bad" {
		t.Errorf("script error value = %s", se.Value.JSON("", ""))
	}
}

func TestSession_Storage(t *testing.T) {
	var mu sync.Mutex
	var scripts []string
	_, c := newClient(t, func(p *drivertest.Page) {
		p.OnExecute(func(js string) (gson.JSON, error) {
			mu.Lock()
			scripts = append(scripts, js)
			mu.Unlock()
			if strings.Contains(js, `getItem("missing")`) {
				return gson.New(map[string]any{"success": true, "value": nil}), nil
			}
			return gson.New(map[string]any{"success": true, "value": "v1"}), nil
		})
	})
	s := open(t, c)
	ctx := testContext(t)

	if _, err := s.WriteLocalStorage("k", `it's "quoted"`).Await(ctx); err != nil {
		t.Fatalf("write: %v", err)
	}
	if v, err := s.ReadSessionStorage("k").Await(ctx); err != nil || v != "v1" {
		t.Errorf("ReadSessionStorage() = %q, %v", v, err)
	}
	if v, err := s.ReadLocalStorage("missing").Await(ctx); err != nil || v != "" {
		t.Errorf("ReadLocalStorage(missing) = %q, %v", v, err)
	}
	if _, err := s.ClearStorage().Await(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(scripts[0], `localStorage.setItem("k", "it's \"quoted\"")`) {
		t.Errorf("write script = %s", scripts[0])
	}
	if !strings.Contains(scripts[1], `sessionStorage.getItem("k")`) {
		t.Errorf("read script = %s", scripts[1])
	}
}

func TestSession_WaitForTitle(t *testing.T) {
	var page *drivertest.Page
	drv, c := newClient(t, func(p *drivertest.Page) { page = p })
	s := open(t, c)

	go func() {
		time.Sleep(20 * time.Millisecond)
		page.SetTitle("Dashboard - Done")
	}()

	if _, err := s.Wait(browser.TitleContains("Done")).Await(testContext(t)); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if drv.Calls("execute") == 0 {
		t.Error("document ready guard did not run")
	}
}

func TestSession_WaitGuardBlocksWhileLoading(t *testing.T) {
	_, c := newClient(t, func(p *drivertest.Page) {
		p.SetTitle("Home")
		p.SetReadyState("loading")
	})
	s := open(t, c)

	_, err := s.WaitTimeout(browser.TitleIs("Home"), 50*time.Millisecond).Await(testContext(t))
	if !errors.Is(err, browser.ErrTimeout) {
		t.Fatalf("err = %v, want timeout while document is loading", err)
	}

	if _, err := s.Expect(browser.TitleIs("Home")).Await(testContext(t)); err != nil {
		t.Errorf("Expect() skips the guard, got %v", err)
	}
}

func TestSession_SendKeysAndURL(t *testing.T) {
	drv, c := newClient(t, nil)
	s := open(t, c)
	ctx := testContext(t)

	if _, err := s.Navigate("https://example.test/x").SendKeys("hello", "\n").Wait(browser.URLIs("https://example.test/x")).Await(ctx); err != nil {
		t.Fatalf("chain: %v", err)
	}
	if got := drv.Sessions()[0].Keys(); got != "hello\n" {
		t.Errorf("keys = %q", got)
	}
	if title, err := s.Title().Await(ctx); err != nil || title != "" {
		t.Errorf("Title() = %q, %v", title, err)
	}
}
