package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/rodchain/internal/config"
	"github.com/nextlevelbuilder/rodchain/internal/scenario"
	"github.com/nextlevelbuilder/rodchain/internal/tracing"
)

func TestRedactConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.RemoteURL = "ws://127.0.0.1:9222/devtools/browser/abcdef"
	cfg.Telemetry.Headers = map[string]string{"authorization": "Bearer supersecret", "x": "short"}

	raw := redactConfig(cfg)

	browserSec := raw["browser"].(map[string]any)
	if got := browserSec["remote_url"]; got != "ws:/****cdef" {
		t.Errorf("remote_url = %v", got)
	}
	headers := raw["telemetry"].(map[string]any)["headers"].(map[string]any)
	if headers["authorization"] != "Bear****cret" || headers["x"] != "****" {
		t.Errorf("headers = %v", headers)
	}
	if cfg.Telemetry.Headers["authorization"] != "Bearer supersecret" {
		t.Error("redaction mutated the config")
	}
}

func TestResolveConfigPath(t *testing.T) {
	old := cfgFile
	t.Cleanup(func() { cfgFile = old })

	cfgFile = ""
	t.Setenv("RODCHAIN_CONFIG", "/etc/rodchain.json5")
	if got := resolveConfigPath(); got != "/etc/rodchain.json5" {
		t.Errorf("env path = %q", got)
	}
	cfgFile = "local.json5"
	if got := resolveConfigPath(); got != "local.json5" {
		t.Errorf("flag path = %q", got)
	}
	cfgFile = ""
	t.Setenv("RODCHAIN_CONFIG", "")
	if got := resolveConfigPath(); got != defaultConfigFile {
		t.Errorf("default path = %q", got)
	}
}

func TestRenderReport(t *testing.T) {
	rep := &scenario.Report{
		Scenario: "checkout",
		Duration: 1200 * time.Millisecond,
		Steps: []scenario.StepResult{
			{Index: 1, Label: "open https://shop.test", Kind: "navigate", Status: scenario.StatusPassed, Duration: 300 * time.Millisecond},
			{Index: 2, Label: "h1", Kind: "node", Status: scenario.StatusFailed, Output: "Cart", Err: errors.New("assertion failed: text \"Cart\"")},
			{Index: 3, Label: "button", Kind: "node", Status: scenario.StatusSkipped},
		},
	}
	stats := []tracing.OpStats{{Name: "node.click", Count: 2, Total: 20 * time.Millisecond, Max: 15 * time.Millisecond}}

	var buf bytes.Buffer
	renderReport(&buf, rep, stats)
	out := buf.String()

	for _, want := range []string{"Scenario checkout", "open https://shop.test", "= Cart", "assertion failed", "FAIL", "3 steps", "node.click", "10ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("a", maxOutputLen+10)
	if got := clip(long); len(got) != maxOutputLen+3 {
		t.Errorf("clip length = %d", len(got))
	}
	if got := clip("a\nb"); got != "a b" {
		t.Errorf("clip = %q", got)
	}
}
