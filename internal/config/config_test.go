package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Browser.Headless || cfg.Wait.TimeoutMs != 10000 || cfg.Log.Level != "info" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_JSON5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rodchain.json5")
	raw := `{
		// comments and trailing commas are fine
		browser: { headless: false, flags: "--lang=en", },
		wait: { timeout_ms: 2500 },
		log: { level: "WARNING" },
	}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Browser.Headless || cfg.Browser.Flags != "--lang=en" {
		t.Errorf("browser = %+v", cfg.Browser)
	}
	if cfg.Wait.TimeoutMs != 2500 || cfg.Wait.PollIntervalMs != 100 {
		t.Errorf("wait = %+v, want file timeout over default poll interval", cfg.Wait)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Log.Level)
	}
	if w := cfg.BrowserWait(); w.Timeout != 2500*time.Millisecond || !w.DocumentReadyGuard {
		t.Errorf("BrowserWait() = %+v", w)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RODCHAIN_BROWSER_REMOTE_URL", "ws://127.0.0.1:9222")
	t.Setenv("RODCHAIN_WAIT_TIMEOUT_MS", "750")
	t.Setenv("RODCHAIN_BROWSER_HEADLESS", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Browser.RemoteURL != "ws://127.0.0.1:9222" || cfg.Browser.Headless || cfg.Wait.TimeoutMs != 750 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Wait.TimeoutMs = 0
	cfg.Wait.PollIntervalMs = 0
	cfg.Log.Format = "xml"
	cfg.Telemetry.Enabled = true

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() accepted an invalid config")
	}
	for _, want := range []string{"timeout_ms", "poll_interval_ms", "log.format", "telemetry.endpoint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestSaveRoundTripKeepsHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "rodchain.json5")
	cfg := Default()
	cfg.Browser.Stealth = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Hash() != cfg.Hash() {
		t.Error("hash changed across save and load")
	}
	if Default().Hash() == cfg.Hash() {
		t.Error("hash ignores a changed field")
	}
}

func TestSlogLevel(t *testing.T) {
	if got := (LogConfig{Level: "debug"}).SlogLevel(); got != slog.LevelDebug {
		t.Errorf("debug -> %v", got)
	}
	if got := (LogConfig{Level: "loud"}).SlogLevel(); got != slog.LevelInfo {
		t.Errorf("unknown -> %v, want info", got)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rodchain.json5")
	if err := os.WriteFile(path, []byte(`{wait: {timeout_ms: 1000}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond
	got := make(chan *Config, 4)
	w.OnChange(func(c *Config) { got <- c })
	if err := w.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.json5"), []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{wait: {timeout_ms: 4000}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Wait.TimeoutMs != 4000 {
			t.Errorf("reloaded timeout = %d, want 4000", c.Wait.TimeoutMs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}
