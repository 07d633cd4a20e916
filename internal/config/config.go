// Package config loads rodchain settings from a JSON5 file with
// environment overrides.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/rodchain/pkg/browser"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RODCHAIN_"

// Config is the root configuration.
type Config struct {
	Browser   BrowserConfig   `json:"browser"`
	Wait      WaitConfig      `json:"wait"`
	Log       LogConfig       `json:"log"`
	Telemetry TelemetryConfig `json:"telemetry"`

	mu sync.RWMutex
}

// BrowserConfig controls how Chrome is started.
type BrowserConfig struct {
	RemoteURL string `json:"remote_url,omitempty"` // connect instead of launching
	Headless  bool   `json:"headless"`
	Stealth   bool   `json:"stealth"`
	Bin       string `json:"bin,omitempty"`
	Flags     string `json:"flags,omitempty"` // shell-quoted, e.g. "--window-size=1280,800"
}

// WaitConfig holds the default wait bounds.
type WaitConfig struct {
	TimeoutMs          int  `json:"timeout_ms"`
	PollIntervalMs     int  `json:"poll_interval_ms"`
	DocumentReadyGuard bool `json:"document_ready_guard"`
	SessionReadyGuard  bool `json:"session_ready_guard"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Protocol    string            `json:"protocol,omitempty"` // grpc, http
	Insecure    bool              `json:"insecure,omitempty"`
	ServiceName string            `json:"service_name,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	w := browser.DefaultWaitConfig()
	return &Config{
		Browser: BrowserConfig{Headless: true},
		Wait: WaitConfig{
			TimeoutMs:          int(w.Timeout / time.Millisecond),
			PollIntervalMs:     int(w.PollInterval / time.Millisecond),
			DocumentReadyGuard: w.DocumentReadyGuard,
			SessionReadyGuard:  w.SessionReadyGuard,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "rodchain",
		},
	}
}

// Load reads path on top of the defaults and applies env overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON, which is valid JSON5.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	cfg.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// ApplyEnvOverrides overlays RODCHAIN_* variables.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	envStr := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	envBool := func(key string, dst *bool) {
		if v, err := strconv.ParseBool(os.Getenv(EnvPrefix + key)); err == nil {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v, err := strconv.Atoi(os.Getenv(EnvPrefix + key)); err == nil {
			*dst = v
		}
	}

	envStr("BROWSER_REMOTE_URL", &c.Browser.RemoteURL)
	envBool("BROWSER_HEADLESS", &c.Browser.Headless)
	envBool("BROWSER_STEALTH", &c.Browser.Stealth)
	envStr("BROWSER_BIN", &c.Browser.Bin)
	envStr("BROWSER_FLAGS", &c.Browser.Flags)
	envInt("WAIT_TIMEOUT_MS", &c.Wait.TimeoutMs)
	envInt("WAIT_POLL_INTERVAL_MS", &c.Wait.PollIntervalMs)
	envStr("LOG_LEVEL", &c.Log.Level)
	envStr("LOG_FORMAT", &c.Log.Format)
	envBool("TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envStr("TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
}

// Validate normalizes enum fields and rejects out-of-range values.
func (c *Config) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.Wait.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("wait.timeout_ms must be > 0, got %d", c.Wait.TimeoutMs))
	}
	if c.Wait.PollIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("wait.poll_interval_ms must be > 0, got %d", c.Wait.PollIntervalMs))
	}

	level, err := normalizeLogLevel(c.Log.Level)
	if err != nil {
		errs = append(errs, err)
	}
	c.Log.Level = level

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	c.Telemetry.Protocol = strings.ToLower(strings.TrimSpace(c.Telemetry.Protocol))
	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol))
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

// BrowserWait converts the wait section into the client's wait config.
func (c *Config) BrowserWait() browser.WaitConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return browser.WaitConfig{
		Timeout:            time.Duration(c.Wait.TimeoutMs) * time.Millisecond,
		PollInterval:       time.Duration(c.Wait.PollIntervalMs) * time.Millisecond,
		DocumentReadyGuard: c.Wait.DocumentReadyGuard,
		SessionReadyGuard:  c.Wait.SessionReadyGuard,
	}
}

// Hash returns a short content hash, used to skip no-op reloads.
func (c *Config) Hash() string {
	c.mu.RLock()
	data, _ := json.Marshal(c)
	c.mu.RUnlock()
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// ReplaceFrom copies every section of src into c.
func (c *Config) ReplaceFrom(src *Config) {
	src.mu.RLock()
	b, w, l, t := src.Browser, src.Wait, src.Log, src.Telemetry
	src.mu.RUnlock()

	c.mu.Lock()
	c.Browser, c.Wait, c.Log, c.Telemetry = b, w, l, t
	c.mu.Unlock()
}
