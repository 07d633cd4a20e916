package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// normalizeLogLevel lowercases a level name. "warning" is accepted as warn and
// an empty name defaults to info.
func normalizeLogLevel(name string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch lower {
	case "":
		return "info", nil
	case "warning":
		return "warn", nil
	}
	if _, ok := logLevels[lower]; !ok {
		return lower, fmt.Errorf("log.level must be debug, info, warn or error, got %q", name)
	}
	return lower, nil
}

// SlogLevel returns the configured level, falling back to info.
func (l LogConfig) SlogLevel() slog.Level {
	name, err := normalizeLogLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return logLevels[name]
}
