//go:build !otel

package cmd

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/nextlevelbuilder/rodchain/internal/config"
)

// initOTelExporter is a no-op when built without the otel tag.
func initOTelExporter(_ context.Context, cfg *config.Config) (sdktrace.SpanExporter, error) {
	if cfg.Telemetry.Enabled {
		slog.Warn("telemetry.enabled is set but this binary was built without -tags otel")
	}
	return nil, nil
}
