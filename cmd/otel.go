//go:build otel

package cmd

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/nextlevelbuilder/rodchain/internal/config"
	"github.com/nextlevelbuilder/rodchain/internal/tracing/otelexport"
)

// initOTelExporter returns an OTLP exporter when telemetry is enabled, or nil.
// Only compiled with -tags otel.
func initOTelExporter(ctx context.Context, cfg *config.Config) (sdktrace.SpanExporter, error) {
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint == "" {
		slog.Debug("OTel export available but not enabled (set telemetry.enabled + telemetry.endpoint)")
		return nil, nil
	}

	exp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Insecure: cfg.Telemetry.Insecure,
		Headers:  cfg.Telemetry.Headers,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("OpenTelemetry OTLP export enabled",
		"endpoint", cfg.Telemetry.Endpoint,
		"protocol", cfg.Telemetry.Protocol,
	)
	return exp, nil
}
