package otelexport

import (
	"context"
	"testing"
)

func TestNew_EmptyEndpoint(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}

func TestNew_UnknownProtocol(t *testing.T) {
	if _, err := New(context.Background(), Config{Endpoint: "localhost:4317", Protocol: "udp"}); err == nil {
		t.Error("expected error for unknown protocol")
	}
}

func TestNew_Protocols(t *testing.T) {
	for _, protocol := range []string{"", "grpc", "http"} {
		exp, err := New(context.Background(), Config{
			Endpoint: "localhost:4317",
			Protocol: protocol,
			Insecure: true,
			Headers:  map[string]string{"authorization": "Bearer x"},
		})
		if err != nil {
			t.Errorf("protocol %q: %v", protocol, err)
			continue
		}
		if err := exp.Shutdown(context.Background()); err != nil {
			t.Errorf("protocol %q shutdown: %v", protocol, err)
		}
	}
}
