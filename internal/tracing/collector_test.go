package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestCollector_RecordsSpans(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(0)
	tp, err := NewProvider(ctx, "", "test", c, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer tp.Shutdown(ctx)
	tr := tp.Tracer("test")

	_, span := tr.Start(ctx, "node.click")
	span.SetAttributes(attribute.String("browser.selector", ".btn"))
	span.End()

	_, span = tr.Start(ctx, "node.click")
	span.RecordError(errors.New("not interactable"))
	span.SetStatus(codes.Error, "not interactable")
	span.End()

	_, span = tr.Start(ctx, "session.navigate")
	span.End()

	spans := c.Spans()
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	if spans[0].Attrs["browser.selector"] != ".btn" {
		t.Errorf("attrs = %v", spans[0].Attrs)
	}

	sum := c.Summary()
	if len(sum) != 2 || sum[0].Name != "node.click" || sum[1].Name != "session.navigate" {
		t.Fatalf("summary = %+v", sum)
	}
	if sum[0].Count != 2 || sum[0].Errors != 1 {
		t.Errorf("node.click stats = %+v", sum[0])
	}
}

func TestCollector_RingBuffer(t *testing.T) {
	ctx := context.Background()
	c := NewCollector(2)
	tp, err := NewProvider(ctx, "svc", "test", c, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer tp.Shutdown(ctx)

	for _, name := range []string{"a", "b", "c"} {
		_, span := tp.Tracer("test").Start(ctx, name)
		span.End()
	}
	spans := c.Spans()
	if len(spans) != 2 || spans[0].Name != "b" || c.Dropped() != 1 {
		t.Errorf("spans = %+v, dropped = %d", spans, c.Dropped())
	}

	c.Reset()
	if len(c.Spans()) != 0 || c.Dropped() != 0 {
		t.Error("Reset() left records behind")
	}
}

func TestTruncatePreview(t *testing.T) {
	long := strings.Repeat("é", previewMaxLen)
	got := truncatePreview(long)
	if !strings.HasSuffix(got, "...") || len(got) > previewMaxLen+3 {
		t.Errorf("len = %d", len(got))
	}
	if !strings.HasPrefix(got, "é") || strings.ContainsRune(strings.TrimSuffix(got, "..."), '�') {
		t.Error("truncation split a rune")
	}
}
