// Package tracing records the spans emitted by browser operations and sets
// up the OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	defaultBufferSize = 1000
	previewMaxLen     = 200
)

// SpanRecord is a finished span kept in memory.
type SpanRecord struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	Err      string
	Attrs    map[string]string
}

// OpStats aggregates the records of one span name.
type OpStats struct {
	Name   string
	Count  int
	Errors int
	Total  time.Duration
	Max    time.Duration
}

// Collector is a span processor that buffers finished spans for reporting.
// The buffer is a ring: once full, the oldest records are dropped.
type Collector struct {
	mu      sync.Mutex
	spans   []SpanRecord
	limit   int
	dropped int
}

var _ sdktrace.SpanProcessor = (*Collector)(nil)

// NewCollector creates a collector holding at most limit spans.
// A limit <= 0 uses the default buffer size.
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = defaultBufferSize
	}
	return &Collector{limit: limit}
}

func (c *Collector) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (c *Collector) OnEnd(s sdktrace.ReadOnlySpan) {
	rec := SpanRecord{
		Name:     s.Name(),
		Start:    s.StartTime(),
		Duration: s.EndTime().Sub(s.StartTime()),
	}
	if st := s.Status(); st.Code == codes.Error {
		rec.Err = truncatePreview(st.Description)
	}
	if attrs := s.Attributes(); len(attrs) > 0 {
		rec.Attrs = make(map[string]string, len(attrs))
		for _, kv := range attrs {
			rec.Attrs[string(kv.Key)] = truncatePreview(kv.Value.Emit())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.spans) >= c.limit {
		c.spans = c.spans[1:]
		c.dropped++
	}
	c.spans = append(c.spans, rec)
}

func (c *Collector) Shutdown(context.Context) error   { return nil }
func (c *Collector) ForceFlush(context.Context) error { return nil }

// Spans returns a copy of the buffered records in end order.
func (c *Collector) Spans() []SpanRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.spans)
}

// Dropped reports how many records the ring buffer discarded.
func (c *Collector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Reset clears the buffer.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.spans = nil
	c.dropped = 0
	c.mu.Unlock()
}

// Summary aggregates the buffered records by span name, sorted by name.
func (c *Collector) Summary() []OpStats {
	byName := map[string]*OpStats{}
	for _, s := range c.Spans() {
		st, ok := byName[s.Name]
		if !ok {
			st = &OpStats{Name: s.Name}
			byName[s.Name] = st
		}
		st.Count++
		st.Total += s.Duration
		st.Max = max(st.Max, s.Duration)
		if s.Err != "" {
			st.Errors++
		}
	}

	out := make([]OpStats, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b OpStats) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// truncatePreview sanitizes and truncates a string to previewMaxLen bytes.
func truncatePreview(s string) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= previewMaxLen {
		return s
	}
	maxLen := previewMaxLen
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
