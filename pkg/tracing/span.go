// Package tracing provides lightweight request spans logged as structured
// JSON via slog. A span times one pipeline flow and records its outcome.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span represents a timed pipeline flow.
type Span struct {
	Name      string
	StartTime time.Time
	mu        sync.Mutex
	attrs     map[string]any
}

// StartSpan creates a new span and stores it in the returned context. A span
// already present in ctx becomes the parent.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		StartTime: time.Now(),
		attrs:     make(map[string]any),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.attrs["parent"] = parent.Name
	}
	return context.WithValue(ctx, spanKey, span), span
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// End logs the completed span with its duration and attributes.
func (s *Span) End(ctx context.Context) {
	duration := time.Since(s.StartTime)
	attrs := []any{
		"span", s.Name,
		"duration_ms", duration.Milliseconds(),
	}
	s.mu.Lock()
	for k, v := range s.attrs {
		attrs = append(attrs, k, v)
	}
	s.mu.Unlock()
	slog.InfoContext(ctx, "span", attrs...)
}
