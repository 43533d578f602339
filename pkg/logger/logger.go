// Package logger configures the process-wide slog logger and propagates
// request IDs through contexts. Handlers must never log raw submission
// content; use Redact helpers for anything user-supplied.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type contextKey struct{}

func Setup(level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("request_id", requestID)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// RedactEmail reduces an email address to its domain for logging. Addresses
// without an @ are reduced to their length.
func RedactEmail(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return "@" + email[i+1:]
	}
	return "len:" + strconv.Itoa(len(email))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
