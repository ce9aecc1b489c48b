package context

import (
	"context"

	"github.com/google/uuid"
)

const contextKeyTraceID = contextKey("traceID")

// NewTraceID returns a fresh time-ordered trace ID (UUIDv7), falling back to a
// random UUIDv4 if the clock-based generator fails.
func NewTraceID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// TraceIDFromContext extracts the trace ID from the context.
// Returns the trace ID and true if present, or empty string and false if not present.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(contextKeyTraceID).(string)

	return traceID, ok && traceID != ""
}

// WithTraceID creates a new context with the given trace ID value.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}
