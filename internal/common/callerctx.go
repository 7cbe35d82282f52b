package common

import (
	"context"

	"github.com/google/uuid"
)

// CallerContext identifies who invoked a capability and ties its log lines together.
type CallerContext struct {
	CallerID      string
	CorrelationID string
}

type contextKey int

const callerContextKey contextKey = iota

// WithCallerContext stores a CallerContext in the context.
func WithCallerContext(ctx context.Context, cc *CallerContext) context.Context {
	return context.WithValue(ctx, callerContextKey, cc)
}

// CallerContextFromContext retrieves the CallerContext from context, or nil if absent.
func CallerContextFromContext(ctx context.Context) *CallerContext {
	cc, _ := ctx.Value(callerContextKey).(*CallerContext)
	return cc
}

// ResolveCallerID returns the caller id from context, or "default" when none is present.
func ResolveCallerID(ctx context.Context) string {
	if cc := CallerContextFromContext(ctx); cc != nil && cc.CallerID != "" {
		return cc.CallerID
	}
	return "default"
}

// EnsureCorrelationID returns a context whose CallerContext carries a correlation id,
// generating one when absent, along with that id.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cc := CallerContextFromContext(ctx)
	if cc != nil && cc.CorrelationID != "" {
		return ctx, cc.CorrelationID
	}
	next := &CallerContext{CorrelationID: uuid.NewString()}
	if cc != nil {
		next.CallerID = cc.CallerID
	}
	return WithCallerContext(ctx, next), next.CorrelationID
}
