// Package reqcontext propagates per-request state (product, language,
// session, request id) through context.Context values rather than any
// package-global mutable store, so concurrent requests never share state.
package reqcontext

import "context"

type key int

const requestContextKey key = 0

// RequestContext carries the identifying fields of one in-flight MCP call.
type RequestContext struct {
	Product    string
	Language   string
	SessionID  string
	RequestID  string
	ClientInfo string
	ClientIP   string
}

// WithRequestContext returns a copy of ctx carrying rc.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// FromContext extracts the RequestContext previously attached to ctx, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(*RequestContext)
	return rc, ok
}
