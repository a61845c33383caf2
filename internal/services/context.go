package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	remoteIPKey  contextKey = "remote_ip"
	userAgentKey contextKey = "user_agent"
)

// WithRequestID annotates context with the API request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithClientInfo annotates context with the requester's network identity,
// consumed by download telemetry.
func WithClientInfo(ctx context.Context, remoteIP, userAgent string) context.Context {
	if remoteIP != "" {
		ctx = context.WithValue(ctx, remoteIPKey, remoteIP)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, userAgentKey, userAgent)
	}
	return ctx
}

// ClientInfoFromContext returns the requester IP and user agent if present.
func ClientInfoFromContext(ctx context.Context) (remoteIP, userAgent string) {
	if str, ok := ctx.Value(remoteIPKey).(string); ok {
		remoteIP = str
	}
	if str, ok := ctx.Value(userAgentKey).(string); ok {
		userAgent = str
	}
	return remoteIP, userAgent
}
