package goIdentity

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceIDContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Exchanges copy it into
// RequestContext.SourceIP when the request leaves that field empty.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceID attaches a client device identifier to ctx.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// withContextDefaults fills empty request context fields from ctx.
func withContextDefaults(ctx context.Context, req AuthRequest) AuthRequest {
	if req.Context.SourceIP == "" {
		req.Context.SourceIP = stringFromContext(ctx, clientIPContextKey{})
	}
	if req.Context.UserAgent == "" {
		req.Context.UserAgent = stringFromContext(ctx, userAgentContextKey{})
	}
	if req.Context.DeviceID == "" {
		req.Context.DeviceID = stringFromContext(ctx, deviceIDContextKey{})
	}
	return req
}
