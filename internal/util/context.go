package util

import "context"

type contextKey string

const (
	ipKey        contextKey = "client_ip"
	userAgentKey contextKey = "user_agent"
)

// SetIPContext returns a copy of ctx carrying the caller's IP.
func SetIPContext(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipKey, ip)
}

// GetIPFromContext extracts the client IP address from the context
func GetIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey).(string); ok {
		return ip
	}
	return ""
}

// SetUserAgentContext returns a copy of ctx carrying the caller's User-Agent.
func SetUserAgentContext(ctx context.Context, ua string) context.Context {
	if ua == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey, ua)
}

// GetUserAgentFromContext extracts the User-Agent from the context
func GetUserAgentFromContext(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey).(string); ok {
		return ua
	}
	return ""
}

type requestInfo struct {
	method string
	path   string
}

const requestInfoKey contextKey = "request_info"

// SetRequestInfoContext returns a copy of ctx carrying the HTTP method and path.
func SetRequestInfoContext(ctx context.Context, method, path string) context.Context {
	return context.WithValue(ctx, requestInfoKey, requestInfo{method: method, path: path})
}

// GetRequestInfoFromContext returns the HTTP method and path stored in ctx.
func GetRequestInfoFromContext(ctx context.Context) (method, path string) {
	if info, ok := ctx.Value(requestInfoKey).(requestInfo); ok {
		return info.method, info.path
	}
	return "", ""
}
