package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetIPContext(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected string
	}{
		{name: "Valid IPv4", ip: "192.168.1.1", expected: "192.168.1.1"},
		{name: "Valid IPv6", ip: "2001:db8::1", expected: "2001:db8::1"},
		{name: "Empty IP", ip: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := SetIPContext(context.Background(), tt.ip)
			assert.Equal(t, tt.expected, GetIPFromContext(ctx))
		})
	}
}

func TestUserAgentContext(t *testing.T) {
	ctx := SetUserAgentContext(context.Background(), "farmer-portal/1.0")
	assert.Equal(t, "farmer-portal/1.0", GetUserAgentFromContext(ctx))
	assert.Empty(t, GetUserAgentFromContext(context.Background()))
}

func TestRequestInfoContext(t *testing.T) {
	ctx := SetRequestInfoContext(context.Background(), "POST", "/oauth/grant")
	method, path := GetRequestInfoFromContext(ctx)
	assert.Equal(t, "POST", method)
	assert.Equal(t, "/oauth/grant", path)

	method, path = GetRequestInfoFromContext(context.Background())
	assert.Empty(t, method)
	assert.Empty(t, path)
}
