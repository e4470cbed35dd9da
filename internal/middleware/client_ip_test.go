package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/centinelapos/webapp/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP_RateLimitKey(t *testing.T) {
	resolver, err := pkg.NewIPResolver([]string{"10.0.0.1"})
	require.NoError(t, err)

	limiter := &testRequestRateLimiter{allowed: 10}
	handler := ClientIP(resolver)(RateLimit(limiter, nil, "login", 5)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	for _, tc := range []struct {
		remoteAddr string
		expected   string
	}{
		{"10.0.0.1:4000", "login::181.39.1.2"},
		// a rotating header from a direct client does not change the key
		{"190.1.2.3:4444", "login::190.1.2.3"},
	} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = tc.remoteAddr
		req.Header.Set("X-Real-Ip", "181.39.1.2")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, tc.expected, limiter.lastKey)
	}
}
