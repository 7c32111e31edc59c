package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	pkghttp "github.com/BradenHooton/subsignature/pkg/http"
)

func limitedHandler(config RateLimitConfig) http.Handler {
	return RateLimitByIP(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitByIP_LimitsPerClient(t *testing.T) {
	h := limitedHandler(RateLimitConfig{RequestsPerMinute: 2})

	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1000", ""))
	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1001", ""))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.1:1002", ""))
	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.2:1000", ""), "other clients are unaffected")
}

func TestRateLimitByIP_IgnoresSpoofedForwardedFor(t *testing.T) {
	h := limitedHandler(RateLimitConfig{RequestsPerMinute: 1})

	assert.Equal(t, http.StatusOK, hit(h, "192.0.2.9:1000", "10.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.9:1000", "10.2.2.2"),
		"untrusted peers cannot rotate their key through X-Forwarded-For")
}

func TestRateLimitByIP_TrustedProxy(t *testing.T) {
	h := limitedHandler(DefaultLoginRateLimit(&pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}))

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.5:443", "203.0.113.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.5:443", "203.0.113.1"))
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.5:443", "203.0.113.2"))
}
