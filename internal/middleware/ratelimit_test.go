package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_BurstThenRejected(t *testing.T) {
	// rpm=1 means burst 1: the first request consumes the token and the
	// second, arriving immediately, must get a 429.
	rl := NewRateLimiter(1)
	h := rl.Handler(okHandler())

	req1 := httptest.NewRequest(http.MethodPost, "/authorize", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req1)
	assert.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/authorize", nil)
	req2.RemoteAddr = "10.0.0.1:1234"
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "60", rec2.Header().Get("Retry-After"))
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	rl := NewRateLimiter(1)
	h := rl.Handler(okHandler())

	req1 := httptest.NewRequest(http.MethodPost, "/authorize", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(httptest.NewRecorder(), req1)

	// A different client still has its own full bucket.
	req2 := httptest.NewRequest(http.MethodPost, "/authorize", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestRateLimiter_DefaultOnNonPositiveRPM(t *testing.T) {
	rl := NewRateLimiter(0)
	h := rl.Handler(okHandler())

	// The fallback default must allow at least a handful of requests.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "10.0.0.3:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr host:port", "192.168.1.5:4321", nil, "192.168.1.5"},
		{"x-forwarded-for wins", "192.168.1.5:4321",
			map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"x-real-ip fallback", "192.168.1.5:4321",
			map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
		{"empty remote addr", "", nil, "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}
