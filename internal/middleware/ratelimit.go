package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is the token bucket for a single client IP.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client-IP requests-per-minute cap. It is
// mounted only on the authentication surface (login, callback, refresh,
// authorize); credential and token endpoints are the ones worth brute
// forcing, profile reads are not.
type RateLimiter struct {
	rpm     int
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a limiter allowing rpm requests per minute per
// client, with a burst of the same size. Non-positive rpm falls back to
// a conservative default.
func NewRateLimiter(rpm int) *RateLimiter {
	if rpm <= 0 {
		rpm = 30
	}
	return &RateLimiter{
		rpm:     rpm,
		clients: map[string]*clientLimiter{},
	}
}

// Handler wraps next with the rate limit check. Over-limit requests get
// a 429 with a Retry-After header and never reach the handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := rl.limiterFor(clientIP(r))

		if !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": "too many requests",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if client, ok := rl.clients[ip]; ok {
		client.lastSeen = time.Now()
		return client.limiter
	}

	created := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.rpm)), rl.rpm),
		lastSeen: time.Now(),
	}
	rl.clients[ip] = created
	rl.gcLocked()

	return created.limiter
}

// gcLocked evicts stale client entries so the map cannot grow without
// bound. Must be called with rl.mu held.
func (rl *RateLimiter) gcLocked() {
	if len(rl.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// clientIP resolves the caller's address, preferring proxy headers so
// limits apply to the real client rather than the load balancer.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
