package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

// RateLimiter keeps a token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	perMinute int
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimitError struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Action string `json:"action"`
}

// NewRateLimiter allows perMinute requests per IP with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		perMinute: perMinute,
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     burst,
		idleTTL:   3 * time.Minute,
		now:       time.Now,
	}
}

// Allow consumes a token for ip and reports whether one was available.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	now := rl.now()
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Cleanup drops visitors idle for longer than the idle TTL and returns how
// many were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var removed int
	cutoff := rl.now().Add(-rl.idleTTL)
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every minute until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Handler rejects requests over the limit with 429 and a Retry-After hint.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !rl.Allow(ip) {
			slog.Warn("rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"ip", ip,
			)
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, rateLimitError{
				Error:  "Too many requests",
				Code:   "RATE001",
				Action: "Please wait a moment before trying again",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter is the number of seconds until one token refills.
func (rl *RateLimiter) retryAfter() int {
	if rl.perMinute <= 0 {
		return 60
	}
	return (60 + rl.perMinute - 1) / rl.perMinute
}
