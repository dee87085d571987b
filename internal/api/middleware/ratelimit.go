package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/ednaflow/internal/api/response"
	"github.com/kiranshivaraju/ednaflow/internal/cache"
	"github.com/kiranshivaraju/ednaflow/internal/logging"
)

const (
	defaultRequestsPerMinute = 60
	rateLimitWindow          = 60 * time.Second
)

// RateLimit provides fixed-window per-client rate limiting via Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// Limit counts requests per client IP within scope. Separate scopes keep
// independent budgets.
func (rl *RateLimit) Limit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cache.RateLimitKey(scope, clientIP(r))
			count, err := rl.cache.IncrWithExpiry(r.Context(), key, rateLimitWindow)
			if err != nil {
				// On Redis error, allow the request (fail open)
				logging.FromContext(r.Context()).Warn("rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := rl.requestsPerMin - int(count)
			if remaining < 0 {
				remaining = 0
			}
			resetTime := time.Now().Add(rateLimitWindow).Unix()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

			if count > int64(rl.requestsPerMin) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				response.Error(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the direct peer address. Forwarded headers are ignored since
// they are client controlled.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
