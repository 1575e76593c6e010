package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/cache"
)

// RateLimit provides fixed-window rate limiting via Redis, counted per
// authenticated user. Pipeline runs are expensive (minutes of model time),
// so the chat route gets a much tighter window than follow-ups.
type RateLimit struct {
	cache cache.Cache
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache) *RateLimit {
	return &RateLimit{cache: c}
}

// Limit returns middleware allowing max requests per window for the named
// scope. Requires the auth middleware to have run first. Fails open on
// Redis errors so a cache outage does not take the API down with it.
func (rl *RateLimit) Limit(scope string, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := cache.RateLimitKey(scope, user.ID)
			count, err := rl.cache.IncrWithExpiry(r.Context(), key, window)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			remaining := max - int(count)
			if remaining < 0 {
				remaining = 0
			}
			resetTime := time.Now().Add(window).Unix()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

			if count > int64(max) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				response.Error(w, http.StatusTooManyRequests,
					"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
