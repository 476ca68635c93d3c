package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/er-ddx-review-server/internal/domain"
)

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a per-client limiter allowing limit events per
// second with the given burst. A zero limit disables limiting.
func NewRateLimiter(limit float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(limit),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the client may proceed now.
func (r *RateLimiter) Allow(client string) bool {
	if r.limit <= 0 {
		return true
	}
	return r.limiter(client).Allow()
}

func (r *RateLimiter) limiter(client string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[client]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[client] = l
	}
	return l
}

// retryAfter is the whole number of seconds until one token refills.
func (r *RateLimiter) retryAfter() int {
	if r.limit <= 0 {
		return 0
	}
	d := time.Duration(float64(time.Second) / float64(r.limit))
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimit rejects requests over the client's budget with 429.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		serviceErr := domain.NewServiceError(domain.ErrRateLimit, "Too many requests", "")
		serviceErr.RequestID = c.GetString(CorrelationIDKey)

		c.Header("Retry-After", strconv.Itoa(limiter.retryAfter()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": serviceErr})
	}
}
