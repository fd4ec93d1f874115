package api

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

type rateLimiter interface {
	Allow() bool
}

// tokenBucket wraps rate.Limiter and remembers the refill rate so callers can
// be told when to retry.
type tokenBucket struct {
	limiter *rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) *tokenBucket {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (b *tokenBucket) Allow() bool {
	if b == nil || b.limiter == nil {
		return true
	}
	return b.limiter.Allow()
}

// retryAfter is the whole number of seconds until one token is available.
func (b *tokenBucket) retryAfter() int {
	perSecond := float64(b.limiter.Limit())
	if perSecond <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/perSecond)))
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		if b, ok := limiter.(*tokenBucket); ok {
			w.Header().Set("Retry-After", strconv.Itoa(b.retryAfter()))
		}
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}
