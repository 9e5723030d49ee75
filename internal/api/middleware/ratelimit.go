package middleware

import (
	"encoding/json"
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultLimiterCapacity bounds how many clients keep a limiter at once.
// The least recently seen client is evicted first.
const DefaultLimiterCapacity = 10000

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst, capacity int) *RateLimiter {
	if capacity <= 0 {
		capacity = DefaultLimiterCapacity
	}
	cache, _ := lru.New[string, *rate.Limiter](capacity)
	return &RateLimiter{limiters: cache, rate: rate.Limit(rps), burst: burst}
}

func (rl *RateLimiter) Allow(key string) bool {
	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		if prev, found, _ := rl.limiters.PeekOrAdd(key, limiter); found {
			limiter = prev
		}
	}
	return limiter.Allow()
}

// RateLimit limits requests per client IP. It runs before authentication,
// so a caller cannot earn a fresh bucket by sending a different token.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	return limitBy(NewRateLimiter(rps, burst, DefaultLimiterCapacity), clientIP)
}

// RateLimitTenant limits authenticated requests per tenant. It must run after
// APIKeyAuth; requests without a tenant fall back to the client IP.
func RateLimitTenant(rps float64, burst int) func(http.Handler) http.Handler {
	return limitBy(NewRateLimiter(rps, burst, DefaultLimiterCapacity), func(r *http.Request) string {
		if t := TenantFromContext(r.Context()); t != nil {
			return "tenant:" + t.ID.String()
		}
		return clientIP(r)
	})
}

func limitBy(limiter *RateLimiter, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(key(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys on the address without its port. chi's RealIP has already
// rewritten RemoteAddr when a proxy header is set.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
