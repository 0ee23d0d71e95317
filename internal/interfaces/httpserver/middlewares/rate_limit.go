package middlewares

import (
	"math"
	"net"
	"strconv"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"

	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// RateLimitMiddleware applies a token bucket per principal, or per client IP
// before authentication. Only the most recently seen maxKeys buckets are kept.
func RateLimitMiddleware(limitPerMinute float64, burst, maxKeys int) gin.HandlerFunc {
	if limitPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = int(math.Max(1, limitPerMinute/60))
	}
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	limiters, err := lru.New(maxKeys)
	if err != nil {
		panic(err)
	}
	every := rate.Limit(limitPerMinute / 60.0)
	retryAfter := strconv.Itoa(int(math.Ceil(60 / limitPerMinute)))

	return func(c *gin.Context) {
		key := rateKey(c)

		var limiter *rate.Limiter
		if cached, ok := limiters.Get(key); ok {
			limiter = cached.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(every, burst)
			if existing, found, _ := limiters.PeekOrAdd(key, limiter); found {
				limiter = existing.(*rate.Limiter)
			}
		}

		if !limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			platformerrors.WriteTyped(c, platformerrors.ErrorTypeRateLimited, "too many requests")
			return
		}
		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	if principal, ok := PrincipalFromContext(c); ok && principal.ID != "" {
		return "pid:" + principal.ID
	}
	if ip := clientIP(c.ClientIP()); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// clientIP normalizes IPv4-mapped IPv6 and similar forms.
func clientIP(raw string) string {
	if raw == "" {
		return ""
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
