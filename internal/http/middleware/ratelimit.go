package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter couples a token bucket with the last time it was used so
// idle buckets can be collected.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns per-client-IP token-bucket rate limiting middleware.
// rps is the sustained refill rate, burst the bucket capacity. Buckets idle
// for longer than ttl are garbage-collected opportunistically on lookups.
//
// Limited requests receive 429 with a JSON error envelope and a Retry-After
// header.
func RateLimiter(rps float64, burst int, ttl time.Duration) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientLimiter)
		lastGC  = time.Now()
	)

	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now

		// Opportunistic GC so the map does not grow unbounded.
		if now.Sub(lastGC) > ttl {
			for k, v := range clients {
				if now.Sub(v.lastSeen) > ttl {
					delete(clients, k)
				}
			}
			lastGC = now
		}
		allowed := cl.limiter.Allow()
		mu.Unlock()

		if !allowed {
			rid, _ := c.Get(requestIDKey)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id": asString(rid),
				"code":       "too_many_requests",
				"message":    "too many requests",
			})
			return
		}
		c.Next()
	}
}
