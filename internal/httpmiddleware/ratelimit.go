package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FunkyDevv/ITRACK-sub000/internal/auth"
)

// TokenBucket is an in-memory per-caller rate limiter.
type TokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates limiter with capacity tokens and rate per minute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

// GinMiddleware limits authenticated callers by token subject and everyone
// else by client IP.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(callerKey(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if claims, ok := auth.ClaimsFrom(c); ok && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "unknown"
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}
