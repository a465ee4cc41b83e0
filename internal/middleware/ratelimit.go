package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/listening-survey/internal/config"
	"github.com/stemsi/listening-survey/internal/response"
)

// WindowCounter is the subset of a Redis client the limiter needs.
type WindowCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimiter limits requests per client IP. With a WindowCounter it keeps a
// fixed-window count shared by every replica; without one, or while Redis is
// failing, it falls back to a per-process token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // Tokens per interval
	interval time.Duration // Refill interval
	counter  WindowCounter
	log      zerolog.Logger
	now      func() time.Time
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 30 requests per minute).
// counter may be nil. A rate of zero or less disables limiting.
func NewRateLimiter(rate int, interval time.Duration, counter WindowCounter, log zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		interval: interval,
		counter:  counter,
		log:      log.With().Str("component", "rate_limiter").Logger(),
		now:      time.Now,
	}

	// Cleanup stale visitors every minute.
	go func() {
		for range time.Tick(time.Minute) {
			rl.cleanup()
		}
	}()

	return rl
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		allowed, err := rl.allowShared(c.Request.Context(), ip)
		if err != nil {
			rl.log.Warn().Err(err).Str("ip", ip).Msg("Shared rate limit unavailable, using local bucket")
			allowed = rl.allowLocal(ip)
		}

		if !allowed {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allowShared(ctx context.Context, ip string) (bool, error) {
	if rl.counter == nil {
		return rl.allowLocal(ip), nil
	}

	window := rl.now().UnixNano() / int64(rl.interval)
	key := config.CacheKey.SubmitRateKey(ip, window)

	n, err := rl.counter.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := rl.counter.Expire(ctx, key, rl.interval).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(rl.rate), nil
}

func (rl *RateLimiter) allowLocal(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{tokens: rl.rate, lastSeen: now}
		rl.visitors[ip] = v
	}

	// Refill tokens based on elapsed time.
	elapsed := now.Sub(v.lastSeen)
	refill := int(elapsed/rl.interval) * rl.rate
	if refill > 0 {
		v.tokens += refill
		if v.tokens > rl.rate {
			v.tokens = rl.rate
		}
		v.lastSeen = now
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if rl.now().Sub(v.lastSeen) > 3*rl.interval {
			delete(rl.visitors, ip)
		}
	}
}
