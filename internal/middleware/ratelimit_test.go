package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/submit", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r http.Handler, ip string) int {
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.RemoteAddr = ip + ":40000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterLocalBucket(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, nil, zerolog.Nop())
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	r := limitedRouter(rl)

	for i, want := range []int{200, 200, 429} {
		if got := hit(r, "10.0.0.1"); got != want {
			t.Fatalf("request %d: status = %d, want %d", i, got, want)
		}
	}
	if got := hit(r, "10.0.0.2"); got != http.StatusOK {
		t.Errorf("other client: status = %d", got)
	}

	now = now.Add(time.Minute)
	if got := hit(r, "10.0.0.1"); got != http.StatusOK {
		t.Errorf("after refill: status = %d", got)
	}
}

func TestRateLimiterSharedWindow(t *testing.T) {
	counter := newFakeCounter()
	rl := NewRateLimiter(2, time.Minute, counter, zerolog.Nop())
	now := time.Date(2026, 10, 19, 8, 0, 10, 0, time.UTC)
	rl.now = func() time.Time { return now }
	r := limitedRouter(rl)

	for i, want := range []int{200, 200, 429} {
		if got := hit(r, "10.0.0.1"); got != want {
			t.Fatalf("request %d: status = %d, want %d", i, got, want)
		}
	}
	if len(counter.expires) != 1 {
		t.Fatalf("expires set = %d, want 1", len(counter.expires))
	}
	for key, ttl := range counter.expires {
		if ttl != time.Minute {
			t.Errorf("%s ttl = %v", key, ttl)
		}
	}

	now = now.Add(time.Minute)
	if got := hit(r, "10.0.0.1"); got != http.StatusOK {
		t.Errorf("next window: status = %d", got)
	}
}

func TestRateLimiterFallsBackWhenRedisFails(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	rl := NewRateLimiter(1, time.Minute, counter, zerolog.Nop())
	r := limitedRouter(rl)

	if got := hit(r, "10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first: status = %d", got)
	}
	if got := hit(r, "10.0.0.1"); got != http.StatusTooManyRequests {
		t.Errorf("second: status = %d, want 429", got)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	r := limitedRouter(NewRateLimiter(0, time.Minute, nil, zerolog.Nop()))
	for i := 0; i < 5; i++ {
		if got := hit(r, "10.0.0.1"); got != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, got)
		}
	}
}
