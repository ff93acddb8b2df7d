package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/KeyQTO/pkg/errors"
)

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Allow(key string) (bool, RateLimitInfo)
}

// RateLimitInfo describes the limiter state after a decision.
type RateLimitInfo struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// KeyFunc extracts the limiter key.  Defaults to the client IP.
	KeyFunc   func(c *gin.Context) string
	SkipPaths []string
	// IdleTimeout is how long an unused key is kept.
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns ten requests per second per client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		IdleTimeout:       5 * time.Minute,
	}
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key.
type KeyedLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	entries map[string]*keyedEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter returns a limiter allowing rps requests per second with
// the given burst for every key.  A positive idle starts a sweeper that
// forgets keys unused for that long; call Stop to end it.
func NewKeyedLimiter(rps float64, burst int, idle time.Duration) *KeyedLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &KeyedLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		entries: make(map[string]*keyedEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if idle > 0 {
		go l.sweepLoop()
	}
	return l
}

// Allow implements RateLimiter.
func (l *KeyedLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	info := RateLimitInfo{Limit: l.burst}
	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		info.RetryAfter = delay
		return false, info
	}
	info.Remaining = int(math.Max(0, math.Floor(e.limiter.TokensAt(now))))
	return true, info
}

func (l *KeyedLimiter) sweepLoop() {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *KeyedLimiter) sweep() {
	threshold := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if e.lastSeen.Before(threshold) {
			delete(l.entries, k)
		}
	}
}

// Stop ends the sweeper.
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// KeyCount returns the number of tracked keys.
func (l *KeyedLimiter) KeyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RateLimit rejects requests over the limit with 429 and a Retry-After
// header.
func RateLimit(limiter RateLimiter, config RateLimitConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		allowed, info := limiter.Allow(keyFunc(c))
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		if allowed {
			c.Next()
			return
		}

		secs := int(math.Ceil(info.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":    errors.ErrCodeTooManyRequests.String(),
			"message": "rate limit exceeded, retry later",
		})
	}
}
