package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLimiter_BurstThenReject(t *testing.T) {
	l := NewKeyedLimiter(1, 2, 0)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ok, info := l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 2, info.Limit)
	assert.Equal(t, 1, info.Remaining)

	ok, _ = l.Allow("a")
	assert.True(t, ok)

	ok, info = l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, info.RetryAfter)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys are limited independently")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok, "a token is refilled after one second")
}

func TestKeyedLimiter_Sweep(t *testing.T) {
	l := NewKeyedLimiter(1, 1, 0)
	l.idle = time.Minute
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(30 * time.Second)
	l.Allow("b")
	require.Equal(t, 2, l.KeyCount())

	now = now.Add(45 * time.Second)
	l.sweep()
	assert.Equal(t, 1, l.KeyCount())
	l.Stop()
	l.Stop()
}

func TestRateLimit_Middleware(t *testing.T) {
	l := NewKeyedLimiter(0.001, 1, 0)
	r := newEngine(RateLimit(l, DefaultRateLimitConfig()))

	w := serve(r, http.MethodGet, "/api/v1/takeoffs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = serve(r, http.MethodGet, "/api/v1/takeoffs", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":"COMMON_007","message":"rate limit exceeded, retry later"}`, w.Body.String())

	w = serve(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code, "probes bypass the limiter")
}

//Personal.AI order the ending
