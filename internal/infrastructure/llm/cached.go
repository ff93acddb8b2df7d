package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/turtacn/KeyQTO/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/internal/intelligence/recognizer"
)

const verdictKeyPrefix = "verdict:"

// CachedVerifier remembers verdicts so a label seen on many drawings is sent
// to the model once.  Cache failures fall through to the wrapped verifier.
type CachedVerifier struct {
	next   recognizer.Verifier
	cache  redis.Cache
	ttl     time.Duration
	logger  logging.Logger
	metrics CacheMetrics
}

// CacheMetrics counts cache hits and misses.
type CacheMetrics interface {
	RecordCacheAccess(cache string, hit bool)
}

// NewCachedVerifier wraps next.
func NewCachedVerifier(next recognizer.Verifier, cache redis.Cache, ttl time.Duration, logger logging.Logger) *CachedVerifier {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedVerifier{next: next, cache: cache, ttl: ttl, logger: logger}
}

// SetMetrics installs m.  Call before first use.
func (c *CachedVerifier) SetMetrics(m CacheMetrics) { c.metrics = m }

func (c *CachedVerifier) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheAccess("verdict", hit)
	}
}

// Verify implements recognizer.Verifier.
func (c *CachedVerifier) Verify(ctx context.Context, req recognizer.VerificationRequest) (*recognizer.Verdict, error) {
	key, err := verdictKey(req)
	if err != nil {
		return c.next.Verify(ctx, req)
	}

	var v recognizer.Verdict
	err = c.cache.Get(ctx, key, &v)
	if err == nil {
		c.record(true)
		return &v, nil
	}
	c.record(false)
	if err != redis.ErrCacheMiss {
		c.logger.Warn("verdict cache unavailable", logging.Err(err))
	}

	verdict, err := c.next.Verify(ctx, req)
	if err != nil || verdict == nil {
		return verdict, err
	}
	if setErr := c.cache.Set(ctx, key, verdict, c.ttl); setErr != nil {
		c.logger.Warn("failed to cache verdict", logging.Err(setErr))
	}
	return verdict, nil
}

// verdictKey hashes the request so labels of any length map to short keys.
func verdictKey(req recognizer.VerificationRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return verdictKeyPrefix + hex.EncodeToString(sum[:16]), nil
}

//Personal.AI order the ending
