// internal/analysis/imagepreprocessor/cached.go
package imagepreprocessor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"usability-workers/internal/common/logger"
	"usability-workers/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "img:"

// CachedPreprocessor memoizes compressed screenshots in Redis, keyed by the
// source bytes and the target size. Cache failures never fail a run.
type CachedPreprocessor struct {
	next   Preprocessor
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedPreprocessor(next Preprocessor, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedPreprocessor {
	return &CachedPreprocessor{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"component": "image-cache"}),
	}
}

func (c *CachedPreprocessor) Process(ctx context.Context, image []byte, target Size) ([]byte, error) {
	key := CacheKey(image, target)

	cached, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.ImageCacheRequests.WithLabelValues("hit").Inc()
		c.logger.Debug("image cache hit", map[string]interface{}{"key": key})
		return cached, nil
	case errors.Is(err, redis.Nil):
		metrics.ImageCacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.ImageCacheRequests.WithLabelValues("error").Inc()
		c.logger.Warn("image cache read failed", map[string]interface{}{"error": err.Error()})
	}

	out, err := c.next.Process(ctx, image, target)
	if err != nil {
		return nil, err
	}

	if err := c.redis.Set(ctx, key, out, c.ttl).Err(); err != nil {
		c.logger.Warn("image cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return out, nil
}

// CacheKey is img:<sha256 of source>:<WxH>.
func CacheKey(image []byte, target Size) string {
	sum := sha256.Sum256(image)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]) + ":" + target.String()
}
