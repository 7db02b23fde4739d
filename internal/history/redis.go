package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"passos-predictor/internal/common/errors"
	"passos-predictor/internal/models"
)

const cacheKeyPrefix = "pv:pred:"

// RedisCache stores predictions as JSON under a digest of the record.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// CacheKey derives the key from the record's canonical JSON encoding.
func CacheKey(rec models.StudentRecord) string {
	data, _ := json.Marshal(rec)
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, rec models.StudentRecord) (*models.Prediction, bool, error) {
	val, err := c.client.Get(ctx, CacheKey(rec)).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheFailedError("get", err)
	}

	var p models.Prediction
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, false, errors.NewCacheFailedError("decode", err)
	}
	return &p, true, nil
}

func (c *RedisCache) Set(ctx context.Context, rec models.StudentRecord, p *models.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.NewCacheFailedError("encode", err)
	}
	if err := c.client.Set(ctx, CacheKey(rec), data, c.ttl).Err(); err != nil {
		return errors.NewCacheFailedError("set", err)
	}
	return nil
}
