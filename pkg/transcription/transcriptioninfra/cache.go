package transcriptioninfra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abraxas-365/auralis/pkg/errx"
	"github.com/Abraxas-365/auralis/pkg/kernel"
	"github.com/Abraxas-365/auralis/pkg/transcription"
)

// RedisCache caches completed transcripts so repeated reads skip the
// database. Only terminal transcripts are worth caching; callers are
// expected to Set after completion and Invalidate on delete.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates the cache with the given entry TTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) transcription.Cache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func cacheKey(id kernel.TranscriptID) string {
	return "auralis:transcript:" + id.String()
}

// Get returns the cached transcript or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, id kernel.TranscriptID) (*transcription.Transcript, error) {
	data, err := c.rdb.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errx.Wrap(err, "failed to read transcript cache", errx.TypeInternal)
	}

	var t transcription.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		// A corrupt entry behaves like a miss.
		_ = c.rdb.Del(ctx, cacheKey(id)).Err()
		return nil, nil
	}
	return &t, nil
}

// Set stores a transcript for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, t *transcription.Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return errx.Wrap(err, "failed to marshal transcript for cache", errx.TypeInternal)
	}
	if err := c.rdb.Set(ctx, cacheKey(t.ID), data, c.ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to write transcript cache", errx.TypeInternal)
	}
	return nil
}

// Invalidate drops a cached transcript.
func (c *RedisCache) Invalidate(ctx context.Context, id kernel.TranscriptID) error {
	if err := c.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		return errx.Wrap(err, "failed to invalidate transcript cache", errx.TypeInternal)
	}
	return nil
}
