// Package cache memoizes per-window scores in Redis, keyed by the model that
// produced them and a digest of the window features.
package cache

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/fiberseq/m6a-service/internal/model"
)

// DefaultTTL is how long scores are kept when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Cache wraps a Redis client for window score storage
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new Cache instance connected to the specified Redis address
// If addr is empty, defaults to localhost:6379
func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", addr)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Key returns the cache key of one window scored by the model with the given label.
func Key(label string, window []float32) string {
	buf := make([]byte, 0, 4*len(window))
	for _, v := range window {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return "m6a:" + strings.ReplaceAll(label, " ", "_") + ":" + strconv.FormatUint(xxhash.Sum64(buf), 16)
}

// Keys returns the keys of all count windows.
func Keys(label string, windows []float32, count int) []string {
	keys := make([]string, count)
	for i := range keys {
		keys[i] = Key(label, windows[i*model.WindowSize:(i+1)*model.WindowSize])
	}
	return keys
}

// GetScores looks up every key. found[i] reports whether scores[i] was cached.
func (c *Cache) GetScores(ctx context.Context, keys []string) (scores []float32, found []bool, err error) {
	scores = make([]float32, len(keys))
	found = make([]bool, len(keys))
	if len(keys) == 0 {
		return scores, found, nil
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to get %d scores", len(keys))
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			continue
		}
		scores[i], found[i] = float32(f), true
	}
	return scores, found, nil
}

// SetScores stores scores[i] under keys[i] with the cache TTL.
func (c *Cache) SetScores(ctx context.Context, keys []string, scores []float32) error {
	if len(keys) != len(scores) {
		return errors.Errorf("%d keys for %d scores", len(keys), len(scores))
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			pipe.Set(ctx, key, strconv.FormatFloat(float64(scores[i]), 'g', -1, 32), c.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to set %d scores", len(keys))
	}
	return nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
