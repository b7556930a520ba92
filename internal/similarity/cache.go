package similarity

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores embedding vectors by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// MemoryCache is an in-process Cache holding at most limit vectors. When
// full, it is cleared before the next insert.
type MemoryCache struct {
	mu      sync.RWMutex
	limit   int
	vectors map[string][]float32
}

// NewMemoryCache creates a MemoryCache. A non-positive limit defaults to 4096.
func NewMemoryCache(limit int) *MemoryCache {
	if limit <= 0 {
		limit = 4096
	}
	return &MemoryCache{limit: limit, vectors: make(map[string][]float32)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.vectors[key]
	return vec, ok, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.vectors[key]; !exists && len(c.vectors) >= c.limit {
		c.vectors = make(map[string][]float32)
	}
	c.vectors[key] = vec
	return nil
}

const redisKeyPrefix = "smartstudy:embedding:"

// RedisCache stores vectors in Redis as little-endian float32 blobs.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient creates and verifies a Redis client connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

// NewRedisCache wraps rdb. A non-positive ttl keeps entries forever.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, encodeVector(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
