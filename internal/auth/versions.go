package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const versionPrefix = "session:ver:"

// VersionStore tracks the current token version per user. Bumping the
// version invalidates every token issued before.
type VersionStore interface {
	Current(ctx context.Context, userID string) (int64, error)
	Bump(ctx context.Context, userID string) (int64, error)
}

// RedisVersions keeps token versions in Redis so revocation is shared by all
// proxy instances.
type RedisVersions struct {
	cache *redis.Client
}

// NewRedisVersions constructs a Redis-backed version store.
func NewRedisVersions(cache *redis.Client) *RedisVersions {
	return &RedisVersions{cache: cache}
}

// Current returns the stored version or zero if none was recorded.
func (r *RedisVersions) Current(ctx context.Context, userID string) (int64, error) {
	v, err := r.cache.Get(ctx, versionPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read token version: %w", err)
	}
	return v, nil
}

// Bump increments the version and returns the new value.
func (r *RedisVersions) Bump(ctx context.Context, userID string) (int64, error) {
	v, err := r.cache.Incr(ctx, versionPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("bump token version: %w", err)
	}
	return v, nil
}

// MemoryVersions is the single-instance fallback used when Redis is absent.
type MemoryVersions struct {
	mu       sync.Mutex
	versions map[string]int64
}

// NewMemoryVersions constructs an in-memory version store.
func NewMemoryVersions() *MemoryVersions {
	return &MemoryVersions{versions: make(map[string]int64)}
}

func (m *MemoryVersions) Current(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[userID], nil
}

func (m *MemoryVersions) Bump(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[userID]++
	return m.versions[userID], nil
}
