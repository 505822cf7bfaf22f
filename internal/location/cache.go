package location

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixCache keeps the most recent fix per user.
type FixCache interface {
	Get(ctx context.Context, userID string) (Fix, bool, error)
	Put(ctx context.Context, userID string, fix Fix) error
}

// MemoryCache is used when Redis is disabled and in tests.
type MemoryCache struct {
	mu    sync.RWMutex
	fixes map[string]Fix
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{fixes: make(map[string]Fix)}
}

func (m *MemoryCache) Get(_ context.Context, userID string) (Fix, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fix, ok := m.fixes[userID]
	return fix, ok, nil
}

func (m *MemoryCache) Put(_ context.Context, userID string, fix Fix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixes[userID] = fix
	return nil
}

const redisKeyPrefix = "aegis:location:"

// RedisCache shares fixes between API instances. Entries expire after ttl,
// which should match the locator max age.
type RedisCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisCache(rc *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultMaxAge
	}
	return &RedisCache{rc: rc, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, userID string) (Fix, bool, error) {
	b, err := r.rc.Get(ctx, redisKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Fix{}, false, nil
	}
	if err != nil {
		return Fix{}, false, err
	}
	var fix Fix
	if err := json.Unmarshal(b, &fix); err != nil {
		return Fix{}, false, err
	}
	return fix, true, nil
}

func (r *RedisCache) Put(ctx context.Context, userID string, fix Fix) error {
	b, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	return r.rc.Set(ctx, redisKeyPrefix+userID, b, r.ttl).Err()
}
