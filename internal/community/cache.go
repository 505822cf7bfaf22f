package community

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"AEGIS-backend/internal/geofence"
)

// ZoneCache holds resolved zones of active communities for a short time.
type ZoneCache interface {
	Get(ctx context.Context, communityID string) (geofence.Zone, bool, error)
	Put(ctx context.Context, communityID string, z geofence.Zone) error
	Invalidate(ctx context.Context, communityID string) error
}

type memoryEntry struct {
	zone    geofence.Zone
	expires time.Time
}

type MemoryZoneCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryZoneCache(ttl time.Duration) *MemoryZoneCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryZoneCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *MemoryZoneCache) Get(_ context.Context, id string) (geofence.Zone, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return geofence.Zone{}, false, nil
	}
	if m.now().After(e.expires) {
		delete(m.entries, id)
		return geofence.Zone{}, false, nil
	}
	return e.zone, true, nil
}

func (m *MemoryZoneCache) Put(_ context.Context, id string, z geofence.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{zone: z, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryZoneCache) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

const zoneKeyPrefix = "aegis:zone:"

type RedisZoneCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisZoneCache(rc *redis.Client, ttl time.Duration) *RedisZoneCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisZoneCache{rc: rc, ttl: ttl}
}

func (r *RedisZoneCache) Get(ctx context.Context, id string) (geofence.Zone, bool, error) {
	b, err := r.rc.Get(ctx, zoneKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return geofence.Zone{}, false, nil
	}
	if err != nil {
		return geofence.Zone{}, false, err
	}
	var z geofence.Zone
	if err := json.Unmarshal(b, &z); err != nil {
		return geofence.Zone{}, false, err
	}
	return z, true, nil
}

func (r *RedisZoneCache) Put(ctx context.Context, id string, z geofence.Zone) error {
	b, err := json.Marshal(z)
	if err != nil {
		return err
	}
	return r.rc.Set(ctx, zoneKeyPrefix+id, b, r.ttl).Err()
}

func (r *RedisZoneCache) Invalidate(ctx context.Context, id string) error {
	return r.rc.Del(ctx, zoneKeyPrefix+id).Err()
}
