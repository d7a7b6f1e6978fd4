package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found or has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the COUNT hint for SCAN during invalidation.
const scanBatch = 100

// Manager stores API responses in Redis.
type Manager struct {
	redis redis.UniversalClient
}

// NewManager creates a cache manager. It panics on a nil client.
func NewManager(redisClient redis.UniversalClient) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{redis: redisClient}
}

// Get retrieves an entry. Returns ErrCacheMiss if absent or expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	return &entry, nil
}

// Set stores an entry until its Expires deadline. Expired entries are skipped.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL moves the expiry of an existing entry, e.g. after a 304 that
// carried fresh caching headers.
func (m *Manager) UpdateTTL(ctx context.Context, key Key, expires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	entry.Expires = expires
	return m.Set(ctx, key, entry)
}

// InvalidatePath removes every entry stored for path, its query variants and
// any sub-path (detail records), across all scopes. It returns the number of
// keys removed.
func (m *Manager) InvalidatePath(ctx context.Context, path string) (int, error) {
	stem := pathKey(path)

	removed, err := m.redis.Del(ctx, stem).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}
	total := int(removed)

	for _, pattern := range []string{stem + ":*", stem + "/*"} {
		n, err := m.deleteMatching(ctx, pattern)
		total += n
		if err != nil {
			return total, err
		}
	}

	CacheInvalidations.Add(float64(total))
	return total, nil
}

func (m *Manager) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var keys []string
	iter := m.redis.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		return 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	removed, err := m.redis.Del(ctx, keys...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(removed), nil
}
