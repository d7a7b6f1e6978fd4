package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// TokenStore persists the access and refresh tokens. Missing tokens are
// returned as empty strings, not errors. Every TokenStore is also a
// client.TokenSource.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	RefreshToken(ctx context.Context) (string, error)
	SetRefreshToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	refresh string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh, nil
}

func (s *MemoryStore) SetRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = token
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.refresh = "", ""
	return nil
}

// fileTokens is the on-disk layout of FileStore.
type fileTokens struct {
	Token        string `yaml:"token,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
}

// FileStore keeps tokens in a YAML file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (fileTokens, error) {
	var t fileTokens
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read token file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse token file %s: %w", s.path, err)
	}
	return t, nil
}

func (s *FileStore) save(t fileTokens) error {
	if t == (fileTokens{}) {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
		return nil
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func (s *FileStore) update(fn func(*fileTokens)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	if err != nil {
		return err
	}
	fn(&t)
	return s.save(t)
}

func (s *FileStore) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	return t.Token, err
}

func (s *FileStore) SetToken(_ context.Context, token string) error {
	return s.update(func(t *fileTokens) { t.Token = token })
}

func (s *FileStore) RefreshToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	return t.RefreshToken, err
}

func (s *FileStore) SetRefreshToken(_ context.Context, token string) error {
	return s.update(func(t *fileTokens) { t.RefreshToken = token })
}

func (s *FileStore) Clear(context.Context) error {
	return s.update(func(t *fileTokens) { *t = fileTokens{} })
}

// Redis key suffixes used by RedisStore.
const (
	redisKeyToken   = "token"
	redisKeyRefresh = "refresh_token"
)

// RedisStore keeps tokens in Redis under a per-profile prefix, so several
// CLI processes can share one session.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store using keys "<prefix>:token" and
// "<prefix>:refresh_token". A zero ttl keeps tokens until cleared.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "branchdesk:auth"
	}
	return &RedisStore{redis: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(suffix string) string {
	return s.prefix + ":" + suffix
}

func (s *RedisStore) get(ctx context.Context, suffix string) (string, error) {
	v, err := s.redis.Get(ctx, s.key(suffix)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s from redis: %w", suffix, err)
	}
	return v, nil
}

func (s *RedisStore) set(ctx context.Context, suffix, value string) error {
	if value == "" {
		if err := s.redis.Del(ctx, s.key(suffix)).Err(); err != nil {
			return fmt.Errorf("delete %s from redis: %w", suffix, err)
		}
		return nil
	}
	if err := s.redis.Set(ctx, s.key(suffix), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("store %s in redis: %w", suffix, err)
	}
	return nil
}

func (s *RedisStore) Token(ctx context.Context) (string, error) {
	return s.get(ctx, redisKeyToken)
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	return s.set(ctx, redisKeyToken, token)
}

func (s *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, redisKeyRefresh)
}

func (s *RedisStore) SetRefreshToken(ctx context.Context, token string) error {
	return s.set(ctx, redisKeyRefresh, token)
}

// SetPair stores both tokens atomically.
func (s *RedisStore) SetPair(ctx context.Context, token, refreshToken string) error {
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(redisKeyToken), token, s.ttl)
	pipe.Set(ctx, s.key(redisKeyRefresh), refreshToken, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store tokens in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(redisKeyToken), s.key(redisKeyRefresh)).Err(); err != nil {
		return fmt.Errorf("clear tokens in redis: %w", err)
	}
	return nil
}

// pairSetter is implemented by stores that write both tokens at once.
type pairSetter interface {
	SetPair(ctx context.Context, token, refreshToken string) error
}

// storePair writes both tokens, atomically when the store supports it.
func storePair(ctx context.Context, store TokenStore, token, refreshToken string) error {
	if ps, ok := store.(pairSetter); ok {
		return ps.SetPair(ctx, token, refreshToken)
	}
	if err := store.SetToken(ctx, token); err != nil {
		return err
	}
	return store.SetRefreshToken(ctx, refreshToken)
}
