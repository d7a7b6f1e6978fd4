package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

// exerciseStore runs the TokenStore contract against store.
func exerciseStore(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()

	tok, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok, "missing token is empty, not an error")

	require.NoError(t, store.SetToken(ctx, "access-1"))
	require.NoError(t, store.SetRefreshToken(ctx, "refresh-1"))

	tok, err = store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok)
	ref, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", ref)

	require.NoError(t, storePair(ctx, store, "access-2", "refresh-2"))
	tok, _ = store.Token(ctx)
	ref, _ = store.RefreshToken(ctx)
	assert.Equal(t, "access-2", tok)
	assert.Equal(t, "refresh-2", ref)

	require.NoError(t, store.Clear(ctx))
	tok, _ = store.Token(ctx)
	ref, _ = store.RefreshToken(ctx)
	assert.Empty(t, tok)
	assert.Empty(t, ref)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "branchdesk", "tokens.yaml")
	exerciseStore(t, NewFileStore(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "clear removes the file")
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := NewFileStore(path)
	require.NoError(t, store.SetToken(context.Background(), "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "token: secret\n", string(data))

	// A second store on the same file sees the token.
	tok, err := NewFileStore(path).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", tok)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), 0o600))

	_, err := NewFileStore(path).Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse token file")
}

func TestRedisStore(t *testing.T) {
	rdb := setupTestRedis(t)
	exerciseStore(t, NewRedisStore(rdb, "test:auth", 0))
}

func TestRedisStore_KeysAndPrefix(t *testing.T) {
	rdb := setupTestRedis(t)
	ctx := context.Background()

	store := NewRedisStore(rdb, "", 0)
	require.NoError(t, store.SetPair(ctx, "a", "r"))

	v, err := rdb.Get(ctx, "branchdesk:auth:token").Result()
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = rdb.Get(ctx, "branchdesk:auth:refresh_token").Result()
	require.NoError(t, err)
	assert.Equal(t, "r", v)

	require.NoError(t, store.SetToken(ctx, ""))
	n, err := rdb.Exists(ctx, "branchdesk:auth:token").Result()
	require.NoError(t, err)
	assert.Zero(t, n, "empty token deletes the key")
}
