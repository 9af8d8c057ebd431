package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cookify/internal/database"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, ok, err := kv.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "token", "abc"))
		v, ok, err := kv.Get(ctx, "token")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "token", "def"))
		v, _, err := kv.Get(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, "def", v)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, kv.Delete(ctx, "token"))
		_, ok, err := kv.Get(ctx, "token")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, kv.Delete(ctx, "token"))
	})
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestSQLiteKV(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "kv.db"), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	exerciseKV(t, NewSQLiteKV(db.SQL))
}

func TestFileKV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	exerciseKV(t, kv)

	t.Run("OneFilePerKey", func(t *testing.T) {
		require.NoError(t, kv.Set(context.Background(), "savedRecipes", "[]"))
		_, err := os.Stat(filepath.Join(dir, "savedRecipes.json"))
		assert.NoError(t, err)
	})

	t.Run("KeyCannotEscapeDirectory", func(t *testing.T) {
		assert.Equal(t, dir, filepath.Dir(kv.path("../../etc/passwd")))
	})
}

func TestRedisKV(t *testing.T) {
	addr := os.Getenv("COOKIFY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COOKIFY_TEST_REDIS_ADDR not set")
	}
	kv, err := NewRedisKV(context.Background(), addr, "", 0)
	require.NoError(t, err)
	defer kv.Close()

	exerciseKV(t, kv)
}
