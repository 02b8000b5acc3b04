package cartstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store ICartStore) {
	t.Helper()
	ctx := context.Background()
	key := "@D8:products:" + t.Name()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := store.GetItem(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.SetItem(ctx, key, `[{"id":"p1"}]`))
		v, ok, err := store.GetItem(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `[{"id":"p1"}]`, v)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.SetItem(ctx, key, `[]`))
		v, ok, err := store.GetItem(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `[]`, v)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, store.RemoveItem(ctx, key))
		_, ok, err := store.GetItem(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, store.RemoveItem(ctx, key))
	})

	t.Run("ping", func(t *testing.T) {
		assert.True(t, store.Ping(ctx))
	})
}

func TestLocalCartStore(t *testing.T) {
	store := NewLocalCartStore(quietLogger())
	require.NoError(t, store.Initialize(context.Background()))
	exerciseStore(t, store)
}

func TestSQLiteCartStore(t *testing.T) {
	store, err := NewSQLiteCartStore(filepath.Join(t.TempDir(), "nested", "cart.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Initialize(context.Background()))
	exerciseStore(t, store)
}

func TestSQLiteCartStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart.db")

	first, err := NewSQLiteCartStore(path, quietLogger())
	require.NoError(t, err)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.SetItem(ctx, "@D8:products", `[{"id":"p1","quantity":2}]`))
	require.NoError(t, first.Close())

	second, err := NewSQLiteCartStore(path, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })
	require.NoError(t, second.Initialize(ctx))

	v, ok, err := second.GetItem(ctx, "@D8:products")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"p1","quantity":2}]`, v)
}

func TestSQLiteCartStore_Memory(t *testing.T) {
	store, err := NewSQLiteCartStore(MemoryPath, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Initialize(context.Background()))
	exerciseStore(t, store)
}

func TestRedisCartStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	store := NewRedisCartStore(addr, quietLogger())
	store.attempts = 3
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Initialize(context.Background()))
	exerciseStore(t, store)
}

func TestRedisCartStore_InitializeCancelled(t *testing.T) {
	// Nothing listens on port 1, so Ping fails and the cancelled context ends the backoff.
	store := NewRedisCartStore("127.0.0.1:1", quietLogger())
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Initialize(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, Options{Backend: BackendMemory}, quietLogger())
		require.NoError(t, err)
		assert.IsType(t, &LocalCartStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := Open(ctx, Options{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "c.db")}, quietLogger())
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		assert.IsType(t, &SQLiteCartStore{}, store)
	})

	t.Run("redis without address", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: BackendRedis}, quietLogger())
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: "floppy"}, quietLogger())
		assert.ErrorContains(t, err, "floppy")
	})
}
