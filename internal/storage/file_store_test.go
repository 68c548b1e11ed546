package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "raw"))
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "id.png", []byte("pixels")))

	data, err := store.Get(ctx, "id.png")
	require.NoError(t, err)
	require.Equal(t, []byte("pixels"), data)

	// overwrite replaces the whole object
	require.NoError(t, store.Put(ctx, "id.png", []byte("new")))
	data, err = store.Get(ctx, "id.png")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), data)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, store.Delete(ctx, "id.png"))
	require.NoError(t, store.Delete(ctx, "id.png"), "deleting a missing object is not an error")
}

func TestFileStoreNotFound(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing.jpg")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStoreRejectsPaths(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.png", "sub/dir.png", `win\dir.png`} {
		t.Run(name, func(t *testing.T) {
			require.Error(t, store.Put(ctx, name, []byte("x")))
			_, err := store.Get(ctx, name)
			require.Error(t, err)
		})
	}
}

func TestCacheKeyNormalizesQuestion(t *testing.T) {
	require.Equal(t, CacheKey("What is the fee?"), CacheKey("  what is the FEE?\n"))
	require.NotEqual(t, CacheKey("What is the fee?"), CacheKey("What is the deadline?"))
	require.Len(t, CacheKey(""), 64)
}
