package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSaveAndRemove(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key := "recipes/abc.png"
	require.NoError(t, store.Save(ctx, key, strings.NewReader("payload")))

	data, err := os.ReadFile(filepath.Join(store.baseDir, "recipes", "abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, store.Remove(ctx, key))
	_, err = os.Stat(filepath.Join(store.baseDir, "recipes", "abc.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreRemoveMissingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Remove(context.Background(), "recipes/never-saved.png"))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"../outside.png", "recipes/../../outside.png", "/etc/passwd"} {
		assert.Error(t, store.Save(ctx, key, strings.NewReader("x")), key)
		assert.Error(t, store.Remove(ctx, key), key)
	}
}

func TestNewLocalStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	_, err := NewLocalStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
