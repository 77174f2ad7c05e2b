package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xkanth/quorum-wallet/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_PutThenGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := models.CacheEntry{
		Chain:   "ethereum",
		Address: "0xabc",
		Kind:    "balance",
		Value:   "1000000000000000000",
	}
	require.NoError(t, store.Put(ctx, entry))

	got, err := store.Get(ctx, "ethereum", "0xabc", "balance")
	require.NoError(t, err)
	require.Equal(t, entry.Value, got.Value)
	require.False(t, got.UpdatedAt.IsZero())
}

func TestStore_GetMissingReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "ethereum", "0xdead", "balance")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_PutOverwritesPriorEntry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, models.CacheEntry{Chain: "ethereum", Address: "0xabc", Kind: "balance", Value: "1"}))
	require.NoError(t, store.Put(ctx, models.CacheEntry{Chain: "ethereum", Address: "0xabc", Kind: "balance", Value: "2"}))

	got, err := store.Get(ctx, "ethereum", "0xabc", "balance")
	require.NoError(t, err)
	require.Equal(t, "2", got.Value)
}
