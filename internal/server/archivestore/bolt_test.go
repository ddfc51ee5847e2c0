package archivestore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore_PutGet(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "archives.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k1", []byte(`{"a":1}`)))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestBoltStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archives.db")
	ctx := context.Background()

	store, err := NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestBoltStore_CreatesParentDir(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "data", "vault", "archives.db"))
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestStorageKey(t *testing.T) {
	k1 := StorageKey("u1", time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC))
	k2 := StorageKey("u1", time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC))

	assert.True(t, strings.HasPrefix(k1, "backups/u1/2025/7/4/"), k1)
	assert.True(t, strings.HasSuffix(k1, ".json"))
	assert.NotEqual(t, k1, k2)
}

func TestOwnedBy(t *testing.T) {
	k := StorageKey("u1", time.Now())

	assert.True(t, OwnedBy("u1", k))
	assert.False(t, OwnedBy("u", k))
	assert.False(t, OwnedBy("", k))
	assert.False(t, OwnedBy("u1", "other/u1/x.json"))
}
