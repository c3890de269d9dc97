package localfs

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/vouchfs/vouchfs/internal/rand"
	"github.com/vouchfs/vouchfs/pkg/storage"
)

func TestLocalFS_PutGetRoundTrip(t *testing.T) {
	store := New(afero.NewMemMapFs())
	ctx := context.Background()
	payload := rand.Bytes(4096)

	require.NoError(t, store.Put(ctx, "sha256:aabb", bytes.NewReader(payload)))

	has, err := store.Has(ctx, "sha256:aabb")
	require.NoError(t, err)
	require.True(t, has)

	rdr, err := store.Get(ctx, "sha256:aabb")
	require.NoError(t, err)
	got, err := storage.ReadAll(rdr)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestLocalFS_GetMissing(t *testing.T) {
	store := New(afero.NewMemMapFs())

	_, err := store.Get(context.Background(), "sha256:ffee")
	require.ErrorIs(t, err, storage.ErrNotFound)

	has, err := store.Has(context.Background(), "sha256:ffee")
	require.NoError(t, err)
	require.False(t, has)
}

func TestLocalFS_Delete(t *testing.T) {
	store := New(afero.NewMemMapFs())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sha256:0011", bytes.NewReader([]byte("x"))))
	require.NoError(t, store.Delete(ctx, "sha256:0011"))

	has, err := store.Has(ctx, "sha256:0011")
	require.NoError(t, err)
	require.False(t, has)

	// deleting a missing key is not an error
	require.NoError(t, store.Delete(ctx, "sha256:0011"))
}

func TestLocalFS_Keys(t *testing.T) {
	store := New(afero.NewMemMapFs())
	ctx := context.Background()

	for _, k := range []string{"sha256:01", "sha256:02", "sha256:03"} {
		require.NoError(t, store.Put(ctx, k, bytes.NewReader([]byte(k))))
	}

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 3)
}

func TestLocalFS_Clear(t *testing.T) {
	store := New(afero.NewMemMapFs())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sha256:01", bytes.NewReader([]byte("x"))))
	require.NoError(t, store.Clear(ctx))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)

	// the store stays usable after a clear
	require.NoError(t, store.Put(ctx, "sha256:02", bytes.NewReader([]byte("y"))))
	has, err := store.Has(ctx, "sha256:02")
	require.NoError(t, err)
	require.True(t, has)
}
