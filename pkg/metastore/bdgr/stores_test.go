package bdgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vouchfs/vouchfs/pkg/metastore"
	"github.com/vouchfs/vouchfs/pkg/model"
)

func openStores(t *testing.T) metastore.Stores {
	t.Helper()
	s := New(t.TempDir())
	require.NoError(t, s.Initialize())
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestBadger_FileRoundTrip(t *testing.T) {
	s := openStores(t)
	files := s.Files()

	_, err := files.Get("missing")
	require.ErrorIs(t, err, metastore.ErrFileNotFound)

	rec := &model.FileRecord{
		ID:        "sha256:aa",
		Owner:     "alice",
		Root:      "sha256:aa",
		Size:      1024,
		Chunks:    []string{"sha256:bb", "sha256:cc"},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, files.Create(rec))
	require.ErrorIs(t, files.Create(rec), metastore.ErrExists)

	got, err := files.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Owner, got.Owner)
	require.Equal(t, rec.Chunks, got.Chunks)
	require.Equal(t, rec.Size, got.Size)

	n, err := files.Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.NoError(t, files.Delete(rec.ID))
	require.ErrorIs(t, files.Delete(rec.ID), metastore.ErrFileNotFound)
}

func TestBadger_ChunkAccounting(t *testing.T) {
	s := openStores(t)
	chunks := s.Chunks()

	require.NoError(t, chunks.Put(&model.ChunkMeta{Digest: "sha256:01", Size: 512, RefCount: 1}))
	require.NoError(t, chunks.Put(&model.ChunkMeta{Digest: "sha256:02", Size: 512, RefCount: 3}))
	// upsert overwrites
	require.NoError(t, chunks.Put(&model.ChunkMeta{Digest: "sha256:01", Size: 512, RefCount: 2}))

	got, err := chunks.Get("sha256:01")
	require.NoError(t, err)
	require.EqualValues(t, 2, got.RefCount)

	list, err := chunks.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestBadger_PrefixesDisjoint(t *testing.T) {
	// rows from one table must not leak into another's scans
	s := openStores(t)

	require.NoError(t, s.Files().Create(&model.FileRecord{ID: "x"}))
	require.NoError(t, s.Chunks().Put(&model.ChunkMeta{Digest: "x", RefCount: 1}))
	require.NoError(t, s.Shares().Create(&model.ShareRecord{ID: "x"}))

	nf, err := s.Files().Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, nf)

	chunks, err := s.Chunks().List()
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	ns, err := s.Shares().Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, ns)
}

func TestBadger_ShareRevocation(t *testing.T) {
	s := openStores(t)
	shares := s.Shares()

	expiry := time.Now().UTC().Add(time.Hour)
	rec := &model.ShareRecord{
		ID:         "share-1",
		FileID:     "sha256:aa",
		Sharer:     "alice",
		Recipient:  "bob",
		Commitment: "sha3-256:ff",
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  &expiry,
	}
	require.ErrorIs(t, shares.Update(rec), metastore.ErrShareNotFound)
	require.NoError(t, shares.Create(rec))

	rec.Revoked = true
	require.NoError(t, shares.Update(rec))

	got, err := shares.Get("share-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.NotNil(t, got.ExpiresAt)

	list, err := shares.ListByRecipient("bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
