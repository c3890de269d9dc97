package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/vouchfs/vouchfs/internal/rand"
	"github.com/vouchfs/vouchfs/pkg/dedup"
	"github.com/vouchfs/vouchfs/pkg/dlogger"
	"github.com/vouchfs/vouchfs/pkg/hasher"
	"github.com/vouchfs/vouchfs/pkg/merkle"
	"github.com/vouchfs/vouchfs/pkg/metastore/mem"
	"github.com/vouchfs/vouchfs/pkg/storage/localfs"
)

const testChunkSize = 1024

func newTestEngine(t *testing.T) (*Engine, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	stores := mem.New()
	l := dlogger.MustGetLogger(dlogger.LogLevelNone)

	chunks, err := dedup.New(
		dedup.Backend(localfs.New(fs)),
		dedup.ChunkMetadata(stores.Chunks()),
		dedup.Logger(l),
	)
	require.NoError(t, err)

	e, err := New(
		Dedup(chunks),
		Metadata(stores),
		ChunkSize(testChunkSize),
		Logger(l),
	)
	require.NoError(t, err)
	return e, fs
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	payload := rand.Bytes(testChunkSize*2 + testChunkSize/2)

	res, err := e.Upload(ctx, "alice", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, 3, res.TotalChunks)
	require.Equal(t, 3, res.NewChunks)
	require.Zero(t, res.DuplicateChunks)
	require.EqualValues(t, len(payload), res.Size)
	require.False(t, res.AlreadyStored)
	require.Equal(t, res.Root.String(), res.FileID)

	var out bytes.Buffer
	record, err := e.Download(ctx, res.FileID, &out)
	require.NoError(t, err)
	require.Equal(t, payload, out.Bytes())
	require.Equal(t, "alice", record.Owner)
	require.EqualValues(t, len(payload), record.Size)
}

func TestUpload_EmptyStream(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Upload(ctx, "alice", bytes.NewReader(nil))
	require.NoError(t, err)
	require.Zero(t, res.TotalChunks)
	require.Zero(t, res.Size)

	sentinel, err := merkle.EmptyRoot(hasher.SHA256)
	require.NoError(t, err)
	require.Equal(t, sentinel, res.Root)

	var out bytes.Buffer
	_, err = e.Download(ctx, res.FileID, &out)
	require.NoError(t, err)
	require.Zero(t, out.Len())
}

func TestUpload_IdenticalContentDeduplicates(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	payload := rand.Bytes(testChunkSize * 4)

	first, err := e.Upload(ctx, "alice", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, 4, first.NewChunks)

	second, err := e.Upload(ctx, "bob", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, first.FileID, second.FileID)
	require.True(t, second.AlreadyStored)
	require.Zero(t, second.NewChunks)
	require.Equal(t, 4, second.DuplicateChunks)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 8, stats.TotalChunks)
	require.EqualValues(t, 4, stats.UniqueChunks)
	require.InDelta(t, 0.5, stats.DedupRatio, 1e-9)
}

func TestDownload_CorruptChunkDetected(t *testing.T) {
	e, fs := newTestEngine(t)
	ctx := context.Background()
	payload := rand.Bytes(testChunkSize * 3)

	res, err := e.Upload(ctx, "alice", bytes.NewReader(payload))
	require.NoError(t, err)

	// flip the middle chunk behind the store's back
	d, err := hasher.Compute(hasher.SHA256, payload[testChunkSize:2*testChunkSize])
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, d.String(), []byte("tampered"), 0600))

	var out bytes.Buffer
	_, err = e.Download(ctx, res.FileID, &out)
	require.ErrorIs(t, err, ErrIntegrityViolation)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, 1, ie.ChunkIndex)

	// no bytes handed out on a failed verification
	require.Zero(t, out.Len())
}

func TestDownload_UnknownFile(t *testing.T) {
	e, _ := newTestEngine(t)

	var out bytes.Buffer
	_, err := e.Download(context.Background(), "sha256:deadbeef", &out)
	require.Error(t, err)
}

func TestVerifyIntegrity(t *testing.T) {
	e, fs := newTestEngine(t)
	ctx := context.Background()
	payload := rand.Bytes(testChunkSize * 2)

	res, err := e.Upload(ctx, "alice", bytes.NewReader(payload))
	require.NoError(t, err)

	report, err := e.VerifyIntegrity(ctx, res.FileID)
	require.NoError(t, err)
	require.True(t, report.OK)
	require.Equal(t, 2, report.Chunks)
	require.Equal(t, -1, report.FailedChunk)

	// tamper a second, never-read file so the read cache cannot mask it
	other := rand.Bytes(testChunkSize * 2)
	victim, err := e.Upload(ctx, "alice", bytes.NewReader(other))
	require.NoError(t, err)
	d, err := hasher.Compute(hasher.SHA256, other[:testChunkSize])
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, d.String(), []byte("tampered"), 0600))

	report, err = e.VerifyIntegrity(ctx, victim.FileID)
	require.ErrorIs(t, err, ErrIntegrityViolation)
	require.False(t, report.OK)
	require.Equal(t, 0, report.FailedChunk)
}

func TestVerifyChunk_ProofBased(t *testing.T) {
	e, fs := newTestEngine(t)
	ctx := context.Background()
	payload := rand.Bytes(testChunkSize * 3)

	res, err := e.Upload(ctx, "alice", bytes.NewReader(payload))
	require.NoError(t, err)

	// leave the last chunk unread so the read cache cannot mask the tamper
	for i := 0; i < 2; i++ {
		report, err := e.VerifyChunk(ctx, res.FileID, i)
		require.NoError(t, err)
		require.True(t, report.OK)
	}

	d, err := hasher.Compute(hasher.SHA256, payload[2*testChunkSize:])
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, d.String(), []byte("tampered"), 0600))

	_, err = e.VerifyChunk(ctx, res.FileID, 2)
	require.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestShareReveal_RoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(testChunkSize)))
	require.NoError(t, err)

	share, opening, err := e.Share(ctx, res.FileID, "alice", "bob", nil)
	require.NoError(t, err)
	require.NotEmpty(t, share.ID)
	require.Equal(t, "bob", share.Recipient)
	require.NotEmpty(t, opening)

	revealed, err := e.Reveal(ctx, share.ID, res.FileID, opening)
	require.NoError(t, err)
	require.Equal(t, share.ID, revealed.ID)
}

func TestShare_NotOwner(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(64)))
	require.NoError(t, err)

	_, _, err = e.Share(ctx, res.FileID, "mallory", "bob", nil)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestReveal_WrongRootFails(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(testChunkSize)))
	require.NoError(t, err)
	b, err := e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(testChunkSize)))
	require.NoError(t, err)

	share, opening, err := e.Share(ctx, a.FileID, "alice", "bob", nil)
	require.NoError(t, err)

	// revealing a different file's root must not verify
	_, err = e.Reveal(ctx, share.ID, b.FileID, opening)
	require.ErrorIs(t, err, ErrCommitmentMismatch)

	// nor does a tampered opening
	bad := append([]byte{}, opening...)
	bad[0] ^= 0xff
	_, err = e.Reveal(ctx, share.ID, a.FileID, bad)
	require.ErrorIs(t, err, ErrCommitmentMismatch)
}

func TestReveal_RevokedAndExpired(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(64)))
	require.NoError(t, err)

	share, opening, err := e.Share(ctx, res.FileID, "alice", "bob", nil)
	require.NoError(t, err)

	require.ErrorIs(t, e.Revoke(ctx, share.ID, "mallory"), ErrNotOwner)
	require.NoError(t, e.Revoke(ctx, share.ID, "alice"))
	_, err = e.Reveal(ctx, share.ID, res.FileID, opening)
	require.ErrorIs(t, err, ErrShareRevoked)

	past := time.Now().UTC().Add(-time.Hour)
	expired, opening, err := e.Share(ctx, res.FileID, "alice", "bob", &past)
	require.NoError(t, err)
	_, err = e.Reveal(ctx, expired.ID, res.FileID, opening)
	require.ErrorIs(t, err, ErrShareExpired)
}

func TestListFilesAndShares(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(128)))
	require.NoError(t, err)
	_, err = e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(128)))
	require.NoError(t, err)
	_, err = e.Upload(ctx, "bob", bytes.NewReader(rand.Bytes(128)))
	require.NoError(t, err)

	files, err := e.ListFiles(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, files, 2)

	_, _, err = e.Share(ctx, a.FileID, "alice", "bob", nil)
	require.NoError(t, err)
	shares, err := e.ListShares(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, shares, 1)
	require.Equal(t, a.FileID, shares[0].FileID)
}

func TestDeleteFile_ReleasesSharedChunks(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	payload := rand.Bytes(testChunkSize * 2)

	first, err := e.Upload(ctx, "alice", bytes.NewReader(payload))
	require.NoError(t, err)
	_, err = e.Upload(ctx, "bob", bytes.NewReader(payload))
	require.NoError(t, err)

	require.ErrorIs(t, e.DeleteFile(ctx, first.FileID, "mallory"), ErrNotOwner)
	require.NoError(t, e.DeleteFile(ctx, first.FileID, "alice"))

	// the record is gone but the shared chunks survive for the other upload
	var out bytes.Buffer
	_, err = e.Download(ctx, first.FileID, &out)
	require.Error(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalChunks)
	require.EqualValues(t, 2, stats.UniqueChunks)
}

func TestStats_Counts(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a, err := e.Upload(ctx, "alice", bytes.NewReader(rand.Bytes(testChunkSize)))
	require.NoError(t, err)
	_, err = e.Upload(ctx, "bob", bytes.NewReader(rand.Bytes(testChunkSize)))
	require.NoError(t, err)
	_, _, err = e.Share(ctx, a.FileID, "alice", "bob", nil)
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.TotalFiles)
	require.EqualValues(t, 1, stats.TotalShares)
	require.EqualValues(t, 2, stats.TotalChunks)
}

func TestNew_DefaultsRunInMemory(t *testing.T) {
	// an optionless engine must not touch the OS filesystem
	wd := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(wd))
	defer func() { require.NoError(t, os.Chdir(oldWd)) }()

	e, err := New(Logger(dlogger.MustGetLogger(dlogger.LogLevelNone)))
	require.NoError(t, err)

	ctx := context.Background()
	payload := rand.Bytes(2048)
	res, err := e.Upload(ctx, "alice", bytes.NewReader(payload))
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = e.Download(ctx, res.FileID, &out)
	require.NoError(t, err)
	require.Equal(t, payload, out.Bytes())

	entries, err := os.ReadDir(wd)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Algorithm(hasher.Algorithm(99)))
	require.ErrorIs(t, err, hasher.ErrUnsupportedAlgorithm)

	_, err = New(ChunkSize(0))
	require.Error(t, err)
}

func TestReveal_UnknownShare(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Reveal(context.Background(), "no-such-share", "root", rand.Bytes(32))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrCommitmentMismatch))
}
