// Package engine composes the digest, chunking, dedup, merkle and
// commitment primitives into the upload, download, share and verify
// workflows. It is the only component that talks to the metadata and blob
// storage collaborators.
package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vouchfs/vouchfs/pkg/chunker"
	"github.com/vouchfs/vouchfs/pkg/commitment"
	"github.com/vouchfs/vouchfs/pkg/dedup"
	"github.com/vouchfs/vouchfs/pkg/hasher"
	"github.com/vouchfs/vouchfs/pkg/merkle"
	"github.com/vouchfs/vouchfs/pkg/metastore"
	"github.com/vouchfs/vouchfs/pkg/metrics"
	"github.com/vouchfs/vouchfs/pkg/model"
)

// Engine drives the storage workflows. Independent files may be processed
// concurrently; per-digest serialization lives in the dedup store.
type Engine struct {
	algo       hasher.Algorithm
	commitAlgo hasher.Algorithm
	chunkSize  uint32
	chunks     *dedup.Store
	stores     metastore.Stores
	l          *zap.Logger

	retries int
	backoff time.Duration

	metrics.Enable
}

// UploadResult reports the outcome of an upload workflow
type UploadResult struct {
	FileID          string
	Root            hasher.Digest
	Size            int64
	TotalChunks     int
	NewChunks       int
	DuplicateChunks int
	AlreadyStored   bool // a FileRecord for this content already existed
}

// Upload chunks the stream, deduplicates every chunk, builds the Merkle
// tree over the chunk digests and persists the FileRecord. The root digest
// is the file's canonical identity: uploading identical content twice
// yields the same file id and zero new chunk writes.
func (e *Engine) Upload(ctx context.Context, owner string, src io.Reader) (*UploadResult, error) {
	c, err := chunker.New(src, e.chunkSize)
	if err != nil {
		return nil, err
	}

	var (
		leaves []hasher.Digest
		res    UploadResult
	)
	for {
		block, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		d, err := hasher.Compute(e.algo, block)
		if err != nil {
			return nil, err
		}

		var put dedup.PutResult
		if err := e.withRetry("put chunk", func() error {
			var perr error
			put, perr = e.chunks.PutChunk(ctx, d, block)
			return perr
		}); err != nil {
			return nil, err
		}

		leaves = append(leaves, d)
		res.Size += int64(len(block))
		res.TotalChunks++
		if put.Status == dedup.StoredNew {
			res.NewChunks++
		} else {
			res.DuplicateChunks++
		}
	}

	tree, err := merkle.Build(e.algo, leaves)
	if err != nil {
		return nil, err
	}
	res.Root = tree.Root()
	res.FileID = res.Root.String()

	record := &model.FileRecord{
		ID:        res.FileID,
		Owner:     owner,
		Root:      res.FileID,
		Size:      res.Size,
		Chunks:    digestStrings(leaves),
		CreatedAt: time.Now().UTC(),
	}
	err = e.withRetry("create file record", func() error {
		return e.stores.Files().Create(record)
	})
	switch {
	case err == nil:
	case errors.Is(err, metastore.ErrExists):
		// same content uploaded before; chunk references acquired above
		// are kept so the accounting matches upload events
		res.AlreadyStored = true
	default:
		return nil, err
	}

	if e.MetricsEnabled() {
		metrics.Inc(metrics.Uploads)
	}
	e.l.Info("upload complete",
		zap.String("file", res.FileID),
		zap.String("owner", owner),
		zap.Int64("bytes", res.Size),
		zap.Int("chunks", res.TotalChunks),
		zap.Int("new", res.NewChunks),
	)
	return &res, nil
}

// Download reassembles a file and verifies its integrity before handing
// any bytes to the caller: the Merkle root recomputed from the reassembled
// chunks must equal the stored root, otherwise nothing is written to dst
// and an IntegrityError identifies the failure.
func (e *Engine) Download(ctx context.Context, fileID string, dst io.Writer) (*model.FileRecord, error) {
	record, err := e.getFile(fileID)
	if err != nil {
		return nil, err
	}

	digests, err := record.ChunkDigests()
	if err != nil {
		return nil, err
	}
	storedRoot, err := record.RootDigest()
	if err != nil {
		return nil, err
	}

	var assembled bytes.Buffer
	recomputed := make([]hasher.Digest, len(digests))
	for i, d := range digests {
		data, err := e.chunks.GetChunk(ctx, d)
		if err != nil {
			if errors.Is(err, dedup.ErrCorrupted) {
				e.countIntegrityFailure()
				return nil, &IntegrityError{FileID: fileID, ChunkIndex: i}
			}
			return nil, err
		}
		cd, err := hasher.Compute(e.algo, data)
		if err != nil {
			return nil, err
		}
		if cd != d {
			e.countIntegrityFailure()
			return nil, &IntegrityError{FileID: fileID, ChunkIndex: i}
		}
		recomputed[i] = cd
		_, _ = assembled.Write(data)
	}

	tree, err := merkle.Build(e.algo, recomputed)
	if err != nil {
		return nil, err
	}
	if tree.Root() != storedRoot {
		e.countIntegrityFailure()
		return nil, &IntegrityError{FileID: fileID, ChunkIndex: -1}
	}

	if _, err := io.Copy(dst, &assembled); err != nil {
		return nil, err
	}
	if e.MetricsEnabled() {
		metrics.Inc(metrics.Downloads)
	}
	e.l.Info("download complete", zap.String("file", fileID), zap.Int64("bytes", record.Size))
	return record, nil
}

// Share commits the file's root digest and persists the ShareRecord. The
// commitment goes to the recipient channel; the opening stays with the
// sharer and is never persisted by the engine.
func (e *Engine) Share(ctx context.Context, fileID, sharer, recipient string, expiresAt *time.Time) (*model.ShareRecord, commitment.Opening, error) {
	record, err := e.getFile(fileID)
	if err != nil {
		return nil, nil, err
	}
	if record.Owner != sharer {
		return nil, nil, ErrNotOwner
	}

	com, opening, err := commitment.Commit(e.commitAlgo, []byte(record.Root))
	if err != nil {
		return nil, nil, err
	}

	share := &model.ShareRecord{
		ID:         uuid.New().String(),
		FileID:     fileID,
		Sharer:     sharer,
		Recipient:  recipient,
		Commitment: com.String(),
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
	if err := e.withRetry("create share record", func() error {
		return e.stores.Shares().Create(share)
	}); err != nil {
		return nil, nil, err
	}

	e.l.Info("share created",
		zap.String("share", share.ID),
		zap.String("file", fileID),
		zap.String("sharer", sharer),
		zap.String("recipient", recipient),
	)
	return share, opening, nil
}

// Reveal verifies a sharer's reveal against the stored commitment: the
// revealed root and opening must reproduce the commitment, and the root
// must match the shared file's stored identity. Expired or revoked shares
// fail before any cryptographic check.
func (e *Engine) Reveal(ctx context.Context, shareID, revealedRoot string, opening commitment.Opening) (*model.ShareRecord, error) {
	share, err := e.getShare(shareID)
	if err != nil {
		return nil, err
	}
	if share.Revoked {
		return nil, ErrShareRevoked
	}
	if share.Expired(time.Now().UTC()) {
		return nil, ErrShareExpired
	}

	com, err := commitment.FromString(share.Commitment)
	if err != nil {
		return nil, err
	}
	if !commitment.Verify(com, []byte(revealedRoot), opening) {
		return nil, ErrCommitmentMismatch
	}

	record, err := e.getFile(share.FileID)
	if err != nil {
		return nil, err
	}
	if record.Root != revealedRoot {
		return nil, ErrCommitmentMismatch
	}

	e.l.Info("share revealed", zap.String("share", shareID), zap.String("file", share.FileID))
	return share, nil
}

// Revoke marks a share revoked. Only the sharer may revoke; the committed
// value is never touched.
func (e *Engine) Revoke(ctx context.Context, shareID, sharer string) error {
	share, err := e.getShare(shareID)
	if err != nil {
		return err
	}
	if share.Sharer != sharer {
		return ErrNotOwner
	}
	share.Revoked = true
	return e.withRetry("update share record", func() error {
		return e.stores.Shares().Update(share)
	})
}

// IntegrityReport is the outcome of a verify-integrity workflow
type IntegrityReport struct {
	FileID      string
	Chunks      int
	OK          bool
	FailedChunk int // -1 when OK or when the root itself mismatched
}

// VerifyIntegrity re-digests every stored chunk of a file and recomputes
// the Merkle root against the stored authority. The report names the first
// failing chunk; the returned error satisfies
// errors.Is(err, ErrIntegrityViolation).
func (e *Engine) VerifyIntegrity(ctx context.Context, fileID string) (*IntegrityReport, error) {
	record, err := e.getFile(fileID)
	if err != nil {
		return nil, err
	}
	digests, err := record.ChunkDigests()
	if err != nil {
		return nil, err
	}
	storedRoot, err := record.RootDigest()
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{FileID: fileID, Chunks: len(digests), FailedChunk: -1}
	for i, d := range digests {
		data, err := e.chunks.GetChunk(ctx, d)
		if err != nil {
			if errors.Is(err, dedup.ErrCorrupted) || errors.Is(err, dedup.ErrNotFound) {
				report.FailedChunk = i
				e.countIntegrityFailure()
				return report, &IntegrityError{FileID: fileID, ChunkIndex: i}
			}
			return nil, err
		}
		cd, err := hasher.Compute(e.algo, data)
		if err != nil {
			return nil, err
		}
		if cd != d {
			report.FailedChunk = i
			e.countIntegrityFailure()
			return report, &IntegrityError{FileID: fileID, ChunkIndex: i}
		}
	}

	tree, err := merkle.Build(e.algo, digests)
	if err != nil {
		return nil, err
	}
	if tree.Root() != storedRoot {
		e.countIntegrityFailure()
		return report, &IntegrityError{FileID: fileID, ChunkIndex: -1}
	}

	report.OK = true
	return report, nil
}

// VerifyChunk checks a single chunk through its Merkle inclusion proof
// instead of re-hashing the whole file.
func (e *Engine) VerifyChunk(ctx context.Context, fileID string, index int) (*IntegrityReport, error) {
	record, err := e.getFile(fileID)
	if err != nil {
		return nil, err
	}
	digests, err := record.ChunkDigests()
	if err != nil {
		return nil, err
	}
	storedRoot, err := record.RootDigest()
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{FileID: fileID, Chunks: len(digests), FailedChunk: -1}

	tree, err := merkle.Build(e.algo, digests)
	if err != nil {
		return nil, err
	}
	proof, err := tree.ProveLeaf(index)
	if err != nil {
		return nil, err
	}

	data, err := e.chunks.GetChunk(ctx, digests[index])
	if err != nil {
		if errors.Is(err, dedup.ErrCorrupted) || errors.Is(err, dedup.ErrNotFound) {
			report.FailedChunk = index
			e.countIntegrityFailure()
			return report, &IntegrityError{FileID: fileID, ChunkIndex: index}
		}
		return nil, err
	}
	leaf, err := hasher.Compute(e.algo, data)
	if err != nil {
		return nil, err
	}
	if !merkle.VerifyProof(leaf, proof, storedRoot) {
		report.FailedChunk = index
		e.countIntegrityFailure()
		return report, &IntegrityError{FileID: fileID, ChunkIndex: index}
	}

	report.OK = true
	return report, nil
}

// DeleteFile releases every chunk reference held by the file and removes
// its record. Only the owner may delete. Physical reclamation of
// zero-reference chunks is maintenance policy, not handled here.
func (e *Engine) DeleteFile(ctx context.Context, fileID, owner string) error {
	record, err := e.getFile(fileID)
	if err != nil {
		return err
	}
	if record.Owner != owner {
		return ErrNotOwner
	}

	digests, err := record.ChunkDigests()
	if err != nil {
		return err
	}
	for _, d := range digests {
		if err := e.chunks.Release(ctx, d); err != nil {
			return err
		}
	}
	return e.withRetry("delete file record", func() error {
		return e.stores.Files().Delete(fileID)
	})
}

// ListFiles returns the files owned by an identity
func (e *Engine) ListFiles(ctx context.Context, owner string) ([]model.FileRecord, error) {
	var out []model.FileRecord
	err := e.withRetry("list files", func() error {
		var lerr error
		out, lerr = e.stores.Files().ListByOwner(owner)
		return lerr
	})
	return out, err
}

// ListShares returns the shares addressed to a recipient
func (e *Engine) ListShares(ctx context.Context, recipient string) ([]model.ShareRecord, error) {
	var out []model.ShareRecord
	err := e.withRetry("list shares", func() error {
		var lerr error
		out, lerr = e.stores.Shares().ListByRecipient(recipient)
		return lerr
	})
	return out, err
}

// RebuildFilter re-seeds the dedup store's bloom filter from the chunk
// table. Maintenance operation.
func (e *Engine) RebuildFilter(ctx context.Context) error {
	return e.chunks.RebuildFilter(ctx)
}

// Stats aggregates the reporting counters across the dedup store and the
// metadata tables.
func (e *Engine) Stats(ctx context.Context) (*model.Stats, error) {
	counters := e.chunks.Stats()

	var files, shares int64
	if err := e.withRetry("count files", func() error {
		var cerr error
		files, cerr = e.stores.Files().Count()
		return cerr
	}); err != nil {
		return nil, err
	}
	if err := e.withRetry("count shares", func() error {
		var cerr error
		shares, cerr = e.stores.Shares().Count()
		return cerr
	}); err != nil {
		return nil, err
	}

	return &model.Stats{
		TotalFiles:          files,
		TotalShares:         shares,
		TotalChunks:         counters.TotalChunks,
		UniqueChunks:        counters.UniqueChunks,
		TotalLogicalBytes:   counters.TotalLogicalBytes,
		UniquePhysicalBytes: counters.UniquePhysicalBytes,
		DedupRatio:          e.chunks.DedupRatio(),
		BloomFalsePositives: counters.BloomFalsePositives,
	}, nil
}

func (e *Engine) getFile(fileID string) (*model.FileRecord, error) {
	var record *model.FileRecord
	err := e.withRetry("load file record", func() error {
		var gerr error
		record, gerr = e.stores.Files().Get(fileID)
		return gerr
	})
	return record, err
}

func (e *Engine) getShare(shareID string) (*model.ShareRecord, error) {
	var share *model.ShareRecord
	err := e.withRetry("load share record", func() error {
		var gerr error
		share, gerr = e.stores.Shares().Get(shareID)
		return gerr
	})
	return share, err
}

// withRetry retries transient persistence failures with a bounded fixed
// backoff. Not-found and domain errors pass through untouched.
func (e *Engine) withRetry(op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		var pe *metastore.PersistenceError
		if err == nil || !errors.As(err, &pe) {
			return err
		}
		if attempt >= e.retries {
			return err
		}
		e.l.Warn("transient persistence failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		time.Sleep(e.backoff)
	}
}

func (e *Engine) countIntegrityFailure() {
	if e.MetricsEnabled() {
		metrics.Inc(metrics.IntegrityFailures)
	}
}

func digestStrings(ds []hasher.Digest) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
