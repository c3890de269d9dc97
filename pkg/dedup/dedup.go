// Package dedup implements the deduplication store: the authority for
// "is this content already stored". It binds the bloom filter fast path,
// the authoritative chunk table and the blob backend into one atomic
// decision point per content digest.
package dedup

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/vouchfs/vouchfs/pkg/bloom"
	"github.com/vouchfs/vouchfs/pkg/hasher"
	"github.com/vouchfs/vouchfs/pkg/metastore"
	"github.com/vouchfs/vouchfs/pkg/metrics"
	"github.com/vouchfs/vouchfs/pkg/model"
	"github.com/vouchfs/vouchfs/pkg/storage"
)

type errString string

func (e errString) Error() string { return string(e) }

const (
	// ErrNotFound is returned when a chunk digest is unknown
	ErrNotFound errString = "chunk not found"

	// ErrCorrupted is returned when stored chunk bytes no longer match
	// their digest
	ErrCorrupted errString = "chunk bytes do not match digest"

	// ErrNegativeRefCount signals broken accounting: more releases than
	// references
	ErrNegativeRefCount errString = "chunk reference count below zero"
)

// PutStatus reports how a put was resolved
type PutStatus int

const (
	// StoredNew means the chunk bytes were physically written
	StoredNew PutStatus = iota + 1
	// StoredDuplicate means the content was already present and only the
	// reference count moved
	StoredDuplicate
)

// PutResult holds the outcome of a PutChunk operation
type PutResult struct {
	Status   PutStatus
	Digest   hasher.Digest
	RefCount int64
	Written  int64 // physical bytes written, 0 on duplicate
}

// lockStripes bounds the per-digest mutex set. Operations on the same
// digest always serialize; unrelated digests may occasionally share a
// stripe, which costs a little concurrency and no correctness.
const lockStripes = 256

const defaultCacheChunks = 64

// Store is the deduplication store. All reference count mutations go
// through it; nothing else touches the chunk table.
type Store struct {
	blobs  storage.Store
	meta   metastore.ChunkStore
	filter *bloom.Filter
	cache  *lru.Cache // digest string -> chunk bytes, read path only
	l      *zap.Logger

	locks [lockStripes]sync.Mutex

	verifyOnRead bool
	cacheSize    int

	// aggregate counters, seeded by Warm, maintained by PutChunk/Release
	totalChunks   int64
	uniqueChunks  int64
	logicalBytes  int64
	physicalBytes int64

	metrics.Enable
}

// New creates a dedup store from the given options
func New(opts ...Option) (*Store, error) {
	s := defaultStore()
	for _, apply := range opts {
		apply(s)
	}

	if s.filter == nil {
		f, err := bloom.New(defaultFilterEntries, defaultFilterFPRate)
		if err != nil {
			return nil, err
		}
		s.filter = f
	}

	cache, err := lru.New(s.cacheChunks())
	if err != nil {
		return nil, err
	}
	s.cache = cache

	return s, nil
}

func (s *Store) stripe(d hasher.Digest) *sync.Mutex {
	b := d.Bytes()
	return &s.locks[b[0]]
}

// Warm seeds the bloom filter and the aggregate counters from the
// authoritative chunk table. Run once at startup, before serving puts.
func (s *Store) Warm(_ context.Context) error {
	metas, err := s.meta.List()
	if err != nil {
		return err
	}
	for _, m := range metas {
		d, err := hasher.DigestFromString(m.Digest)
		if err != nil {
			return err
		}
		s.filter.Insert(d)
		atomic.AddInt64(&s.uniqueChunks, 1)
		atomic.AddInt64(&s.physicalBytes, m.Size)
		atomic.AddInt64(&s.totalChunks, m.RefCount)
		atomic.AddInt64(&s.logicalBytes, m.RefCount*m.Size)
	}
	s.l.Debug("dedup store warmed", zap.Int("chunks", len(metas)))
	return nil
}

// PutChunk stores chunk bytes under their digest, or bumps the reference
// count when the content is already present. The check-then-act sequence
// runs as a critical section keyed by digest: two concurrent puts of
// identical new content result in exactly one physical write and a
// reference count of two.
func (s *Store) PutChunk(ctx context.Context, d hasher.Digest, data []byte) (PutResult, error) {
	if d.IsZero() {
		return PutResult{}, hasher.ErrUnsupportedAlgorithm
	}

	mu := s.stripe(d)
	mu.Lock()
	defer mu.Unlock()

	size := int64(len(data))

	// cheap probabilistic pre-check; a positive may lie, a negative
	// guarantees the chunk was never stored
	if s.filter.Contains(d) {
		meta, err := s.meta.Get(d.String())
		switch {
		case err == nil:
			meta.RefCount++
			if err := s.meta.Put(meta); err != nil {
				return PutResult{}, err
			}
			atomic.AddInt64(&s.totalChunks, 1)
			atomic.AddInt64(&s.logicalBytes, size)
			if s.MetricsEnabled() {
				metrics.Inc(metrics.ChunksDeduplicated)
				metrics.Add(metrics.LogicalBytes, size)
			}
			s.l.Debug("duplicate chunk", zap.Stringer("digest", d), zap.Int64("refcount", meta.RefCount))
			return PutResult{Status: StoredDuplicate, Digest: d, RefCount: meta.RefCount}, nil
		case errors.Is(err, metastore.ErrChunkNotFound):
			// filter false positive, fall through to the write path
		default:
			return PutResult{}, err
		}
	}

	if err := s.blobs.Put(ctx, d.String(), bytes.NewReader(data)); err != nil {
		return PutResult{}, err
	}
	if err := s.meta.Put(&model.ChunkMeta{Digest: d.String(), Size: size, RefCount: 1}); err != nil {
		return PutResult{}, err
	}
	// insert only on the path that won the race; the lock makes the pair
	// write+insert atomic with respect to other puts of this digest
	s.filter.Insert(d)

	atomic.AddInt64(&s.totalChunks, 1)
	atomic.AddInt64(&s.uniqueChunks, 1)
	atomic.AddInt64(&s.logicalBytes, size)
	atomic.AddInt64(&s.physicalBytes, size)
	if s.MetricsEnabled() {
		metrics.Inc(metrics.ChunksStored)
		metrics.Add(metrics.LogicalBytes, size)
		metrics.Add(metrics.PhysicalBytes, size)
	}
	s.l.Debug("new chunk", zap.Stringer("digest", d), zap.Int64("bytes", size))

	return PutResult{Status: StoredNew, Digest: d, RefCount: 1, Written: size}, nil
}

// GetChunk returns the stored bytes for a digest. When read verification
// is on, the bytes are re-digested and a mismatch surfaces as ErrCorrupted
// rather than silently returning bad data.
func (s *Store) GetChunk(ctx context.Context, d hasher.Digest) ([]byte, error) {
	key := d.String()
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]byte), nil
	}

	rdr, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	data, err := storage.ReadAll(rdr)
	if err != nil {
		return nil, err
	}

	if s.verifyOnRead {
		computed, err := hasher.Compute(d.Algorithm(), data)
		if err != nil {
			return nil, err
		}
		if computed != d {
			s.l.Warn("stored chunk failed verification", zap.Stringer("digest", d))
			return nil, ErrCorrupted
		}
	}

	s.cache.Add(key, data)
	return data, nil
}

// Release decrements a chunk's reference count. At zero the chunk becomes
// eligible for physical reclamation; the bytes and the accounting row are
// kept, reclamation policy lives outside this store.
func (s *Store) Release(_ context.Context, d hasher.Digest) error {
	mu := s.stripe(d)
	mu.Lock()
	defer mu.Unlock()

	meta, err := s.meta.Get(d.String())
	if err != nil {
		if errors.Is(err, metastore.ErrChunkNotFound) {
			return ErrNotFound
		}
		return err
	}
	if meta.RefCount <= 0 {
		return ErrNegativeRefCount
	}
	meta.RefCount--
	if err := s.meta.Put(meta); err != nil {
		return err
	}
	atomic.AddInt64(&s.totalChunks, -1)
	atomic.AddInt64(&s.logicalBytes, -meta.Size)
	return nil
}

// RefCount reports the current reference count for a digest
func (s *Store) RefCount(d hasher.Digest) (int64, error) {
	meta, err := s.meta.Get(d.String())
	if err != nil {
		if errors.Is(err, metastore.ErrChunkNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return meta.RefCount, nil
}

// RebuildFilter re-seeds the bloom filter from the authoritative chunk
// table. Maintenance only; never on a request's critical path.
func (s *Store) RebuildFilter(_ context.Context) error {
	metas, err := s.meta.List()
	if err != nil {
		return err
	}
	digests := make([]hasher.Digest, 0, len(metas))
	for _, m := range metas {
		d, err := hasher.DigestFromString(m.Digest)
		if err != nil {
			return err
		}
		digests = append(digests, d)
	}
	s.filter.Rebuild(digests)
	s.l.Info("bloom filter rebuilt", zap.Int("digests", len(digests)))
	return nil
}

// Counters is the dedup store's slice of the reporting surface
type Counters struct {
	TotalChunks         int64
	UniqueChunks        int64
	TotalLogicalBytes   int64
	UniquePhysicalBytes int64
	BloomFalsePositives float64
}

// Stats snapshots the aggregate counters
func (s *Store) Stats() Counters {
	return Counters{
		TotalChunks:         atomic.LoadInt64(&s.totalChunks),
		UniqueChunks:        atomic.LoadInt64(&s.uniqueChunks),
		TotalLogicalBytes:   atomic.LoadInt64(&s.logicalBytes),
		UniquePhysicalBytes: atomic.LoadInt64(&s.physicalBytes),
		BloomFalsePositives: s.filter.EstimatedFalsePositiveRate(),
	}
}

// DedupRatio is 1 - (unique stored bytes / total logical bytes), 0 when
// nothing has been stored yet.
func (s *Store) DedupRatio() float64 {
	logical := atomic.LoadInt64(&s.logicalBytes)
	if logical == 0 {
		return 0
	}
	physical := atomic.LoadInt64(&s.physicalBytes)
	return 1 - float64(physical)/float64(logical)
}
