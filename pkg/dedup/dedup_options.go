package dedup

import (
	"go.uber.org/zap"

	"github.com/vouchfs/vouchfs/pkg/bloom"
	"github.com/vouchfs/vouchfs/pkg/dlogger"
	"github.com/vouchfs/vouchfs/pkg/metastore"
	"github.com/vouchfs/vouchfs/pkg/metastore/mem"
	"github.com/vouchfs/vouchfs/pkg/storage"
	"github.com/vouchfs/vouchfs/pkg/storage/localfs"
)

const (
	// defaultFilterEntries sizes the bloom filter when no filter is
	// injected
	defaultFilterEntries = 100000

	// defaultFilterFPRate is the target false-positive rate of the
	// default filter
	defaultFilterFPRate = 0.01
)

func defaultStore() *Store {
	return &Store{
		blobs:        localfs.New(nil),
		meta:         mem.New().Chunks(),
		l:            dlogger.MustGetLogger(dlogger.LogLevelInfo),
		verifyOnRead: true,
		cacheSize:    defaultCacheChunks,
	}
}

// Option configures the dedup store
type Option func(*Store)

// Backend sets the blob store holding chunk bytes
func Backend(blobs storage.Store) Option {
	return func(s *Store) {
		s.blobs = blobs
	}
}

// ChunkMetadata sets the chunk table used for reference accounting
func ChunkMetadata(meta metastore.ChunkStore) Option {
	return func(s *Store) {
		s.meta = meta
	}
}

// Filter injects a pre-sized bloom filter
func Filter(f *bloom.Filter) Option {
	return func(s *Store) {
		s.filter = f
	}
}

// Logger sets a logger for this store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		s.l = l
	}
}

// CacheChunks sets the read cache capacity in number of chunks
func CacheChunks(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// VerifyOnRead toggles re-digesting chunk bytes on every read
func VerifyOnRead(enabled bool) Option {
	return func(s *Store) {
		s.verifyOnRead = enabled
	}
}

// WithMetrics toggles opencensus counter recording
func WithMetrics(enabled bool) Option {
	return func(s *Store) {
		s.EnableMetrics(enabled)
	}
}

func (s *Store) cacheChunks() int {
	if s.cacheSize < 1 {
		return defaultCacheChunks
	}
	return s.cacheSize
}
