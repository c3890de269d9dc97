package engine

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vouchfs/vouchfs/pkg/chunker"
	"github.com/vouchfs/vouchfs/pkg/commitment"
	"github.com/vouchfs/vouchfs/pkg/dedup"
	"github.com/vouchfs/vouchfs/pkg/dlogger"
	"github.com/vouchfs/vouchfs/pkg/hasher"
	"github.com/vouchfs/vouchfs/pkg/metastore"
	"github.com/vouchfs/vouchfs/pkg/metastore/mem"
	"github.com/vouchfs/vouchfs/pkg/storage/localfs"
)

const (
	defaultRetries = 2
	defaultBackoff = 50 * time.Millisecond
)

// New creates an engine from the given options. With no options it runs
// fully in-memory, which is what the tests use.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		algo:       hasher.SHA256,
		commitAlgo: commitment.DefaultAlgorithm,
		chunkSize:  chunker.DefaultChunkSize,
		stores:     mem.New(),
		l:          dlogger.MustGetLogger(dlogger.LogLevelInfo),
		retries:    defaultRetries,
		backoff:    defaultBackoff,
	}
	for _, apply := range opts {
		apply(e)
	}

	if !e.algo.Valid() {
		return nil, hasher.ErrUnsupportedAlgorithm
	}
	if !e.commitAlgo.Valid() {
		return nil, hasher.ErrUnsupportedAlgorithm
	}
	if e.chunkSize == 0 || e.chunkSize > chunker.MaxChunkSize {
		return nil, fmt.Errorf("invalid chunk size %d", e.chunkSize)
	}

	if e.chunks == nil {
		chunks, err := dedup.New(
			dedup.Backend(localfs.New(afero.NewMemMapFs())),
			dedup.ChunkMetadata(e.stores.Chunks()),
			dedup.Logger(e.l),
		)
		if err != nil {
			return nil, err
		}
		e.chunks = chunks
	}

	return e, nil
}

// Option configures the engine
type Option func(*Engine)

// Dedup injects a configured dedup store
func Dedup(s *dedup.Store) Option {
	return func(e *Engine) {
		e.chunks = s
	}
}

// Metadata sets the metadata store bundle
func Metadata(stores metastore.Stores) Option {
	return func(e *Engine) {
		e.stores = stores
	}
}

// Algorithm sets the digest algorithm used for chunks and Merkle trees
func Algorithm(a hasher.Algorithm) Option {
	return func(e *Engine) {
		e.algo = a
	}
}

// CommitmentAlgorithm sets the digest algorithm used for share commitments
func CommitmentAlgorithm(a hasher.Algorithm) Option {
	return func(e *Engine) {
		e.commitAlgo = a
	}
}

// ChunkSize sets the content block size in bytes
func ChunkSize(size uint32) Option {
	return func(e *Engine) {
		e.chunkSize = size
	}
}

// Logger sets a logger for this engine
func Logger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.l = l
	}
}

// Retries bounds retry attempts on transient persistence failures
func Retries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.retries = n
		}
	}
}

// Backoff sets the fixed sleep between retry attempts
func Backoff(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.backoff = d
		}
	}
}

// WithMetrics toggles opencensus counter recording
func WithMetrics(enabled bool) Option {
	return func(e *Engine) {
		e.EnableMetrics(enabled)
	}
}
