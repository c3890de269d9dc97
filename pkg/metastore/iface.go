// Package metastore defines the persistence boundary of the engine: the
// file, chunk and share tables. The engine treats implementations as
// durable, strongly consistent and synchronous. Sentinel errors signal
// absent rows; any other failure is wrapped as a PersistenceError and is
// eligible for caller-level retry.
package metastore

import (
	"fmt"

	"github.com/vouchfs/vouchfs/pkg/model"
)

type errorString string

func (e errorString) Error() string { return string(e) }

const (
	// ErrFileNotFound when a file id has no record
	ErrFileNotFound errorString = "file not found"

	// ErrChunkNotFound when a chunk digest has no accounting row
	ErrChunkNotFound errorString = "chunk not found"

	// ErrShareNotFound when a share id has no record
	ErrShareNotFound errorString = "share not found"

	// ErrExists when a record is expected to not exist yet
	ErrExists errorString = "record already exists"

	// ErrIDRequired when a record is missing its key
	ErrIDRequired errorString = "id is required"
)

// PersistenceError wraps a backend failure. Not-found conditions are never
// wrapped this way; only genuine collaborator failures are.
type PersistenceError struct {
	Op  string
	Err error
}

func (p *PersistenceError) Error() string {
	return fmt.Sprintf("metastore %s: %v", p.Op, p.Err)
}

func (p *PersistenceError) Unwrap() error { return p.Err }

// A FileStore manages the file table, keyed by file id (the root digest
// string).
type FileStore interface {
	Get(id string) (*model.FileRecord, error)
	Create(*model.FileRecord) error
	ListByOwner(owner string) ([]model.FileRecord, error)
	Delete(id string) error
	Count() (int64, error)
}

// A ChunkStore manages the chunk table: per-digest reference accounting.
// Rows are upserted by the dedup store only.
type ChunkStore interface {
	Get(digest string) (*model.ChunkMeta, error)
	Put(*model.ChunkMeta) error
	Delete(digest string) error
	List() ([]model.ChunkMeta, error)
}

// A ShareStore manages the share table, keyed by share id
type ShareStore interface {
	Get(id string) (*model.ShareRecord, error)
	Create(*model.ShareRecord) error
	Update(*model.ShareRecord) error
	ListByRecipient(recipient string) ([]model.ShareRecord, error)
	Count() (int64, error)
}

// Stores bundles the three tables behind one lifecycle
type Stores interface {
	Initialize() error
	Close() error

	Files() FileStore
	Chunks() ChunkStore
	Shares() ShareStore
}
