// Package mem implements the metadata tables in process memory. It backs
// tests and ephemeral runs; durability comes from the badger
// implementation.
package mem

import (
	"sync"

	"github.com/vouchfs/vouchfs/pkg/metastore"
	"github.com/vouchfs/vouchfs/pkg/model"
)

// New creates an empty in-memory metadata store
func New() metastore.Stores {
	return &memStores{
		files:  make(map[string]model.FileRecord),
		chunks: make(map[string]model.ChunkMeta),
		shares: make(map[string]model.ShareRecord),
	}
}

type memStores struct {
	mu     sync.RWMutex
	files  map[string]model.FileRecord
	chunks map[string]model.ChunkMeta
	shares map[string]model.ShareRecord
}

func (m *memStores) Initialize() error { return nil }
func (m *memStores) Close() error      { return nil }

func (m *memStores) Files() metastore.FileStore   { return &fileStore{m} }
func (m *memStores) Chunks() metastore.ChunkStore { return &chunkStore{m} }
func (m *memStores) Shares() metastore.ShareStore { return &shareStore{m} }

type fileStore struct {
	m *memStores
}

func (f *fileStore) Get(id string) (*model.FileRecord, error) {
	f.m.mu.RLock()
	defer f.m.mu.RUnlock()
	rec, ok := f.m.files[id]
	if !ok {
		return nil, metastore.ErrFileNotFound
	}
	return &rec, nil
}

func (f *fileStore) Create(rec *model.FileRecord) error {
	if rec.ID == "" {
		return metastore.ErrIDRequired
	}
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.files[rec.ID]; ok {
		return metastore.ErrExists
	}
	f.m.files[rec.ID] = *rec
	return nil
}

func (f *fileStore) ListByOwner(owner string) ([]model.FileRecord, error) {
	f.m.mu.RLock()
	defer f.m.mu.RUnlock()
	var out []model.FileRecord
	for _, rec := range f.m.files {
		if owner == "" || rec.Owner == owner {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fileStore) Delete(id string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	if _, ok := f.m.files[id]; !ok {
		return metastore.ErrFileNotFound
	}
	delete(f.m.files, id)
	return nil
}

func (f *fileStore) Count() (int64, error) {
	f.m.mu.RLock()
	defer f.m.mu.RUnlock()
	return int64(len(f.m.files)), nil
}

type chunkStore struct {
	m *memStores
}

func (c *chunkStore) Get(digest string) (*model.ChunkMeta, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	meta, ok := c.m.chunks[digest]
	if !ok {
		return nil, metastore.ErrChunkNotFound
	}
	return &meta, nil
}

func (c *chunkStore) Put(meta *model.ChunkMeta) error {
	if meta.Digest == "" {
		return metastore.ErrIDRequired
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.chunks[meta.Digest] = *meta
	return nil
}

func (c *chunkStore) Delete(digest string) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, ok := c.m.chunks[digest]; !ok {
		return metastore.ErrChunkNotFound
	}
	delete(c.m.chunks, digest)
	return nil
}

func (c *chunkStore) List() ([]model.ChunkMeta, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	out := make([]model.ChunkMeta, 0, len(c.m.chunks))
	for _, meta := range c.m.chunks {
		out = append(out, meta)
	}
	return out, nil
}

type shareStore struct {
	m *memStores
}

func (s *shareStore) Get(id string) (*model.ShareRecord, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	rec, ok := s.m.shares[id]
	if !ok {
		return nil, metastore.ErrShareNotFound
	}
	return &rec, nil
}

func (s *shareStore) Create(rec *model.ShareRecord) error {
	if rec.ID == "" {
		return metastore.ErrIDRequired
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.shares[rec.ID]; ok {
		return metastore.ErrExists
	}
	s.m.shares[rec.ID] = *rec
	return nil
}

func (s *shareStore) Update(rec *model.ShareRecord) error {
	if rec.ID == "" {
		return metastore.ErrIDRequired
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.shares[rec.ID]; !ok {
		return metastore.ErrShareNotFound
	}
	s.m.shares[rec.ID] = *rec
	return nil
}

func (s *shareStore) ListByRecipient(recipient string) ([]model.ShareRecord, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.ShareRecord
	for _, rec := range s.m.shares {
		if recipient == "" || rec.Recipient == recipient {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *shareStore) Count() (int64, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return int64(len(s.m.shares)), nil
}
