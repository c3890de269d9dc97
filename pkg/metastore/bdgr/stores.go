// Package bdgr implements the metadata tables on badger. Rows are
// marshaled with jsoniter; badger sentinel errors are rewritten into the
// metastore's, and anything else surfaces as a PersistenceError.
package bdgr

import (
	"log"
	"os"
	"sync"

	"github.com/dgraph-io/badger"
	jsoniter "github.com/json-iterator/go"

	"github.com/vouchfs/vouchfs/pkg/metastore"
	"github.com/vouchfs/vouchfs/pkg/model"
)

var (
	filePref  = []byte("file:")
	chunkPref = []byte("chunk:")
	sharePref = []byte("share:")
)

// New creates a badger backed metadata store rooted at baseDir
func New(baseDir string) metastore.Stores {
	return &metaStores{baseDir: baseDir}
}

type metaStores struct {
	baseDir string
	db      *badger.DB
	init    sync.Once
	close   sync.Once
}

func (m *metaStores) Initialize() error {
	var err error
	m.init.Do(func() {
		if err = os.MkdirAll(m.baseDir, 0700); err != nil {
			log.Println("mkdir -p", m.baseDir, err)
		}
		bopts := badger.DefaultOptions
		bopts.Dir = m.baseDir
		bopts.ValueDir = m.baseDir

		var db *badger.DB
		db, err = badger.Open(bopts)
		if err != nil {
			return
		}
		m.db = db
	})
	return err
}

func (m *metaStores) Close() error {
	var err error
	m.close.Do(func() {
		if m.db != nil {
			err = m.db.Close()
			if err == nil {
				m.db = nil
			}
		}
	})
	return err
}

func (m *metaStores) Files() metastore.FileStore   { return &fileStore{m} }
func (m *metaStores) Chunks() metastore.ChunkStore { return &chunkStore{m} }
func (m *metaStores) Shares() metastore.ShareStore { return &shareStore{m} }

func rewrite(op string, err error, notFound error) error {
	switch err {
	case nil:
		return nil
	case badger.ErrKeyNotFound:
		return notFound
	case badger.ErrEmptyKey:
		return metastore.ErrIDRequired
	default:
		return &metastore.PersistenceError{Op: op, Err: err}
	}
}

func (m *metaStores) get(op string, key []byte, notFound error, out interface{}) error {
	return m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return rewrite(op, err, notFound)
		}
		data, err := item.Value()
		if err != nil {
			return rewrite(op, err, notFound)
		}
		if err := jsoniter.Unmarshal(data, out); err != nil {
			return &metastore.PersistenceError{Op: op, Err: err}
		}
		return nil
	})
}

func (m *metaStores) set(op string, key []byte, row interface{}) error {
	data, err := jsoniter.Marshal(row)
	if err != nil {
		return &metastore.PersistenceError{Op: op, Err: err}
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return rewrite(op, txn.Set(key, data), nil)
	})
}

// create is set with an existence check inside the same transaction
func (m *metaStores) create(op string, key []byte, row interface{}) error {
	data, err := jsoniter.Marshal(row)
	if err != nil {
		return &metastore.PersistenceError{Op: op, Err: err}
	}
	return m.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return metastore.ErrExists
		}
		if err != badger.ErrKeyNotFound {
			return rewrite(op, err, nil)
		}
		return rewrite(op, txn.Set(key, data), nil)
	})
}

func (m *metaStores) delete(op string, key []byte, notFound error) error {
	return m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return rewrite(op, err, notFound)
		}
		return rewrite(op, txn.Delete(key), notFound)
	})
}

// scan walks all rows under a prefix and hands raw values to collect
func (m *metaStores) scan(op string, pref []byte, collect func(val []byte) error) error {
	return m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(pref); it.ValidForPrefix(pref); it.Next() {
			val, err := it.Item().Value()
			if err != nil {
				return rewrite(op, err, nil)
			}
			if err := collect(val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *metaStores) count(op string, pref []byte) (int64, error) {
	var n int64
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(pref); it.ValidForPrefix(pref); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, rewrite(op, err, nil)
	}
	return n, nil
}

type fileStore struct {
	m *metaStores
}

func fileKey(id string) []byte { return append(filePref[:len(filePref):len(filePref)], id...) }

func (f *fileStore) Get(id string) (*model.FileRecord, error) {
	var rec model.FileRecord
	if err := f.m.get("file get", fileKey(id), metastore.ErrFileNotFound, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (f *fileStore) Create(rec *model.FileRecord) error {
	if rec.ID == "" {
		return metastore.ErrIDRequired
	}
	return f.m.create("file create", fileKey(rec.ID), rec)
}

func (f *fileStore) ListByOwner(owner string) ([]model.FileRecord, error) {
	var out []model.FileRecord
	err := f.m.scan("file list", filePref, func(val []byte) error {
		var rec model.FileRecord
		if err := jsoniter.Unmarshal(val, &rec); err != nil {
			return &metastore.PersistenceError{Op: "file list", Err: err}
		}
		if owner == "" || rec.Owner == owner {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fileStore) Delete(id string) error {
	return f.m.delete("file delete", fileKey(id), metastore.ErrFileNotFound)
}

func (f *fileStore) Count() (int64, error) {
	return f.m.count("file count", filePref)
}

type chunkStore struct {
	m *metaStores
}

func chunkKey(digest string) []byte {
	return append(chunkPref[:len(chunkPref):len(chunkPref)], digest...)
}

func (c *chunkStore) Get(digest string) (*model.ChunkMeta, error) {
	var meta model.ChunkMeta
	if err := c.m.get("chunk get", chunkKey(digest), metastore.ErrChunkNotFound, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *chunkStore) Put(meta *model.ChunkMeta) error {
	if meta.Digest == "" {
		return metastore.ErrIDRequired
	}
	return c.m.set("chunk put", chunkKey(meta.Digest), meta)
}

func (c *chunkStore) Delete(digest string) error {
	return c.m.delete("chunk delete", chunkKey(digest), metastore.ErrChunkNotFound)
}

func (c *chunkStore) List() ([]model.ChunkMeta, error) {
	var out []model.ChunkMeta
	err := c.m.scan("chunk list", chunkPref, func(val []byte) error {
		var meta model.ChunkMeta
		if err := jsoniter.Unmarshal(val, &meta); err != nil {
			return &metastore.PersistenceError{Op: "chunk list", Err: err}
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type shareStore struct {
	m *metaStores
}

func shareKey(id string) []byte {
	return append(sharePref[:len(sharePref):len(sharePref)], id...)
}

func (s *shareStore) Get(id string) (*model.ShareRecord, error) {
	var rec model.ShareRecord
	if err := s.m.get("share get", shareKey(id), metastore.ErrShareNotFound, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *shareStore) Create(rec *model.ShareRecord) error {
	if rec.ID == "" {
		return metastore.ErrIDRequired
	}
	return s.m.create("share create", shareKey(rec.ID), rec)
}

func (s *shareStore) Update(rec *model.ShareRecord) error {
	if rec.ID == "" {
		return metastore.ErrIDRequired
	}
	// the row must exist: updates only ever mark revocation or expiry
	return s.m.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(shareKey(rec.ID)); err != nil {
			return rewrite("share update", err, metastore.ErrShareNotFound)
		}
		data, err := jsoniter.Marshal(rec)
		if err != nil {
			return &metastore.PersistenceError{Op: "share update", Err: err}
		}
		return rewrite("share update", txn.Set(shareKey(rec.ID), data), nil)
	})
}

func (s *shareStore) ListByRecipient(recipient string) ([]model.ShareRecord, error) {
	var out []model.ShareRecord
	err := s.m.scan("share list", sharePref, func(val []byte) error {
		var rec model.ShareRecord
		if err := jsoniter.Unmarshal(val, &rec); err != nil {
			return &metastore.PersistenceError{Op: "share list", Err: err}
		}
		if recipient == "" || rec.Recipient == recipient {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *shareStore) Count() (int64, error) {
	return s.m.count("share count", sharePref)
}
