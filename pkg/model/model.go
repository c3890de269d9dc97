// Package model holds the persisted record types shared by the metadata
// store and the engine. Digests are carried in their tagged string form
// ("<algo>:<hex>") so that records marshal cleanly and keys stay readable.
package model

import (
	"time"

	"github.com/vouchfs/vouchfs/pkg/hasher"
)

// FileRecord describes one logical file. The Merkle root digest is the
// canonical identity of the file content and keys the file table: two
// uploads of identical content resolve to the same record.
type FileRecord struct {
	ID        string    `json:"id"`        // root digest string
	Owner     string    `json:"owner"`     // opaque identity token from the auth boundary
	Root      string    `json:"root"`      // merkle root over the chunk digests
	Size      int64     `json:"size"`      // total logical bytes
	Chunks    []string  `json:"chunks"`    // ordered chunk digest strings
	CreatedAt time.Time `json:"createdAt"` // UTC
}

// RootDigest parses the stored root back into a tagged digest
func (f *FileRecord) RootDigest() (hasher.Digest, error) {
	return hasher.DigestFromString(f.Root)
}

// ChunkDigests parses the ordered chunk digest list
func (f *FileRecord) ChunkDigests() ([]hasher.Digest, error) {
	out := make([]hasher.Digest, len(f.Chunks))
	for i, s := range f.Chunks {
		d, err := hasher.DigestFromString(s)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// ChunkMeta is the chunk table row: reference accounting for one stored
// chunk. RefCount is only ever mutated by the dedup store.
type ChunkMeta struct {
	Digest   string `json:"digest"`
	Size     int64  `json:"size"`
	RefCount int64  `json:"refCount"`
}

// ShareRecord captures one share event. The commitment binds the sharer to
// the file's root digest; the opening stays with the sharer and is never
// persisted here. Records are mutated only to mark revocation, never to
// change the committed value.
type ShareRecord struct {
	ID         string     `json:"id"`
	FileID     string     `json:"fileId"`
	Sharer     string     `json:"sharer"`
	Recipient  string     `json:"recipient"`
	Commitment string     `json:"commitment"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Revoked    bool       `json:"revoked,omitempty"`
}

// Expired reports whether the share has passed its expiry at the given time
func (s *ShareRecord) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// Stats is the aggregate reporting surface: raw counters for an external
// dashboard to render. The core computes, it does not format.
type Stats struct {
	TotalFiles          int64   `json:"totalFiles"`
	TotalShares         int64   `json:"totalShares"`
	TotalChunks         int64   `json:"totalChunks"`  // logical chunk references
	UniqueChunks        int64   `json:"uniqueChunks"` // physically stored chunks
	TotalLogicalBytes   int64   `json:"totalLogicalBytes"`
	UniquePhysicalBytes int64   `json:"uniquePhysicalBytes"`
	DedupRatio          float64 `json:"dedupRatio"` // 1 - physical/logical
	BloomFalsePositives float64 `json:"bloomFalsePositiveEstimate"`
}
