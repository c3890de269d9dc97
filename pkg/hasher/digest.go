package hasher

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxDigestSize is the largest digest length among the supported algorithms
const MaxDigestSize = 64

// Digest is an algorithm-tagged hash value.
//
// Digest is a comparable value type: two digests are equal if and only if
// both the algorithm tag and every value byte match. Digests computed under
// different algorithms are never interchangeable, even when their byte
// values happen to coincide.
type Digest struct {
	algo  Algorithm
	value [MaxDigestSize]byte // first algo.Size() bytes are significant, rest zero
}

func newDigest(a Algorithm, sum []byte) Digest {
	d := Digest{algo: a}
	copy(d.value[:], sum)
	return d
}

// NewDigest builds a digest from a raw hash value of exactly the length
// mandated by the algorithm.
func NewDigest(a Algorithm, raw []byte) (Digest, error) {
	if !a.Valid() {
		return Digest{}, ErrUnsupportedAlgorithm
	}
	if len(raw) != a.Size() {
		return Digest{}, &BadDigestSize{Algo: a, Raw: raw}
	}
	return newDigest(a, raw), nil
}

// MustNewDigest builds a digest from a raw hash value or panics
func MustNewDigest(a Algorithm, raw []byte) Digest {
	d, err := NewDigest(a, raw)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// Algorithm returns the tag of this digest
func (d Digest) Algorithm() Algorithm {
	return d.algo
}

// Bytes returns a copy of the significant digest bytes
func (d Digest) Bytes() []byte {
	out := make([]byte, d.algo.Size())
	copy(out, d.value[:])
	return out
}

// IsZero reports whether d is the zero digest (no algorithm tag)
func (d Digest) IsZero() bool {
	return d.algo == 0
}

// String renders the digest in its storage-key form: "<algo>:<hex>"
func (d Digest) String() string {
	return d.algo.String() + ":" + hex.EncodeToString(d.value[:d.algo.Size()])
}

// DigestFromString parses the "<algo>:<hex>" storage-key form
func DigestFromString(s string) (Digest, error) {
	tag, h, found := strings.Cut(s, ":")
	if !found {
		return Digest{}, fmt.Errorf("digest %q: missing algorithm tag", s)
	}
	a, err := ParseAlgorithm(tag)
	if err != nil {
		return Digest{}, err
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return Digest{}, fmt.Errorf("digest %q: %v", s, err)
	}
	return NewDigest(a, raw)
}

// BadDigestSize is returned when a raw hash value does not have the length
// mandated by its algorithm tag.
type BadDigestSize struct {
	Algo Algorithm
	Raw  []byte
}

func (b *BadDigestSize) Error() string {
	return fmt.Sprintf("%x has invalid size %d for %s, expected %d",
		b.Raw, len(b.Raw), b.Algo, b.Algo.Size())
}
