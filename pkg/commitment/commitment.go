// Package commitment implements a binding and hiding commitment over a
// byte value, used to let a sharer commit to a file identity before the
// recipient can see it and reveal it later for verification.
//
// The construction is commitment = digest(nonce ‖ value) with a fresh
// 32-byte nonce drawn from crypto/rand. The nonce is the opening: the
// committer keeps it private until reveal. Hiding degrades for guessable
// low-entropy values, since an attacker holding the commitment can try
// candidate values once the nonce leaks; callers committing to anything
// but high-entropy digests should be aware of that limitation.
package commitment

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/vouchfs/vouchfs/pkg/hasher"
)

// NonceSize is the length of the random opening in bytes
const NonceSize = 32

// DefaultAlgorithm is the digest algorithm used unless a caller picks
// another supported one.
const DefaultAlgorithm = hasher.SHA3_256

// Commitment is the public half of a commit operation. It is safe to hand
// to the counterparty: the committed value is not learnable from it alone.
type Commitment struct {
	Digest hasher.Digest `json:"digest"`
}

// Opening is the secret half: the nonce that, together with the value,
// reproduces the commitment. Single use; never reuse an opening for a
// different value.
type Opening []byte

// Commit binds a fresh random opening to the given value
func Commit(algo hasher.Algorithm, value []byte) (Commitment, Opening, error) {
	if !algo.Valid() {
		return Commitment{}, nil, hasher.ErrUnsupportedAlgorithm
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Commitment{}, nil, fmt.Errorf("drawing commitment nonce: %v", err)
	}

	d, err := hasher.Compute(algo, append(nonce, value...))
	if err != nil {
		return Commitment{}, nil, err
	}
	return Commitment{Digest: d}, nonce, nil
}

// Verify reports whether value and opening reproduce the commitment.
// The digest comparison is constant-time so that verification leaks no
// early-exit timing signal tied to the secret material.
func Verify(c Commitment, value []byte, opening Opening) bool {
	algo := c.Digest.Algorithm()
	if !algo.Valid() || len(opening) != NonceSize {
		return false
	}

	computed, err := hasher.Compute(algo, append(append([]byte{}, opening...), value...))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(computed.Bytes(), c.Digest.Bytes()) == 1
}

// String renders the commitment in its storage form
func (c Commitment) String() string {
	return c.Digest.String()
}

// FromString parses a commitment from its storage form
func FromString(s string) (Commitment, error) {
	d, err := hasher.DigestFromString(s)
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{Digest: d}, nil
}
