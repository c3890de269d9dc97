package engine

import "fmt"

type errString string

func (e errString) Error() string { return string(e) }

const (
	// ErrIntegrityViolation is returned when recomputed digests no longer
	// match the stored authority. Never silently tolerated.
	ErrIntegrityViolation errString = "integrity violation"

	// ErrCommitmentMismatch is returned when a reveal fails commitment
	// verification. Treated as an authentication failure for the share
	// workflow.
	ErrCommitmentMismatch errString = "commitment does not match revealed value"

	// ErrNotOwner is returned when an identity token does not match the
	// record owner
	ErrNotOwner errString = "identity is not the owner"

	// ErrShareExpired is returned when a share is past its expiry
	ErrShareExpired errString = "share expired"

	// ErrShareRevoked is returned when a share was revoked by the sharer
	ErrShareRevoked errString = "share revoked"
)

// IntegrityError pinpoints which chunk failed verification. ChunkIndex is
// -1 when the mismatch is at the root rather than a single chunk.
type IntegrityError struct {
	FileID     string
	ChunkIndex int
}

func (e *IntegrityError) Error() string {
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("file %s: merkle root mismatch", e.FileID)
	}
	return fmt.Sprintf("file %s: chunk %d failed verification", e.FileID, e.ChunkIndex)
}

// Is makes errors.Is(err, ErrIntegrityViolation) hold for IntegrityErrors
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityViolation
}
