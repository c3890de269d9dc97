package commitment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vouchfs/vouchfs/internal/rand"
	"github.com/vouchfs/vouchfs/pkg/hasher"
)

func TestCommit_VerifyRoundTrip(t *testing.T) {
	value := rand.Bytes(64)

	for _, algo := range []hasher.Algorithm{hasher.SHA256, hasher.SHA512, hasher.SHA3_256, hasher.SHA3_512} {
		c, opening, err := Commit(algo, value)
		require.NoError(t, err)
		require.Len(t, []byte(opening), NonceSize)
		require.True(t, Verify(c, value, opening))
	}
}

func TestVerify_DifferentValueFails(t *testing.T) {
	valueA := rand.Bytes(64)
	valueB := rand.Bytes(64)

	c, opening, err := Commit(DefaultAlgorithm, valueA)
	require.NoError(t, err)
	require.False(t, Verify(c, valueB, opening))
}

func TestVerify_DifferentOpeningFails(t *testing.T) {
	value := rand.Bytes(64)

	c, _, err := Commit(DefaultAlgorithm, value)
	require.NoError(t, err)
	_, otherOpening, err := Commit(DefaultAlgorithm, value)
	require.NoError(t, err)

	require.False(t, Verify(c, value, otherOpening))
}

func TestVerify_MalformedOpeningFails(t *testing.T) {
	value := rand.Bytes(64)

	c, opening, err := Commit(DefaultAlgorithm, value)
	require.NoError(t, err)

	require.False(t, Verify(c, value, opening[:NonceSize-1]))
	require.False(t, Verify(c, value, nil))
}

func TestCommit_FreshNoncePerCall(t *testing.T) {
	// committing twice to the same value must not produce the same
	// commitment, otherwise the scheme would leak value equality
	value := rand.Bytes(64)

	c1, o1, err := Commit(DefaultAlgorithm, value)
	require.NoError(t, err)
	c2, o2, err := Commit(DefaultAlgorithm, value)
	require.NoError(t, err)

	require.NotEqual(t, c1, c2)
	require.NotEqual(t, o1, o2)
}

func TestCommit_UnsupportedAlgorithm(t *testing.T) {
	_, _, err := Commit(hasher.Algorithm(77), []byte("v"))
	require.ErrorIs(t, err, hasher.ErrUnsupportedAlgorithm)
}

func TestCommitment_StringRoundTrip(t *testing.T) {
	c, _, err := Commit(DefaultAlgorithm, rand.Bytes(32))
	require.NoError(t, err)

	parsed, err := FromString(c.String())
	require.NoError(t, err)
	require.Equal(t, c, parsed)
}
