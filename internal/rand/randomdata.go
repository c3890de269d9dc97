// Package rand generates pseudo-random test payloads. Not for anything
// security sensitive: commitment nonces come from crypto/rand, not from
// this package.
package rand

import (
	"math/rand"
	"sync"
	"time"
)

var (
	once      sync.Once
	rgen      *rand.Rand
	randMutex sync.Mutex
)

func seed() {
	rgen = rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec
}

// Bytes returns a random slice of n bytes
func Bytes(n int) []byte {
	once.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

// LetterString returns a random string over [a-z0-9]
func LetterString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	once.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	for i := range buf {
		buf[i] = letters[rgen.Intn(len(letters))]
	}
	randMutex.Unlock()
	return string(buf)
}
