// Package bloom maintains the probabilistic membership index over known
// content digests. It fast-rejects "definitely new" content ahead of the
// exact lookup in the dedup store.
//
// The filter is monotonic: digests are only ever inserted, never removed,
// so a digest that was inserted is always reported present (no false
// negatives). False positives are possible and absorbed by the exact check
// downstream. The only way to shed accumulated entries is an explicit
// Rebuild from the authoritative digest set, a maintenance operation that
// is never on a request path.
package bloom

import (
	"fmt"
	"math"
	"sync"

	"github.com/AndreasBriese/bbloom"

	"github.com/vouchfs/vouchfs/pkg/hasher"
)

// Filter wraps a bbloom bit set sized from an expected element count and a
// target false-positive rate:
//
//	m = -n·ln(p) / (ln 2)²    bits
//	k = (m/n)·ln 2            hash locations
//
// both rounded up and clamped to at least 1. bbloom rounds the bit count up
// to a power of two (512 minimum); the reported estimate accounts for the
// rounded size actually in use.
type Filter struct {
	mtx      sync.RWMutex
	bits     bbloom.Bloom
	m        uint64 // actual bit count after bbloom rounding
	k        uint64
	inserted uint64 // distinct digests inserted, guarded by mtx
}

// New creates a filter sized for n expected digests at false-positive rate p
func New(n uint64, p float64) (*Filter, error) {
	if n == 0 {
		return nil, fmt.Errorf("expected element count must be positive")
	}
	if p <= 0 || p >= 1 {
		return nil, fmt.Errorf("false positive rate must be in (0, 1), got %g", p)
	}

	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m < 1 {
		m = 1
	}
	k := uint64(math.Ceil(float64(m) / float64(n) * ln2))
	if k < 1 {
		k = 1
	}

	return &Filter{
		bits: bbloom.New(float64(m), float64(k)),
		m:    roundedSize(m),
		k:    k,
	}, nil
}

// bbloom rounds the requested bit count up to a power of two, 512 minimum.
// Mirror that here so the fill-ratio estimate matches the actual bit set.
func roundedSize(m uint64) uint64 {
	size := uint64(512)
	for size < m {
		size <<= 1
	}
	return size
}

// Insert records a digest. Idempotent: re-inserting an already present
// digest leaves both the bit set and the element count unchanged.
func (f *Filter) Insert(d hasher.Digest) {
	key := []byte(d.String())

	f.mtx.Lock()
	if f.bits.AddIfNotHas(key) {
		f.inserted++
	}
	f.mtx.Unlock()
}

// Contains reports whether a digest may have been inserted. A false result
// guarantees the digest was never inserted; a true result may be a false
// positive.
func (f *Filter) Contains(d hasher.Digest) bool {
	key := []byte(d.String())

	f.mtx.RLock()
	ok := f.bits.Has(key)
	f.mtx.RUnlock()
	return ok
}

// Count returns the number of distinct digests inserted so far
func (f *Filter) Count() uint64 {
	f.mtx.RLock()
	n := f.inserted
	f.mtx.RUnlock()
	return n
}

// EstimatedFalsePositiveRate computes (1 - e^(-k·n/m))^k from the current
// fill. Used for reporting only, never for correctness decisions.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	n := float64(f.Count())
	if n == 0 {
		return 0
	}
	k, m := float64(f.k), float64(f.m)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// Rebuild resets the filter and re-seeds it from the authoritative digest
// set. Lookups block for the duration; callers run this as maintenance,
// not on a request path.
func (f *Filter) Rebuild(digests []hasher.Digest) {
	f.mtx.Lock()
	f.bits.Clear()
	f.inserted = 0
	for _, d := range digests {
		if f.bits.AddIfNotHas([]byte(d.String())) {
			f.inserted++
		}
	}
	f.mtx.Unlock()
}
