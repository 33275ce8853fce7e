package collections

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// ============================================================================
// AtomicBitset - Fixed-size bitset with lock-free concurrent Set
// ============================================================================

// AtomicBitset is a fixed-size bitset whose bits can only be set, never
// cleared, while shared. Concurrent Set calls on the same word are combined
// with an atomic OR, so duplicate writes of the same bit are harmless and no
// lock is taken on the hot path.
//
// Memory for 1M elements is ~128KB, 8x smaller than []bool.
type AtomicBitset struct {
	words []atomic.Uint64
	size  uint64
}

// NewAtomicBitset creates a bitset holding size bits, all clear.
func NewAtomicBitset(size uint64) *AtomicBitset {
	return &AtomicBitset{
		words: make([]atomic.Uint64, (size+63)/64),
		size:  size,
	}
}

// Size returns the number of addressable bits.
func (b *AtomicBitset) Size() uint64 {
	return b.size
}

// Set atomically sets bit i. Setting a bit outside the allocation is a
// sizing defect in the caller and panics with an INDEX_OVERFLOW AppError.
func (b *AtomicBitset) Set(i uint64) {
	if i >= b.size {
		panic(apperrors.New(apperrors.CodeIndexOverflow,
			fmt.Sprintf("bit %d outside bitset of size %d", i, b.size)))
	}
	b.words[i/64].Or(1 << (i % 64))
}

// Test returns true if bit i is set. Out-of-range bits read as clear.
func (b *AtomicBitset) Test(i uint64) bool {
	if i >= b.size {
		return false
	}
	return b.words[i/64].Load()&(1<<(i%64)) != 0
}

// Count returns the number of set bits (population count).
func (b *AtomicBitset) Count() uint64 {
	var count uint64
	for i := range b.words {
		count += uint64(bits.OnesCount64(b.words[i].Load()))
	}
	return count
}

// CountClear returns the number of clear bits in [from, Size()).
func (b *AtomicBitset) CountClear(from uint64) uint64 {
	if from >= b.size {
		return 0
	}
	var set uint64
	for w := from / 64; w < uint64(len(b.words)); w++ {
		word := b.words[w].Load()
		if w == from/64 {
			word &^= (1 << (from % 64)) - 1
		}
		set += uint64(bits.OnesCount64(word))
	}
	return b.size - from - set
}

// IterateSet calls fn for each set bit in ascending order until fn returns false.
func (b *AtomicBitset) IterateSet(fn func(i uint64) bool) {
	for w := range b.words {
		word := b.words[w].Load()
		base := uint64(w) * 64
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			if !fn(base + uint64(tz)) {
				return
			}
			word &= word - 1
		}
	}
}

// IterateClear calls fn for each clear bit in [from, Size()) in ascending
// order until fn returns false.
func (b *AtomicBitset) IterateClear(from uint64, fn func(i uint64) bool) {
	if from >= b.size {
		return
	}
	for w := from / 64; w < uint64(len(b.words)); w++ {
		word := ^b.words[w].Load()
		base := w * 64
		if w == from/64 {
			// Hide bits below from.
			word &^= (1 << (from % 64)) - 1
		}
		if rem := b.size - base; rem < 64 {
			// Hide padding bits past size.
			word &= (1 << rem) - 1
		}
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			if !fn(base + uint64(tz)) {
				return
			}
			word &= word - 1
		}
	}
}
