package sieve

import (
	"math"
	"math/bits"

	"github.com/prime-sieve/pkg/collections"
	"github.com/prime-sieve/pkg/wheel"
)

// markTask crosses off the admissible multiples of one prime inside one
// window. A multiple p*k is admissible exactly when k is, so the walk steps
// the cofactor around the wheel and adds p*gap to the multiple.
type markTask struct {
	prime uint64
	start wheel.Cursor // cofactor of the first multiple to mark
	lo    uint64       // window start, compressed index
	hi    uint64       // window end, exclusive
	bits  *collections.AtomicBitset
}

// run marks the multiples and never signals stop.
func (t markTask) run() bool {
	var step [wheel.Spokes]uint64
	for j, g := range wheel.Gaps() {
		step[j] = t.prime * g
	}

	carry, m := bits.Mul64(t.prime, t.start.Value())
	if carry != 0 {
		return false
	}

	j := t.start.Spoke()
	for {
		idx := wheel.Index(m)
		if idx >= t.hi {
			return false
		}
		t.bits.Set(idx - t.lo)

		s := step[j]
		if m > math.MaxUint64-s {
			return false
		}
		m += s
		j = (j + 1) & (wheel.Spokes - 1)
	}
}

// isqrt returns floor(sqrt(n)).
func isqrt(n uint64) uint64 {
	r := uint64(math.Sqrt(float64(n)))
	for r > 0 && r > n/r {
		r--
	}
	for r+1 <= n/(r+1) {
		r++
	}
	return r
}
