// Package wheel implements mod-30 wheel factorization: a bijection between the
// integers coprime to 30 and a dense 0-based index space, plus a rolling cursor
// that enumerates those integers without any divisibility checks.
//
// Index 0 is the value 1, index 1 is 7, index 2 is 11 and so on. Eight of every
// thirty integers survive the wheel, so a bitmap over compressed indices needs
// 4/15 of the bits a plain sieve would.
package wheel

// Modulus is the wheel circumference (2 * 3 * 5).
const Modulus = 30

// Spokes is the number of admissible residues per turn of the wheel.
const Spokes = 8

// residues are the admissible residues mod 30 in ascending order.
var residues = [Spokes]uint64{1, 7, 11, 13, 17, 19, 23, 29}

// gaps[j] is the distance from residues[j] to the next admissible value.
var gaps = [Spokes]uint64{6, 4, 2, 4, 2, 4, 6, 2}

// notAdmissible marks residues that are divisible by 2, 3 or 5.
const notAdmissible = 0xff

var (
	// rank[r] is the position of residue r in residues, or notAdmissible.
	rank [Modulus]uint8
	// ceilPos[r] is the position of the smallest admissible residue >= r.
	ceilPos [Modulus]uint8
	// countTo[r] is the number of admissible residues <= r.
	countTo [Modulus]uint8
)

func init() {
	for r := range rank {
		rank[r] = notAdmissible
	}
	for j, r := range residues {
		rank[r] = uint8(j)
	}

	j := 0
	var seen uint8
	for r := 0; r < Modulus; r++ {
		for residues[j] < uint64(r) {
			j++
		}
		ceilPos[r] = uint8(j)
		if rank[r] != notAdmissible {
			seen++
		}
		countTo[r] = seen
	}
}

// Admissible reports whether v is coprime to 30.
func Admissible(v uint64) bool {
	return rank[v%Modulus] != notAdmissible
}

// Index returns the compressed index of v.
// v must be admissible; the result for any other value is meaningless.
func Index(v uint64) uint64 {
	return Spokes*(v/Modulus) + uint64(rank[v%Modulus])
}

// Value returns the admissible integer at compressed index i. It is the exact
// inverse of Index.
func Value(i uint64) uint64 {
	return Modulus*(i/Spokes) + residues[i%Spokes]
}

// CountUpTo returns how many admissible integers lie in [1, n]. It is the
// number of bitmap cells needed to cover every candidate up to n.
func CountUpTo(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return Spokes*(n/Modulus) + uint64(countTo[n%Modulus])
}

// Gaps returns the additive increments between consecutive admissible
// residues, starting from residue 1. Multiplying each gap by a prime p gives
// the per-prime offset table used to walk p's admissible multiples.
func Gaps() [Spokes]uint64 {
	return gaps
}

// Residues returns the admissible residues mod 30.
func Residues() [Spokes]uint64 {
	return residues
}

// Cursor is a position on the wheel: an admissible value together with its
// spoke, so that the next gap can be looked up instead of recomputed.
type Cursor struct {
	value uint64
	pos   uint8
}

// Start returns a cursor positioned at 1, the first admissible integer.
func Start() Cursor {
	return Cursor{value: 1}
}

// At returns a cursor positioned at compressed index i.
func At(i uint64) Cursor {
	return Cursor{value: Value(i), pos: uint8(i % Spokes)}
}

// CeilCursor returns a cursor positioned at the smallest admissible value >= k.
func CeilCursor(k uint64) Cursor {
	r := k % Modulus
	pos := ceilPos[r]
	return Cursor{value: k - r + residues[pos], pos: pos}
}

// Value returns the admissible integer the cursor points at.
func (c Cursor) Value() uint64 {
	return c.value
}

// Spoke returns the cursor's position within the current wheel turn (0..7).
func (c Cursor) Spoke() int {
	return int(c.pos)
}

// Next advances to the next admissible integer and returns the new cursor with
// the increment that was applied.
func (c Cursor) Next() (Cursor, uint64) {
	inc := gaps[c.pos]
	return Cursor{value: c.value + inc, pos: (c.pos + 1) & (Spokes - 1)}, inc
}
