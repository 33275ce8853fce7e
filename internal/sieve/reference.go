package sieve

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/wheel"
)

// IsPrime reports whether n is prime by trial division over the wheel.
func IsPrime(n uint64) bool {
	switch {
	case n < 2:
		return false
	case n < 4:
		return true
	case n%2 == 0 || n%3 == 0 || n%5 == 0:
		return n == 5
	}

	c := wheel.At(1)
	for d := c.Value(); d <= n/d; d = c.Value() {
		if n%d == 0 {
			return false
		}
		c, _ = c.Next()
	}
	return true
}

// TrialDivision returns the primes in [lo, hi] by testing each candidate
// independently. It is slow and exists to cross-check the sieve.
func TrialDivision(lo, hi uint64) []uint64 {
	var primes []uint64
	for _, p := range wheelPrimes {
		if p >= lo && p <= hi {
			primes = append(primes, p)
		}
	}
	if hi < 7 {
		return primes
	}

	start := lo
	if start < 7 {
		start = 7
	}
	for c := wheel.CeilCursor(start); c.Value() <= hi; {
		if IsPrime(c.Value()) {
			primes = append(primes, c.Value())
		}
		next, _ := c.Next()
		if next.Value() < c.Value() {
			break
		}
		c = next
	}
	return primes
}

// VerifyReport summarizes a cross-check.
type VerifyReport struct {
	Lo, Hi  uint64
	Checked uint64 // primes in [lo, hi] agreed on
	Chunks  int
}

// Verify sieves [2, hi] and compares the primes in [lo, hi] against trial
// division, split into chunks checked concurrently. The first disagreement
// is returned as a VERIFY_MISMATCH error.
func (e *Engine) Verify(ctx context.Context, lo, hi uint64, chunks int) (*VerifyReport, error) {
	if lo > hi {
		return nil, apperrors.New(apperrors.CodeInvalidBound, fmt.Sprintf("verify range [%d, %d] is empty", lo, hi))
	}
	if chunks < 1 {
		chunks = e.Workers()
	}

	sieved, err := e.GeneratePrimes(ctx, hi)
	if err != nil {
		return nil, err
	}
	from, _ := slices.BinarySearch(sieved, lo)
	sieved = sieved[from:]

	span := (hi - lo) / uint64(chunks)
	if span == 0 {
		span = 1
		chunks = int(hi - lo + 1)
	}

	expected := make([][]uint64, chunks)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Workers())
	for i := 0; i < chunks; i++ {
		cLo := lo + uint64(i)*span
		cHi := cLo + span - 1
		if i == chunks-1 {
			cHi = hi
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			expected[i] = TrialDivision(cLo, cHi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("verify interrupted: %w", err)
	}

	want := slices.Concat(expected...)
	if i, ok := firstDifference(sieved, want); ok {
		var got, exp uint64
		if i < len(sieved) {
			got = sieved[i]
		}
		if i < len(want) {
			exp = want[i]
		}
		return nil, apperrors.New(apperrors.CodeVerifyMismatch,
			fmt.Sprintf("prime #%d in [%d, %d]: sieve has %d, trial division has %d", i, lo, hi, got, exp))
	}

	return &VerifyReport{Lo: lo, Hi: hi, Checked: uint64(len(want)), Chunks: chunks}, nil
}

func firstDifference(a, b []uint64) (int, bool) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i, true
		}
	}
	if len(a) != len(b) {
		return n, true
	}
	return 0, false
}
