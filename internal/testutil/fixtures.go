// Package testutil provides prime fixtures shared by the sieve tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// PrimeCounts maps a bound to the number of primes not above it.
var PrimeCounts = map[uint64]uint64{
	10:            4,
	100:           25,
	1_000:         168,
	10_000:        1_229,
	100_000:       9_592,
	1_000_000:     78_498,
	10_000_000:    664_579,
	100_000_000:   5_761_455,
	1_000_000_000: 50_847_534,
}

// SimplePrimes returns the primes up to n with a plain single-threaded
// byte-per-number sieve.
func SimplePrimes(n uint64) []uint64 {
	if n < 2 {
		return []uint64{}
	}
	composite := make([]bool, n+1)
	primes := make([]uint64, 0, 64)
	for i := uint64(2); i <= n; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, i)
		for j := i * i; j <= n; j += i {
			composite[j] = true
		}
	}
	return primes
}

// WriteFile writes content to a file in the given directory.
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
