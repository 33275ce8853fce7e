package testutil

import (
	"github.com/stretchr/testify/assert"
)

// TB is the part of testing.TB the assertions use.
type TB interface {
	assert.TestingT
	Helper()
}

// AssertPrimeList asserts that got is exactly the ascending list of primes
// up to n.
func AssertPrimeList(t TB, n uint64, got []uint64) bool {
	t.Helper()

	want := SimplePrimes(n)
	if !assert.Len(t, got, len(want), "prime count up to %d", n) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return assert.Fail(t, "prime list differs",
				"up to %d: element %d is %d, expected %d", n, i, got[i], want[i])
		}
	}
	return true
}
