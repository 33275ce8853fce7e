package sieve

import (
	"context"
	"fmt"
	"sort"

	"github.com/prime-sieve/pkg/collections"
	"github.com/prime-sieve/pkg/wheel"
)

// segmented sieves [2, n] for n above the window size. The first window
// [0, W] is sieved by core and supplies the initial base primes; the rest of
// the range is covered by windows of CountUpTo(W) compressed indices, each
// with its own bitmap.
func (r *run) segmented(ctx context.Context, n uint64) (*Result, error) {
	opts := r.engine.opts
	w := opts.windowSize
	root := isqrt(n)

	pt := opts.timer.Start("seed")
	seed, _, err := r.core(ctx, w, true)
	pt.Stop()
	if err != nil {
		return nil, err
	}
	r.stats.Windows = 1

	// In generate mode the growing result list doubles as the base prime
	// list: every prime needed by a window is below the window start, so it
	// has been harvested already. In count mode only primes <= sqrt(n) are
	// kept.
	primes := seed
	count := uint64(len(seed))
	if !r.collect {
		cut := sort.Search(len(seed), func(i int) bool { return seed[i] > root })
		primes = seed[:cut:cut]
	}

	width := wheel.CountUpTo(w)
	total := wheel.CountUpTo(n)
	for lo := width; lo < total; lo += width {
		hi := lo + width
		if hi > total || hi < lo {
			hi = total
		}

		wt := opts.timer.Start("window")
		bits, err := r.window(ctx, lo, hi, primes)
		wt.Stop()
		if err != nil {
			return nil, err
		}
		r.stats.Windows++

		ht := opts.timer.Start("harvest")
		switch {
		case r.collect:
			bits.IterateClear(0, func(i uint64) bool {
				primes = append(primes, wheel.Value(lo+i))
				return true
			})
		default:
			count += bits.CountClear(0)
			if wheel.Value(lo) <= root {
				bits.IterateClear(0, func(i uint64) bool {
					v := wheel.Value(lo + i)
					if v > root {
						return false
					}
					primes = append(primes, v)
					return true
				})
			}
		}
		ht.Stop()

		if hi == total {
			break
		}
	}

	res := &Result{Stats: r.stats}
	if r.collect {
		res.Primes = primes
		res.Count = uint64(len(primes))
	} else {
		res.Count = count
	}
	return res, nil
}

// window marks the composites in compressed indices [lo, hi) and returns the
// finished bitmap, local to the window.
func (r *run) window(ctx context.Context, lo, hi uint64, base []uint64) (*collections.AtomicBitset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sieve interrupted before window %d: %w", r.stats.Windows, err)
	}

	bits := collections.NewAtomicBitset(hi - lo)
	start := wheel.Value(lo)
	top := wheel.Value(hi - 1)

	used := 0
	for _, p := range base {
		if p < 7 {
			continue
		}
		if p > top/p {
			break
		}
		first := p * p
		if first < start {
			first = start
		}
		k := first / p
		if first%p != 0 {
			k++
		}
		if err := r.dispatch(ctx, markTask{prime: p, start: wheel.CeilCursor(k), lo: lo, hi: hi, bits: bits}); err != nil {
			return nil, err
		}
		used++
	}
	if err := r.barrier(ctx); err != nil {
		return nil, err
	}

	r.log.Debug("window %d: values [%d, %d] marked by %d base primes", r.stats.Windows, start, top, used)
	return bits, nil
}
