package sieve

import (
	"context"
	"fmt"
	"math"

	"github.com/prime-sieve/pkg/collections"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/utils"
	"github.com/prime-sieve/pkg/wheel"
)

// wheelPrimes are the primes the wheel removes from the candidate space.
var wheelPrimes = []uint64{2, 3, 5}

// firstReliableBound is the largest value whose bitmap cell is final before
// any marking: every admissible composite has a factor >= 7, so the smallest
// one is 49.
const firstReliableBound = 48

// run carries the state of one Engine.Run call.
type run struct {
	engine  *Engine
	collect bool // keep every prime, not only the base primes
	stats   model.SieveStats
	pending int // tasks dispatched since the last barrier
	log     utils.Logger
}

func (r *run) dispatch(ctx context.Context, t markTask) error {
	if !r.engine.queue.Dispatch(t.run) {
		return apperrors.ErrQueueClosed
	}
	r.stats.Tasks++
	r.pending++
	if r.pending >= r.engine.opts.batchSize {
		return r.barrier(ctx)
	}
	return nil
}

// barrier waits for every dispatched task. On cancellation the queued tasks
// are dropped first so only the running ones are waited for.
func (r *run) barrier(ctx context.Context) error {
	q := r.engine.queue
	if err := ctx.Err(); err != nil {
		dropped := q.Dump()
		q.Finish()
		r.pending = 0
		r.log.Debug("sieve canceled, %d queued tasks dropped", dropped)
		return fmt.Errorf("sieve interrupted: %w", err)
	}
	q.Finish()
	r.stats.Barriers++
	r.pending = 0
	return nil
}

// single sieves [2, n] in one window.
func (r *run) single(ctx context.Context, n uint64) (*Result, error) {
	pt := r.engine.opts.timer.Start("window")
	primes, count, err := r.core(ctx, n, r.collect)
	pt.Stop()
	if err != nil {
		return nil, err
	}

	r.stats.Windows = 1
	res := &Result{Count: count, Stats: r.stats}
	if r.collect {
		res.Primes = primes
	}
	return res, nil
}

// core sieves [2, n] with one bitmap covering every admissible candidate.
//
// It returns the primes found together with their total count. When all is
// false only the primes <= sqrt(n) are returned; the rest are counted with a
// popcount and never materialized.
//
// Candidates are classified in ascending order while marking proceeds in the
// background. A candidate's cell is only trusted once every prime up to its
// square root has finished marking, so whenever the next candidate passes the
// reliable bound the queue is drained and the bound grows to p*p - 1.
func (r *run) core(ctx context.Context, n uint64, all bool) ([]uint64, uint64, error) {
	if n < 2 {
		return []uint64{}, 0, nil
	}
	if n < 7 {
		primes := make([]uint64, 0, len(wheelPrimes))
		for _, p := range wheelPrimes {
			if p <= n {
				primes = append(primes, p)
			}
		}
		return primes, uint64(len(primes)), nil
	}

	hi := wheel.CountUpTo(n)
	bits := collections.NewAtomicBitset(hi)
	root := isqrt(n)

	primes := make([]uint64, 0, estimatePrimes(n, all, root))
	primes = append(primes, wheelPrimes...)

	bound := uint64(firstReliableBound)
	idx := uint64(1)
	c := wheel.At(idx)
	for ; c.Value() <= root; idx++ {
		p := c.Value()
		if p > bound {
			if err := r.barrier(ctx); err != nil {
				return nil, 0, err
			}
			bound = p*p - 1
		}
		if !bits.Test(idx) {
			primes = append(primes, p)
			if err := r.dispatch(ctx, markTask{prime: p, start: c, hi: hi, bits: bits}); err != nil {
				return nil, 0, err
			}
		}
		c, _ = c.Next()
	}
	if err := r.barrier(ctx); err != nil {
		return nil, 0, err
	}

	pt := r.engine.opts.timer.Start("harvest")
	defer pt.Stop()

	if !all {
		return primes, uint64(len(primes)) + bits.CountClear(idx), nil
	}
	bits.IterateClear(idx, func(i uint64) bool {
		primes = append(primes, wheel.Value(i))
		return true
	})
	return primes, uint64(len(primes)), nil
}

// estimatePrimes sizes the result slice from the prime number theorem
// upper bound n / (ln n - 1.1).
func estimatePrimes(n uint64, all bool, root uint64) int {
	if !all {
		n = root
	}
	if n < 100 {
		return 32
	}
	est := float64(n) / (math.Log(float64(n)) - 1.1)
	if est > 1<<26 {
		est = 1 << 26
	}
	return int(est)
}
