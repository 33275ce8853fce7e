// Package sieve implements a parallel, memory-bounded sieve of Eratosthenes
// over the mod-30 wheel.
//
// Bounds up to the window size are sieved in a single window. Larger bounds
// seed their base primes from the first window and then slide fixed-width
// windows across the rest of the range, so memory stays proportional to the
// window rather than to the bound. Each window's marking work is fanned out
// on a reusable DispatchQueue and joined with Finish before the survivors are
// harvested.
package sieve

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/parallel"
	"github.com/prime-sieve/pkg/telemetry"
	"github.com/prime-sieve/pkg/utils"
)

// DefaultBatchSize is the number of marking tasks dispatched between forced
// barriers.
const DefaultBatchSize = 4096

// ============================================================================
// Options
// ============================================================================

type options struct {
	pool       parallel.PoolConfig
	windowSize uint64
	batchSize  int
	logger     utils.Logger
	timer      *utils.Timer
	tracer     trace.Tracer
}

// Option configures an Engine.
type Option func(*options)

// WithWorkers sets the number of marking goroutines. Zero or less selects
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) {
		o.pool = o.pool.WithWorkers(n)
	}
}

// WithWindowSize sets the largest bound sieved in one window, which is also
// the width of every later window. Values below 64 are raised to 64.
func WithWindowSize(size uint64) Option {
	return func(o *options) {
		o.windowSize = size
	}
}

// WithBatchSize sets how many tasks may be queued before a forced barrier.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithShutdownTimeout bounds how long Close waits for workers to join.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.pool = o.pool.WithShutdownTimeout(d)
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger utils.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimer records seed, window and harvest phases into timer.
func WithTimer(timer *utils.Timer) Option {
	return func(o *options) {
		if timer != nil {
			o.timer = timer
		}
	}
}

// WithTracer overrides the tracer used for run and window spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// FromConfig translates the sieve section of the configuration into options.
func FromConfig(cfg config.SieveConfig) []Option {
	return []Option{
		WithWorkers(cfg.Workers),
		WithWindowSize(cfg.WindowSize),
		WithBatchSize(cfg.BatchSize),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}
}

// ============================================================================
// Engine
// ============================================================================

// Result is the outcome of one run.
type Result struct {
	Primes []uint64 // nil in count mode
	Count  uint64
	Stats  model.SieveStats
}

// Largest returns the largest prime found, or 0.
func (r *Result) Largest() uint64 {
	if len(r.Primes) == 0 {
		return 0
	}
	return r.Primes[len(r.Primes)-1]
}

// Engine owns one DispatchQueue and reuses it across runs. Runs on the same
// Engine are serialized; use separate engines for independent parallel runs.
type Engine struct {
	opts  options
	queue *parallel.DispatchQueue

	mu     sync.Mutex
	closed bool
}

// NewEngine starts the engine's worker pool.
func NewEngine(opts ...Option) *Engine {
	o := options{
		pool:       parallel.DefaultPoolConfig(),
		windowSize: config.DefaultWindowSize,
		batchSize:  DefaultBatchSize,
		logger:     &utils.NullLogger{},
		timer:      utils.NullTimer,
		tracer:     telemetry.Tracer("sieve"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.windowSize < 64 {
		o.windowSize = 64
	}
	if o.batchSize < 1 {
		o.batchSize = DefaultBatchSize
	}

	q := parallel.NewDispatchQueue(o.pool)
	o.logger.Debug("sieve engine started: workers=%d window=%d batch=%d", q.Workers(), o.windowSize, o.batchSize)
	return &Engine{opts: o, queue: q}
}

// Workers returns the size of the worker pool.
func (e *Engine) Workers() int {
	return e.queue.Workers()
}

// WindowSize returns the configured window size.
func (e *Engine) WindowSize() uint64 {
	return e.opts.windowSize
}

// QueueMetrics exposes the dispatch queue counters.
func (e *Engine) QueueMetrics() parallel.QueueMetrics {
	return e.queue.Metrics()
}

// GeneratePrimes returns every prime p with 2 <= p <= n in ascending order.
func (e *Engine) GeneratePrimes(ctx context.Context, n uint64) ([]uint64, error) {
	r, err := e.Run(ctx, n, model.RunModeGenerate)
	if err != nil {
		return nil, err
	}
	return r.Primes, nil
}

// CountPrimes returns the number of primes p <= n without materializing them.
func (e *Engine) CountPrimes(ctx context.Context, n uint64) (uint64, error) {
	r, err := e.Run(ctx, n, model.RunModeCount)
	if err != nil {
		return 0, err
	}
	return r.Count, nil
}

// Run sieves [2, n] in the given mode. Only RunModeGenerate and RunModeCount
// are accepted.
func (e *Engine) Run(ctx context.Context, n uint64, mode model.RunMode) (*Result, error) {
	if mode != model.RunModeGenerate && mode != model.RunModeCount {
		return nil, apperrors.New(apperrors.CodeUnknown, "unsupported sieve mode: "+mode.String())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, apperrors.ErrQueueClosed
	}

	ctx, span := e.opts.tracer.Start(ctx, "sieve.Run", trace.WithAttributes(
		uintAttr("sieve.bound", n),
		attribute.String("sieve.mode", mode.String()),
	))
	defer span.End()

	r := &run{
		engine:  e,
		collect: mode == model.RunModeGenerate,
		stats: model.SieveStats{
			Workers:    e.queue.Workers(),
			WindowSize: e.opts.windowSize,
		},
		log: e.opts.logger.WithFields(map[string]interface{}{
			"bound": n,
			"mode":  mode.String(),
		}),
	}

	var (
		res *Result
		err error
	)
	if n <= e.opts.windowSize {
		res, err = r.single(ctx, n)
	} else {
		res, err = r.segmented(ctx, n)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		uintAttr("sieve.count", res.Count),
		attribute.Int("sieve.windows", res.Stats.Windows),
		attribute.Int64("sieve.tasks", res.Stats.Tasks),
	)
	r.log.Debug("sieve finished: count=%d windows=%d barriers=%d tasks=%d",
		res.Count, res.Stats.Windows, res.Stats.Barriers, res.Stats.Tasks)
	return res, nil
}

// Close stops the worker pool. It is idempotent; a run in progress finishes
// first.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.queue.Shutdown()
}

// uintAttr records v as decimal text; int64 attributes would wrap above
// MaxInt64.
func uintAttr(key string, v uint64) attribute.KeyValue {
	return attribute.String(key, strconv.FormatUint(v, 10))
}

// ============================================================================
// Package-level convenience
// ============================================================================

// GeneratePrimes sieves [2, n] on a temporary engine with default settings.
func GeneratePrimes(ctx context.Context, n uint64) ([]uint64, error) {
	e := NewEngine()
	defer e.Close()
	return e.GeneratePrimes(ctx, n)
}

// CountPrimes counts the primes in [2, n] on a temporary engine with default
// settings.
func CountPrimes(ctx context.Context, n uint64) (uint64, error) {
	e := NewEngine()
	defer e.Close()
	return e.CountPrimes(ctx, n)
}
