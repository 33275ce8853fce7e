// Package parallel provides a reusable fan-out/join worker pool.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prime-sieve/pkg/collections"
	apperrors "github.com/prime-sieve/pkg/errors"
)

// ============================================================================
// Worker Pool Configuration
// ============================================================================

// PoolConfig configures the dispatch queue.
type PoolConfig struct {
	// MaxWorkers is the number of worker goroutines.
	// Default: runtime.NumCPU()
	MaxWorkers int

	// QueueCapacity is the initial capacity of the task queue.
	// Default: MaxWorkers * 64
	QueueCapacity int

	// ShutdownTimeout bounds how long Shutdown waits for workers to join.
	// Default: 0 (wait forever)
	ShutdownTimeout time.Duration
}

// DefaultPoolConfig returns a pool sized to the hardware parallelism.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return PoolConfig{
		MaxWorkers:    workers,
		QueueCapacity: workers * 64,
	}
}

// WithWorkers returns a new config with the specified number of workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithShutdownTimeout returns a new config with the specified join deadline.
func (c PoolConfig) WithShutdownTimeout(d time.Duration) PoolConfig {
	c.ShutdownTimeout = d
	return c
}

// ============================================================================
// Execution Metrics
// ============================================================================

// QueueMetrics holds lifetime counters of a dispatch queue.
type QueueMetrics struct {
	Workers    int64 // live worker goroutines
	Dispatched int64
	Completed  int64
	Rejected   int64 // Dispatch calls refused after quit or stop
	Discarded  int64 // queued tasks dropped by Dump, stop or shutdown
	Stopped    int64 // tasks that returned the stop signal
}

// WorkerState is the lifecycle state of one worker goroutine.
type WorkerState int32

const (
	// StateIdle waits for work or quit.
	StateIdle WorkerState = iota
	// StateRunning executes a popped task.
	StateRunning
	// StateDraining found the queue empty after its task and is waking Finish callers.
	StateDraining
	// StateTerminated has exited.
	StateTerminated
)

// String returns the string representation of WorkerState.
func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ============================================================================
// Dispatch Queue
// ============================================================================

// Task is a unit of work. Returning true signals stop: the queue discards
// its pending tasks, refuses new ones until the next Finish, and Finish
// reports true.
type Task func() bool

// DispatchQueue runs tasks in FIFO order on a fixed set of goroutines. It is
// created once and reused across any number of dispatch/Finish phases.
//
// "Queue empty" and "no task running" are both guarded by mu, and running is
// only decremented after a task has returned, so a Finish caller can never
// observe an empty queue before the last task's writes are complete.
type DispatchQueue struct {
	config PoolConfig

	mu      sync.Mutex
	work    *sync.Cond // signalled when tasks arrive or quit is set
	idle    *sync.Cond // broadcast when the queue drains
	tasks   *collections.Queue[Task]
	running int
	halted  bool // a task signalled stop; cleared by Finish
	stopped bool // stop result since the last Finish
	quit    bool
	fault   any // first panic raised by a task, re-raised by Finish

	wg     sync.WaitGroup
	states []atomic.Int32

	live       atomic.Int64
	dispatched atomic.Int64
	completed  atomic.Int64
	rejected   atomic.Int64
	discarded  atomic.Int64
	stops      atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// NewDispatchQueue starts config.MaxWorkers workers and returns the queue.
func NewDispatchQueue(config PoolConfig) *DispatchQueue {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultPoolConfig().MaxWorkers
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = config.MaxWorkers * 64
	}

	q := &DispatchQueue{
		config: config,
		tasks:  collections.NewQueue[Task](config.QueueCapacity),
		states: make([]atomic.Int32, config.MaxWorkers),
	}
	q.work = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)

	q.wg.Add(config.MaxWorkers)
	q.live.Add(int64(config.MaxWorkers))
	for i := 0; i < config.MaxWorkers; i++ {
		go q.worker(i)
	}
	return q
}

// Workers returns the configured worker count.
func (q *DispatchQueue) Workers() int {
	return q.config.MaxWorkers
}

// Dispatch enqueues a task without blocking. It returns false if the queue
// has been closed or a stop is pending; the task is then dropped.
func (q *DispatchQueue) Dispatch(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.quit || q.halted {
		q.rejected.Add(1)
		return false
	}
	q.tasks.Enqueue(task)
	q.dispatched.Add(1)
	q.work.Signal()
	return true
}

// Finish blocks until every task dispatched before the call has been picked
// up and has returned, then reports whether any of them signalled stop. The
// stop flag is reset so the next phase starts clean.
//
// If a task panicked, Finish re-panics with the same value on the caller's
// goroutine.
func (q *DispatchQueue) Finish() bool {
	q.mu.Lock()
	for q.running > 0 || !q.tasks.IsEmpty() {
		q.idle.Wait()
	}
	stopped := q.stopped
	fault := q.fault
	q.stopped = false
	q.halted = false
	q.fault = nil
	q.mu.Unlock()

	if fault != nil {
		panic(fault)
	}
	return stopped
}

// Dump discards every queued task that has not started and wakes Finish
// callers as soon as the running tasks return. Running tasks are not
// interrupted. It returns the number of tasks discarded.
func (q *DispatchQueue) Dump() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.tasks.Clear()
	q.discarded.Add(int64(n))
	if q.running == 0 {
		q.idle.Broadcast()
	}
	return n
}

// Close signals quit, drops pending tasks and joins every worker. If ctx
// expires before all workers have exited, a SHUTDOWN_FAILURE error is
// returned. Close is idempotent; later calls return the first result.
func (q *DispatchQueue) Close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.quit = true
		q.discarded.Add(int64(q.tasks.Clear()))
		q.work.Broadcast()
		q.idle.Broadcast()
		q.mu.Unlock()

		done := make(chan struct{})
		go func() {
			q.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			q.closeErr = apperrors.Wrap(apperrors.CodeShutdownFailure,
				fmt.Sprintf("%d workers did not join", q.live.Load()), ctx.Err())
		}
	})
	return q.closeErr
}

// Shutdown closes the queue using the configured ShutdownTimeout.
func (q *DispatchQueue) Shutdown() error {
	ctx := context.Background()
	if q.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.config.ShutdownTimeout)
		defer cancel()
	}
	return q.Close(ctx)
}

// Metrics returns a snapshot of the queue counters.
func (q *DispatchQueue) Metrics() QueueMetrics {
	return QueueMetrics{
		Workers:    q.live.Load(),
		Dispatched: q.dispatched.Load(),
		Completed:  q.completed.Load(),
		Rejected:   q.rejected.Load(),
		Discarded:  q.discarded.Load(),
		Stopped:    q.stops.Load(),
	}
}

// States returns the current state of every worker.
func (q *DispatchQueue) States() []WorkerState {
	states := make([]WorkerState, len(q.states))
	for i := range q.states {
		states[i] = WorkerState(q.states[i].Load())
	}
	return states
}

func (q *DispatchQueue) worker(id int) {
	state := &q.states[id]
	defer func() {
		state.Store(int32(StateTerminated))
		q.live.Add(-1)
		q.wg.Done()
	}()

	q.mu.Lock()
	for {
		for !q.quit && q.tasks.IsEmpty() {
			state.Store(int32(StateIdle))
			q.work.Wait()
		}
		if q.quit {
			q.mu.Unlock()
			return
		}

		task, _ := q.tasks.Dequeue()
		q.running++
		state.Store(int32(StateRunning))
		q.mu.Unlock()

		stop, fault := runTask(task)

		q.mu.Lock()
		q.running--
		q.completed.Add(1)
		if fault != nil && q.fault == nil {
			q.fault = fault
		}
		if stop {
			q.stops.Add(1)
			q.stopped = true
			if !q.halted {
				q.halted = true
				q.discarded.Add(int64(q.tasks.Clear()))
			}
		}
		if q.running == 0 && q.tasks.IsEmpty() {
			state.Store(int32(StateDraining))
			q.idle.Broadcast()
		}
	}
}

// runTask executes task, converting a panic into a stop signal plus the
// recovered value.
func runTask(task Task) (stop bool, fault any) {
	defer func() {
		if r := recover(); r != nil {
			stop = true
			fault = r
		}
	}()
	return task(), nil
}
