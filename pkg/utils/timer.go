package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one timed section of a sieve run, such as "seed" or "window".
// Repeated phases of the same name accumulate.
type Phase struct {
	Name     string
	Count    int
	Duration time.Duration
}

// PhaseTimer times one occurrence of a phase. Use with defer.
type PhaseTimer struct {
	timer   *Timer
	name    string
	start   time.Time
	stopped bool
}

// Stop records the elapsed time into the phase and returns it.
// Safe to call multiple times; only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	if pt == nil || pt.timer == nil || !pt.timer.enabled || pt.stopped {
		return 0
	}
	pt.stopped = true
	d := pt.timer.clock.Since(pt.start)
	pt.timer.record(pt.name, d)
	return d
}

// Timer accumulates per-phase wall time for one run.
type Timer struct {
	mu      sync.Mutex
	name    string
	start   time.Time
	phases  map[string]*Phase
	order   []string
	logger  Logger
	enabled bool
	clock   Clock
}

// TimerOption configures a Timer instance.
type TimerOption func(*Timer)

// WithLogger sets the logger PrintSummary writes to.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		t.logger = logger
	}
}

// WithEnabled sets whether the timer is enabled.
// When disabled, all operations are no-ops.
func WithEnabled(enabled bool) TimerOption {
	return func(t *Timer) {
		t.enabled = enabled
	}
}

// WithClock sets a custom clock.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a new Timer with the given name and options.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:    name,
		phases:  make(map[string]*Phase),
		enabled: true,
		clock:   NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

// Start begins timing one occurrence of the named phase.
func (t *Timer) Start(name string) *PhaseTimer {
	if !t.enabled {
		return &PhaseTimer{timer: t, name: name}
	}
	return &PhaseTimer{timer: t, name: name, start: t.clock.Now()}
}

// TimeFunc times fn as one occurrence of the named phase.
func (t *Timer) TimeFunc(name string, fn func()) time.Duration {
	pt := t.Start(name)
	fn()
	return pt.Stop()
}

func (t *Timer) record(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.phases[name]
	if !ok {
		p = &Phase{Name: name}
		t.phases[name] = p
		t.order = append(t.order, name)
	}
	p.Count++
	p.Duration += d
}

// Reset drops every recorded phase and restarts the total clock.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.phases = make(map[string]*Phase)
	t.order = nil
	t.start = t.clock.Now()
}

// Phases returns copies of all phases in first-seen order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	phases := make([]Phase, 0, len(t.order))
	for _, name := range t.order {
		phases = append(phases, *t.phases[name])
	}
	return phases
}

// Duration returns the accumulated time of a phase.
func (t *Timer) Duration(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.phases[name]; ok {
		return p.Duration
	}
	return 0
}

// Total returns the time since the timer was created.
func (t *Timer) Total() time.Duration {
	if !t.enabled {
		return 0
	}
	return t.clock.Since(t.start)
}

// Summary returns a formatted multi-line summary.
func (t *Timer) Summary() string {
	if !t.enabled {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s Timing Summary ===\n", t.name)
	for i, p := range t.Phases() {
		fmt.Fprintf(&sb, "Phase %d - %s: %v (x%d)\n", i+1, p.Name, p.Duration, p.Count)
	}
	fmt.Fprintf(&sb, "Total: %v\n", t.Total())
	return sb.String()
}

// PrintSummary writes the summary through the configured logger at debug level.
func (t *Timer) PrintSummary() {
	if !t.enabled || t.logger == nil {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(t.Summary(), "\n"), "\n") {
		t.logger.Debug("%s", line)
	}
}

// ToMap returns the timing data for JSON output.
func (t *Timer) ToMap() map[string]interface{} {
	phases := t.Phases()
	out := make([]map[string]interface{}, 0, len(phases))
	for _, p := range phases {
		out = append(out, map[string]interface{}{
			"name":  p.Name,
			"count": p.Count,
			"ms":    p.Duration.Milliseconds(),
		})
	}
	return map[string]interface{}{
		"name":     t.name,
		"total_ms": t.Total().Milliseconds(),
		"phases":   out,
	}
}

// NullTimer is a no-op timer for when timing is disabled.
var NullTimer = &Timer{enabled: false, phases: make(map[string]*Phase), clock: NewRealClock()}
