package pprof

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"
)

// Collector profiles the process between Start and Stop. CPU profiling runs
// for the whole span; the other profiles are snapshotted at Stop.
type Collector struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stamp   string
	cpuFile *os.File
}

// NewCollector creates a new Collector.
func NewCollector(cfg *Config) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Collector{config: cfg, now: time.Now}, nil
}

// Start creates the output directory and begins CPU profiling if requested.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("collector is already running")
	}
	if err := os.MkdirAll(c.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	c.stamp = c.now().Format("20060102_150405")

	if c.config.HasProfile(ProfileCPU) {
		f, err := os.Create(c.path(ProfileCPU))
		if err != nil {
			return fmt.Errorf("failed to create cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		c.cpuFile = f
	}
	if c.config.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if c.config.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	c.running = true
	return nil
}

// Stop ends CPU profiling, writes the snapshot profiles and returns every
// file written. Calling Stop on a stopped collector is a no-op.
func (c *Collector) Stop() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, nil
	}
	c.running = false

	var written []string
	if c.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := c.cpuFile.Close(); err != nil {
			return nil, fmt.Errorf("failed to close cpu profile: %w", err)
		}
		written = append(written, c.cpuFile.Name())
		c.cpuFile = nil
	}

	for _, pt := range c.config.Profiles {
		if pt == ProfileCPU {
			continue
		}
		path, err := c.snapshot(pt)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if c.config.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(0)
	}
	if c.config.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(0)
	}
	return written, nil
}

// Running reports whether the collector has been started and not stopped.
func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Collector) snapshot(pt ProfileType) (string, error) {
	p := pprof.Lookup(string(pt))
	if p == nil {
		return "", fmt.Errorf("%s profile not found", pt)
	}
	if pt == ProfileHeap {
		runtime.GC()
	}

	path := c.path(pt)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s profile: %w", pt, err)
	}
	if err := p.WriteTo(f, 0); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s profile: %w", pt, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s profile: %w", pt, err)
	}
	return path, nil
}

func (c *Collector) path(pt ProfileType) string {
	return filepath.Join(c.config.OutputDir, fmt.Sprintf("%s_%s.pprof", pt, c.stamp))
}

// RunWithPprof runs fn between Start and Stop when cfg is enabled, and
// plainly otherwise. The paths of the written profiles are returned.
func RunWithPprof(ctx context.Context, cfg *Config, fn func(ctx context.Context) error) ([]string, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fn(ctx)
	}

	collector, err := NewCollector(cfg)
	if err != nil {
		return nil, err
	}
	if err := collector.Start(); err != nil {
		return nil, err
	}

	runErr := fn(ctx)
	paths, stopErr := collector.Stop()
	if runErr != nil {
		return paths, runErr
	}
	return paths, stopErr
}
