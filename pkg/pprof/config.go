// Package pprof captures runtime profiles around a sieve run and writes them
// to a directory for `go tool pprof`.
package pprof

import (
	"fmt"
	"strings"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU,
		ProfileHeap,
		ProfileGoroutine,
		ProfileBlock,
		ProfileMutex,
		ProfileAllocs,
	}
}

// DefaultProfileTypes returns the default profile types to collect.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap}
}

// ParseProfileTypes parses a comma-separated string into profile types.
// Duplicates are dropped; an empty string selects the defaults.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	seen := make(map[ProfileType]bool)
	var types []ProfileType
	for _, p := range strings.Split(s, ",") {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, fmt.Errorf("unknown profile type: %q", p)
		}
		if !seen[pt] {
			seen[pt] = true
			types = append(types, pt)
		}
	}
	return types, nil
}

// Config holds the pprof configuration.
type Config struct {
	Enabled   bool
	OutputDir string
	Profiles  []ProfileType
}

// DefaultConfig returns a disabled Config writing to ./pprof.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "./pprof",
		Profiles:  DefaultProfileTypes(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one profile type must be specified")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

// HasProfile checks if a profile type is enabled.
func (c *Config) HasProfile(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}
