// Package model defines the core data structures used throughout the application.
package model

import "time"

// RunMode distinguishes a prime listing from a prime count.
type RunMode int

const (
	RunModeGenerate RunMode = 0 // full ascending list
	RunModeCount    RunMode = 1 // popcount only
	RunModeVerify   RunMode = 2 // cross-check against trial division
)

// String returns the string representation of RunMode.
func (m RunMode) String() string {
	switch m {
	case RunModeGenerate:
		return "generate"
	case RunModeCount:
		return "count"
	case RunModeVerify:
		return "verify"
	default:
		return "unknown"
	}
}

// ParseRunMode parses the string form of a RunMode.
func ParseRunMode(s string) (RunMode, bool) {
	switch s {
	case "generate":
		return RunModeGenerate, true
	case "count":
		return RunModeCount, true
	case "verify":
		return RunModeVerify, true
	default:
		return 0, false
	}
}

// SieveStats describes how a run was executed.
type SieveStats struct {
	Workers    int    `json:"workers"`
	WindowSize uint64 `json:"window_size"`
	Windows    int    `json:"windows"`  // 1 when the bound fits a single window
	Barriers   int    `json:"barriers"` // Finish calls across all windows
	Tasks      int64  `json:"tasks"`    // marking tasks dispatched
}

// SieveResult is the JSON document written for a run.
type SieveResult struct {
	Bound      uint64                 `json:"bound"`
	Mode       string                 `json:"mode"`
	Count      uint64                 `json:"count"`
	Largest    uint64                 `json:"largest,omitempty"`
	Primes     []uint64               `json:"primes,omitempty"`
	Stats      SieveStats             `json:"stats"`
	Timing     map[string]interface{} `json:"timing,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
	StartedAt  time.Time              `json:"started_at"`
}

// RunRecord is one persisted entry of the run history.
type RunRecord struct {
	ID         int64
	Bound      uint64
	Mode       RunMode
	Count      uint64
	Largest    uint64
	Workers    int
	WindowSize uint64
	Windows    int
	Duration   time.Duration
	Verified   *bool // set for verify runs
	CreateTime time.Time
}
