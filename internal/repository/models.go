package repository

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prime-sieve/pkg/model"
)

// RunHistory represents the sieve_runs table. Bound and Largest are stored as
// decimal text because SQL integer columns are signed.
type RunHistory struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Bound      string    `gorm:"column:bound;type:varchar(20)"`
	Mode       string    `gorm:"column:mode;type:varchar(16);index"`
	Count      int64     `gorm:"column:prime_count"`
	Largest    string    `gorm:"column:largest;type:varchar(20)"`
	Workers    int       `gorm:"column:workers"`
	WindowSize int64     `gorm:"column:window_size"`
	Windows    int       `gorm:"column:windows"`
	DurationMS int64     `gorm:"column:duration_ms"`
	Verified   *bool     `gorm:"column:verified"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime;index"`
}

// TableName returns the table name for RunHistory.
func (RunHistory) TableName() string {
	return "sieve_runs"
}

// NewRunHistory converts a model.RunRecord into its row form.
func NewRunHistory(r *model.RunRecord) *RunHistory {
	return &RunHistory{
		ID:         r.ID,
		Bound:      strconv.FormatUint(r.Bound, 10),
		Mode:       r.Mode.String(),
		Count:      int64(r.Count),
		Largest:    strconv.FormatUint(r.Largest, 10),
		Workers:    r.Workers,
		WindowSize: int64(r.WindowSize),
		Windows:    r.Windows,
		DurationMS: r.Duration.Milliseconds(),
		Verified:   r.Verified,
		CreateTime: r.CreateTime,
	}
}

// ToModel converts RunHistory to model.RunRecord.
func (h *RunHistory) ToModel() (*model.RunRecord, error) {
	bound, err := strconv.ParseUint(h.Bound, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("run %d: malformed bound %q: %w", h.ID, h.Bound, err)
	}
	var largest uint64
	if h.Largest != "" {
		if largest, err = strconv.ParseUint(h.Largest, 10, 64); err != nil {
			return nil, fmt.Errorf("run %d: malformed largest prime %q: %w", h.ID, h.Largest, err)
		}
	}
	mode, ok := model.ParseRunMode(h.Mode)
	if !ok {
		return nil, fmt.Errorf("run %d: unknown mode %q", h.ID, h.Mode)
	}

	return &model.RunRecord{
		ID:         h.ID,
		Bound:      bound,
		Mode:       mode,
		Count:      uint64(h.Count),
		Largest:    largest,
		Workers:    h.Workers,
		WindowSize: uint64(h.WindowSize),
		Windows:    h.Windows,
		Duration:   time.Duration(h.DurationMS) * time.Millisecond,
		Verified:   h.Verified,
		CreateTime: h.CreateTime,
	}, nil
}
