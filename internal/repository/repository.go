// Package repository persists the sieve run history.
package repository

import (
	"context"
	"time"

	"github.com/prime-sieve/pkg/model"
)

// RunFilter narrows a history listing. Zero fields match everything.
type RunFilter struct {
	Mode  *model.RunMode
	Since time.Time
	Limit int
}

// RunRepository defines the interface for run history operations.
type RunRepository interface {
	// SaveRun stores a run and fills in its ID and CreateTime.
	SaveRun(ctx context.Context, run *model.RunRecord) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id int64) (*model.RunRecord, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]*model.RunRecord, error)

	// CountRuns returns the number of stored runs.
	CountRuns(ctx context.Context) (int64, error)

	// PruneBefore deletes runs created before t and returns how many were removed.
	PruneBefore(ctx context.Context, t time.Time) (int64, error)
}
