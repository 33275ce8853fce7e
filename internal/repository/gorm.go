package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// SaveRun inserts a run.
func (r *GormRunRepository) SaveRun(ctx context.Context, run *model.RunRecord) error {
	row := NewRunHistory(run)
	row.ID = 0
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to save run", err)
	}
	run.ID = row.ID
	run.CreateTime = row.CreateTime
	return nil
}

// GetRun retrieves a run by its ID.
func (r *GormRunRepository) GetRun(ctx context.Context, id int64) (*model.RunRecord, error) {
	var row RunHistory

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get run", err)
	}

	return row.ToModel()
}

// ListRuns returns the runs matching filter, newest first.
func (r *GormRunRepository) ListRuns(ctx context.Context, filter RunFilter) ([]*model.RunRecord, error) {
	query := r.db.WithContext(ctx).Model(&RunHistory{})
	if filter.Mode != nil {
		query = query.Where("mode = ?", filter.Mode.String())
	}
	if !filter.Since.IsZero() {
		query = query.Where("create_time >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []RunHistory
	if err := query.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list runs", err)
	}

	result := make([]*model.RunRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].ToModel()
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// CountRuns returns the number of stored runs.
func (r *GormRunRepository) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&RunHistory{}).Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to count runs", err)
	}
	return n, nil
}

// PruneBefore deletes runs created before t.
func (r *GormRunRepository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("create_time < ?", t).Delete(&RunHistory{})
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to prune runs", result.Error)
	}
	return result.RowsAffected, nil
}
