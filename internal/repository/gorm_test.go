package repository

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

func setupTestRepos(t *testing.T) *Repositories {
	repos, err := Connect(config.DatabaseConfig{
		Enabled:  true,
		Type:     "sqlite",
		Path:     filepath.Join(t.TempDir(), "history.db"),
		MaxConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestGormRunRepository_SaveAndGet(t *testing.T) {
	repo := setupTestRepos(t).Runs
	ctx := context.Background()

	verified := true
	run := &model.RunRecord{
		Bound:      math.MaxUint64,
		Mode:       model.RunModeVerify,
		Count:      11,
		Largest:    math.MaxUint64 - 58,
		Workers:    4,
		WindowSize: config.DefaultWindowSize,
		Windows:    3,
		Duration:   1500 * time.Millisecond,
		Verified:   &verified,
	}
	require.NoError(t, repo.SaveRun(ctx, run))
	assert.NotZero(t, run.ID)
	assert.False(t, run.CreateTime.IsZero(), "create time is filled in")

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Bound, got.Bound)
	assert.Equal(t, run.Largest, got.Largest)
	assert.Equal(t, model.RunModeVerify, got.Mode)
	assert.Equal(t, uint64(11), got.Count)
	assert.Equal(t, 4, got.Workers)
	assert.Equal(t, uint64(config.DefaultWindowSize), got.WindowSize)
	assert.Equal(t, 3, got.Windows)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	require.NotNil(t, got.Verified)
	assert.True(t, *got.Verified)
}

func TestGormRunRepository_GetRun_NotFound(t *testing.T) {
	repo := setupTestRepos(t).Runs

	got, err := repo.GetRun(context.Background(), 999)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestGormRunRepository_ListRuns(t *testing.T) {
	repo := setupTestRepos(t).Runs
	ctx := context.Background()

	modes := []model.RunMode{model.RunModeGenerate, model.RunModeCount, model.RunModeCount, model.RunModeGenerate}
	for i, m := range modes {
		require.NoError(t, repo.SaveRun(ctx, &model.RunRecord{
			Bound:      uint64(100 * (i + 1)),
			Mode:       m,
			CreateTime: day(i + 1),
		}))
	}

	t.Run("NewestFirst", func(t *testing.T) {
		runs, err := repo.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 4)
		assert.Equal(t, uint64(400), runs[0].Bound)
		assert.Equal(t, uint64(100), runs[3].Bound)
	})

	t.Run("Limit", func(t *testing.T) {
		runs, err := repo.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, uint64(400), runs[0].Bound)
		assert.Equal(t, uint64(300), runs[1].Bound)
	})

	t.Run("Mode", func(t *testing.T) {
		mode := model.RunModeCount
		runs, err := repo.ListRuns(ctx, RunFilter{Mode: &mode})
		require.NoError(t, err)
		require.Len(t, runs, 2)
		for _, r := range runs {
			assert.Equal(t, model.RunModeCount, r.Mode)
		}
	})

	t.Run("Since", func(t *testing.T) {
		runs, err := repo.ListRuns(ctx, RunFilter{Since: day(3)})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})
}

func TestGormRunRepository_CountAndPrune(t *testing.T) {
	repo := setupTestRepos(t).Runs
	ctx := context.Background()

	for d := 1; d <= 5; d++ {
		require.NoError(t, repo.SaveRun(ctx, &model.RunRecord{Bound: 10, CreateTime: day(d)}))
	}

	n, err := repo.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	removed, err := repo.PruneBefore(ctx, day(3))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err = repo.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRunHistory_ToModel_Malformed(t *testing.T) {
	_, err := (&RunHistory{Bound: "-1", Mode: "count"}).ToModel()
	assert.Error(t, err)

	_, err = (&RunHistory{Bound: "10", Largest: "x", Mode: "count"}).ToModel()
	assert.Error(t, err)

	_, err = (&RunHistory{Bound: "10", Mode: "sideways"}).ToModel()
	assert.Error(t, err)
}

func TestRepositories_HealthCheckAndClose(t *testing.T) {
	repos := setupTestRepos(t)

	assert.NoError(t, repos.HealthCheck(context.Background()))
	assert.NotNil(t, repos.GormDB())
	assert.NoError(t, repos.Close())
	assert.Error(t, repos.HealthCheck(context.Background()))
}

func TestDialector(t *testing.T) {
	tests := []struct {
		name    string
		dbType  string
		wantErr bool
	}{
		{"SQLite", "sqlite", false},
		{"SQLite3", "sqlite3", false},
		{"Postgres", "postgres", false},
		{"PostgreSQL", "postgresql", false},
		{"MySQL", "mysql", false},
		{"Unknown", "oracle", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Dialector(config.DatabaseConfig{Type: tt.dbType, Host: "localhost", Port: 5432, Path: "x.db"})
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, d)
		})
	}
}
