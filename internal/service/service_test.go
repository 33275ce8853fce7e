package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mocks "github.com/prime-sieve/internal/mock"
	"github.com/prime-sieve/internal/repository"
	"github.com/prime-sieve/pkg/compression"
	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/utils"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sieve.Workers = 2
	cfg.Sieve.WindowSize = 1000
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, runs repository.RunRepository) (*Runner, *bytes.Buffer) {
	svc, err := New(cfg, utils.NewDefaultLogger(utils.LevelError, nil))
	require.NoError(t, err)
	if runs != nil {
		svc.SetRepository(runs)
	}
	var out bytes.Buffer
	svc.SetOutput(&out)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { svc.Close() })
	return svc, &out
}

func TestRunner_New(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		svc, err := New(nil, nil)
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.Nil(t, svc.Engine())
	})

	t.Run("NotInitialized", func(t *testing.T) {
		svc, err := New(testConfig(), nil)
		require.NoError(t, err)
		_, err = svc.Run(context.Background(), 10, model.RunModeCount)
		assert.Error(t, err)
		_, err = svc.Verify(context.Background(), 1, 10, 1)
		assert.Error(t, err)
	})
}

func TestRunner_Run_CountText(t *testing.T) {
	runs := new(mocks.MockRunRepository)
	runs.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *model.RunRecord) bool {
		return r.Bound == 100 && r.Mode == model.RunModeCount && r.Count == 25 && r.Workers == 2
	})).Return(nil).Once()

	svc, out := newTestRunner(t, testConfig(), runs)

	res, err := svc.Run(context.Background(), 100, model.RunModeCount)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), res.Count)
	assert.Nil(t, res.Primes)
	assert.Equal(t, "25\n", out.String())
	runs.AssertExpectations(t)
}

func TestRunner_Run_GenerateJSON(t *testing.T) {
	cfg := testConfig()
	cfg.Output.Format = "json"
	svc, out := newTestRunner(t, cfg, nil)

	_, err := svc.Run(context.Background(), 5000, model.RunModeGenerate)
	require.NoError(t, err)

	var doc model.SieveResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, uint64(5000), doc.Bound)
	assert.Equal(t, "generate", doc.Mode)
	assert.Equal(t, uint64(669), doc.Count)
	assert.Equal(t, uint64(4999), doc.Largest)
	assert.Len(t, doc.Primes, 669)
	assert.Greater(t, doc.Stats.Windows, 1, "bound above the window is segmented")
	assert.Equal(t, "sieve", doc.Timing["name"])
}

func TestRunner_Run_GenerateText(t *testing.T) {
	svc, out := newTestRunner(t, testConfig(), nil)

	_, err := svc.Run(context.Background(), 30, model.RunModeGenerate)
	require.NoError(t, err)
	assert.Equal(t, "2\n3\n5\n7\n11\n13\n17\n19\n23\n29\n", out.String())
}

func TestRunner_Run_CompressedFile(t *testing.T) {
	cfg := testConfig()
	cfg.Output.Compression = "zstd"
	cfg.Output.Path = filepath.Join(t.TempDir(), "out", "primes.txt.zst")
	svc, out := newTestRunner(t, cfg, nil)

	_, err := svc.Run(context.Background(), 20, model.RunModeGenerate)
	require.NoError(t, err)
	assert.Empty(t, out.String(), "file output bypasses stdout")

	f, err := os.Open(cfg.Output.Path)
	require.NoError(t, err)
	defer f.Close()
	r, err := compression.NewAutoReader(f)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "2\n3\n5\n7\n11\n13\n17\n19\n", string(data))
}

func TestRunner_Run_HistoryFailureIsNotFatal(t *testing.T) {
	runs := new(mocks.MockRunRepository)
	runs.On("SaveRun", mock.Anything, mock.Anything).Return(apperrors.ErrDatabaseError)

	svc, _ := newTestRunner(t, testConfig(), runs)

	res, err := svc.Run(context.Background(), 10, model.RunModeCount)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Count)
	runs.AssertNumberOfCalls(t, "SaveRun", 1)
}

func TestRunner_Run_Canceled(t *testing.T) {
	runs := new(mocks.MockRunRepository)
	svc, out := newTestRunner(t, testConfig(), runs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx, 100000, model.RunModeCount)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, out.String())
	runs.AssertNotCalled(t, "SaveRun", mock.Anything, mock.Anything)
}

func TestRunner_Verify(t *testing.T) {
	runs := new(mocks.MockRunRepository)
	runs.On("SaveRun", mock.Anything, mock.MatchedBy(func(r *model.RunRecord) bool {
		return r.Mode == model.RunModeVerify && r.Verified != nil && *r.Verified && r.Count == 21 && r.Bound == 200
	})).Return(nil).Once()

	svc, _ := newTestRunner(t, testConfig(), runs)

	report, err := svc.Verify(context.Background(), 100, 200, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), report.Checked)
	runs.AssertExpectations(t)

	_, err = svc.Verify(context.Background(), 10, 5, 1)
	assert.True(t, apperrors.IsInvalidBound(err))
}

func TestRunner_History(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		svc, _ := newTestRunner(t, testConfig(), nil)
		_, err := svc.History(context.Background(), repository.RunFilter{})
		assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
	})

	t.Run("Mocked", func(t *testing.T) {
		want := []*model.RunRecord{{ID: 2, Bound: 10}, {ID: 1, Bound: 5}}
		runs := new(mocks.MockRunRepository)
		runs.On("ListRuns", mock.Anything, repository.RunFilter{Limit: 2}).Return(want, nil)

		svc, _ := newTestRunner(t, testConfig(), runs)
		got, err := svc.History(context.Background(), repository.RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestRunner_SQLiteHistory(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Enabled = true
	cfg.Database.Path = filepath.Join(t.TempDir(), "history.db")
	cfg.Database.MaxConns = 1

	svc, _ := newTestRunner(t, cfg, nil)
	clock := utils.NewManualClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc.SetClock(clock)

	_, err := svc.Run(context.Background(), 1000, model.RunModeCount)
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), 100, model.RunModeGenerate)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), repository.RunFilter{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint64(100), history[0].Bound)
	assert.Equal(t, uint64(97), history[0].Largest)
	assert.Equal(t, uint64(168), history[1].Count)

	assert.NoError(t, svc.HealthCheck(context.Background()))
}

func TestRunner_Prune(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Disabled", func(t *testing.T) {
		svc, _ := newTestRunner(t, testConfig(), nil)
		_, err := svc.Prune(context.Background(), cutoff)
		assert.Error(t, err)
	})

	t.Run("Mocked", func(t *testing.T) {
		runs := new(mocks.MockRunRepository)
		runs.On("PruneBefore", mock.Anything, cutoff).Return(int64(3), nil)

		svc, _ := newTestRunner(t, testConfig(), runs)
		n, err := svc.Prune(context.Background(), cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		runs.AssertExpectations(t)
	})
}
