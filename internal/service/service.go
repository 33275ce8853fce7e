// Package service wires the sieve engine to output, run history and tracing.
package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prime-sieve/internal/repository"
	"github.com/prime-sieve/internal/sieve"
	"github.com/prime-sieve/pkg/compression"
	"github.com/prime-sieve/pkg/config"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
	"github.com/prime-sieve/pkg/telemetry"
	"github.com/prime-sieve/pkg/utils"
	"github.com/prime-sieve/pkg/writer"
)

// Runner is the main application service. It owns one engine for its whole
// lifetime and, when history is enabled, one database connection.
type Runner struct {
	config *config.Config
	logger utils.Logger
	clock  utils.Clock
	tracer trace.Tracer

	engine *sieve.Engine
	timer  *utils.Timer
	repos  *repository.Repositories
	runs   repository.RunRepository
	stdout io.Writer

	mu      sync.Mutex
	started bool
}

// New creates a new Runner. Initialize must be called before Run.
func New(cfg *config.Config, logger utils.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &Runner{
		config: cfg,
		logger: logger,
		clock:  utils.NewRealClock(),
		tracer: telemetry.Tracer("service"),
	}, nil
}

// SetRepository replaces the history store, for example with a mock.
func (s *Runner) SetRepository(runs repository.RunRepository) {
	s.runs = runs
}

// SetOutput redirects results that would go to stdout.
func (s *Runner) SetOutput(w io.Writer) {
	s.stdout = w
}

// SetClock sets the clock used for run timestamps and durations.
func (s *Runner) SetClock(c utils.Clock) {
	s.clock = c
}

// Initialize starts the engine and opens the history database if enabled.
func (s *Runner) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if s.config.Database.Enabled && s.runs == nil {
		s.logger.Info("Connecting to history database (%s)...", s.config.Database.Type)
		repos, err := repository.Connect(s.config.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		s.repos = repos
		s.runs = repos.Runs
	}

	s.timer = utils.NewTimer("sieve", utils.WithLogger(s.logger), utils.WithClock(s.clock))
	opts := append(sieve.FromConfig(s.config.Sieve),
		sieve.WithLogger(s.logger),
		sieve.WithTimer(s.timer),
	)
	s.engine = sieve.NewEngine(opts...)
	s.started = true

	s.logger.Debug("Runner initialized: workers=%d window=%d", s.engine.Workers(), s.engine.WindowSize())
	return nil
}

// Engine returns the underlying engine, nil before Initialize.
func (s *Runner) Engine() *sieve.Engine {
	return s.engine
}

// Run sieves [2, bound] in mode, writes the result to the configured output
// and records it in the history.
func (s *Runner) Run(ctx context.Context, bound uint64, mode model.RunMode) (*model.SieveResult, error) {
	if s.engine == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "runner is not initialized")
	}

	ctx, span := s.tracer.Start(ctx, "service.Run", trace.WithAttributes(
		attribute.String("sieve.bound", strconv.FormatUint(bound, 10)),
		attribute.String("sieve.mode", mode.String()),
	))
	defer span.End()

	s.timer.Reset()
	startedAt := s.clock.Now()
	res, err := s.engine.Run(ctx, bound, mode)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	elapsed := s.clock.Since(startedAt)

	out := &model.SieveResult{
		Bound:      bound,
		Mode:       mode.String(),
		Count:      res.Count,
		Largest:    res.Largest(),
		Primes:     res.Primes,
		Stats:      res.Stats,
		Timing:     s.timer.ToMap(),
		DurationMS: elapsed.Milliseconds(),
		StartedAt:  startedAt,
	}
	s.timer.PrintSummary()

	wt := s.timer.Start("write")
	err = s.write(out)
	wt.Stop()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.record(ctx, &model.RunRecord{
		Bound:      bound,
		Mode:       mode,
		Count:      out.Count,
		Largest:    out.Largest,
		Workers:    res.Stats.Workers,
		WindowSize: res.Stats.WindowSize,
		Windows:    res.Stats.Windows,
		Duration:   elapsed,
		CreateTime: startedAt,
	})
	return out, nil
}

// Verify cross-checks the engine against trial division over [lo, hi]. Both
// outcomes are recorded in the history; a mismatch is returned as an error.
func (s *Runner) Verify(ctx context.Context, lo, hi uint64, chunks int) (*sieve.VerifyReport, error) {
	if s.engine == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "runner is not initialized")
	}

	ctx, span := s.tracer.Start(ctx, "service.Verify", trace.WithAttributes(
		attribute.String("verify.lo", strconv.FormatUint(lo, 10)),
		attribute.String("verify.hi", strconv.FormatUint(hi, 10)),
	))
	defer span.End()

	startedAt := s.clock.Now()
	report, err := s.engine.Verify(ctx, lo, hi, chunks)
	if err != nil && apperrors.GetErrorCode(err) != apperrors.CodeVerifyMismatch {
		span.RecordError(err)
		return nil, err
	}

	ok := err == nil
	rec := &model.RunRecord{
		Bound:      hi,
		Mode:       model.RunModeVerify,
		Workers:    s.engine.Workers(),
		WindowSize: s.engine.WindowSize(),
		Duration:   s.clock.Since(startedAt),
		Verified:   &ok,
		CreateTime: startedAt,
	}
	if report != nil {
		rec.Count = report.Checked
	}
	s.record(ctx, rec)

	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return report, nil
}

// History lists recorded runs, newest first.
func (s *Runner) History(ctx context.Context, filter repository.RunFilter) ([]*model.RunRecord, error) {
	if s.runs == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "run history is disabled (set database.enabled)")
	}
	return s.runs.ListRuns(ctx, filter)
}

// Prune deletes history entries created before t.
func (s *Runner) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s.runs == nil {
		return 0, apperrors.New(apperrors.CodeConfigError, "run history is disabled (set database.enabled)")
	}
	n, err := s.runs.PruneBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Pruned %d runs older than %s", n, before.Format(time.RFC3339))
	return n, nil
}

// HealthCheck performs a health check on the service.
func (s *Runner) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		if err := s.repos.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// Close stops the engine and closes the database connection.
func (s *Runner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Error("Failed to stop sieve engine: %v", err)
			firstErr = err
		}
	}
	if s.repos != nil {
		if err := s.repos.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		s.repos = nil
	}
	s.started = false
	return firstErr
}

func (s *Runner) write(r *model.SieveResult) error {
	oc := s.config.Output
	format, err := writer.ParseFormat(oc.Format)
	if err != nil {
		return err
	}
	typ, err := compression.ParseType(oc.Compression)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeOutputError, "invalid compression", err)
	}

	var sink *writer.Sink
	if s.stdout != nil && (oc.Path == "" || oc.Path == "-") {
		sink, err = writer.NewSink(s.stdout, typ)
	} else {
		sink, err = writer.Open(oc.Path, typ)
	}
	if err != nil {
		return err
	}

	if err := writer.WriteResult(sink, format, r); err != nil {
		sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	s.logger.Debug("Wrote %d bytes of %s output", sink.BytesWritten(), format)
	return nil
}

// record stores a run. History is best effort: a failure is logged and the
// run still succeeds.
func (s *Runner) record(ctx context.Context, rec *model.RunRecord) {
	if s.runs == nil {
		return
	}
	if err := s.runs.SaveRun(ctx, rec); err != nil {
		s.logger.Warn("Failed to record run: %v", err)
		return
	}
	s.logger.Debug("Recorded run %d", rec.ID)
}
