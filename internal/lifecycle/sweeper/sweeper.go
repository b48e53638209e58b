// Package sweeper feeds timed-out pending entities back into the engine as
// Expired commands. It is driven by an external scheduler; each Sweep call
// is one tick.
package sweeper

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pixcore/internal/lifecycle"
	"pixcore/internal/platform/metrics"
	dErrors "pixcore/pkg/domain-errors"
)

// Executor is the engine surface the sweeper needs.
type Executor interface {
	ExecuteExpire(ctx context.Context, id string) error
}

// Rule pairs a set of pending states with their timeout. Cutoffs differ per
// claim kind (plain pending keys expire in minutes, ownership claims in
// days) and come from configuration.
type Rule struct {
	States []lifecycle.State
	Cutoff time.Duration
}

// ExecutorFunc adapts a closure over a family engine.
type ExecutorFunc func(ctx context.Context, id string) error

func (f ExecutorFunc) ExecuteExpire(ctx context.Context, id string) error { return f(ctx, id) }

// Lister is the repository slice the sweeper reads.
type Lister interface {
	ListIDsByStateOlderThan(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]string, error)
}

// ListerFor adapts a lifecycle repository into a Lister.
func ListerFor[E lifecycle.Entity](repo lifecycle.Repository[E]) Lister {
	return listerFunc(func(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]string, error) {
		entities, err := repo.ListByStateOlderThan(ctx, states, cutoff)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(entities))
		for _, e := range entities {
			ids = append(ids, e.GetMeta().ID)
		}
		return ids, nil
	})
}

type listerFunc func(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]string, error)

func (f listerFunc) ListIDsByStateOlderThan(ctx context.Context, states []lifecycle.State, cutoff time.Time) ([]string, error) {
	return f(ctx, states, cutoff)
}

// Report summarizes one sweep. Skipped entities moved out of their pending
// state between the scan and the transition; that race is benign, the
// engine's checks resolved it.
type Report struct {
	Expired  []string
	Skipped  []string
	Failures map[string]error
}

type Sweeper struct {
	family      string
	executor    Executor
	lister      Lister
	rules       []Rule
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	clock       func() time.Time
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func WithConcurrency(n int) Option {
	return func(s *Sweeper) { s.concurrency = n }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) { s.clock = clock }
}

func New(family string, executor Executor, lister Lister, rules []Rule, opts ...Option) *Sweeper {
	s := &Sweeper{
		family:      family,
		executor:    executor,
		lister:      lister,
		rules:       rules,
		concurrency: 8,
		logger:      slog.Default(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep scans every rule and fires Expired for each match. One entity's
// failure never aborts the rest; failures are collected in the report.
// Sweeping is idempotent: a second run sees either no matches or entities
// already settled, which the engine turns into no-ops.
func (s *Sweeper) Sweep(ctx context.Context) Report {
	s.metrics.IncSweepRun(s.family)
	now := s.clock()

	report := Report{Failures: make(map[string]error)}
	var mu sync.Mutex

	seen := make(map[string]bool)
	var ids []string
	for _, rule := range s.rules {
		matched, err := s.lister.ListIDsByStateOlderThan(ctx, rule.States, now.Add(-rule.Cutoff))
		if err != nil {
			s.logger.ErrorContext(ctx, "sweep scan failed",
				"family", s.family,
				"states", rule.States,
				"error", err,
			)
			continue
		}
		for _, id := range matched {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := s.executor.ExecuteExpire(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Expired = append(report.Expired, id)
			case dErrors.HasCode(err, dErrors.CodeInvalidState), dErrors.HasCode(err, dErrors.CodeNotFound):
				report.Skipped = append(report.Skipped, id)
			default:
				report.Failures[id] = err
				s.logger.WarnContext(gctx, "sweep transition failed",
					"family", s.family,
					"entity_id", id,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Expired)
	sort.Strings(report.Skipped)

	s.metrics.AddSweepExpired(s.family, len(report.Expired))
	s.metrics.AddSweepFailures(s.family, len(report.Failures))
	s.logger.InfoContext(ctx, "sweep complete",
		"family", s.family,
		"expired", len(report.Expired),
		"skipped", len(report.Skipped),
		"failed", len(report.Failures),
	)
	return report
}
