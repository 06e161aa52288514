// Package scheduler refreshes vault snapshots on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vault-metrics/internal/config"
	"github.com/yourorg/vault-metrics/internal/model"
	"github.com/yourorg/vault-metrics/internal/otel"
)

//go:generate mockgen -source=scheduler.go -destination=../mocks/scheduler.go -package=mocks

// Evaluator computes the metrics of one vault.
type Evaluator interface {
	Evaluate(ctx context.Context, vault string) (model.VaultMetrics, error)
}

// Store persists snapshots.
type Store interface {
	SaveKPITarget(ctx context.Context, vault string, kpis model.KPISet) error
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	VaultAddresses(ctx context.Context) ([]string, error)
}

// Outcomes of one vault refresh
const (
	outcomeSaved          = "saved"
	outcomeEvaluateFailed = "evaluate_failed"
	outcomeSaveFailed     = "save_failed"
)

var (
	cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vault_metrics_refresh_cycles_total",
		Help: "Refresh cycles run",
	})
	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vault_metrics_refresh_cycle_duration_seconds",
		Help:    "Duration of refresh cycles",
		Buckets: prometheus.DefBuckets,
	})
	vaultRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_metrics_vault_refreshes_total",
		Help: "Vault refreshes by outcome",
	}, []string{"outcome"})
	lastCycle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vault_metrics_last_refresh_timestamp_seconds",
		Help: "Unix time of the last finished refresh cycle",
	})
)

// Collectors returns the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{cyclesTotal, cycleDuration, vaultRefreshes, lastCycle}
}

// Report summarises one refresh cycle.
type Report struct {
	CycleID  string
	Started  time.Time
	Duration time.Duration
	Saved    []string
	Failed   map[string]error
}

// Scheduler runs refresh cycles.
type Scheduler struct {
	eval        Evaluator
	store       Store
	vaults      []config.Vault
	interval    time.Duration
	concurrency int
	clock       clockwork.Clock
	tracer      trace.Tracer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects the clock driving the ticker and snapshot timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithConcurrency bounds how many vaults are refreshed at once.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Scheduler refreshing vaults every interval.
func New(eval Evaluator, store Store, vaults []config.Vault, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		eval:        eval,
		store:       store,
		vaults:      vaults,
		interval:    interval,
		concurrency: 1,
		clock:       clockwork.NewRealClock(),
		tracer:      otel.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed stores the KPI targets of the configured vaults and writes their first snapshots.
func (s *Scheduler) Seed(ctx context.Context) (Report, error) {
	for _, v := range s.vaults {
		if err := s.store.SaveKPITarget(ctx, v.Address, v.KPIs); err != nil {
			return Report{}, fmt.Errorf("seed vault %s: %w", v.Address, err)
		}
	}
	return s.cycle(ctx, s.configured()), nil
}

// RunCycle refreshes every vault known to the store, or the configured
// vaults when the store has none yet. A failing vault is skipped.
func (s *Scheduler) RunCycle(ctx context.Context) (Report, error) {
	vaults, err := s.store.VaultAddresses(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list vaults: %w", err)
	}
	if len(vaults) == 0 {
		vaults = s.configured()
	}
	return s.cycle(ctx, vaults), nil
}

// Run seeds the store and then runs a cycle on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.Seed(ctx); err != nil {
		logrus.WithError(err).Error("Seeding failed")
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if _, err := s.RunCycle(ctx); err != nil {
				logrus.WithError(err).Error("Refresh cycle failed")
			}
		}
	}
}

func (s *Scheduler) configured() []string {
	out := make([]string, len(s.vaults))
	for i, v := range s.vaults {
		out[i] = v.Address
	}
	return out
}

func (s *Scheduler) cycle(ctx context.Context, vaults []string) Report {
	report := Report{
		CycleID: uuid.NewString(),
		Started: s.clock.Now(),
		Failed:  make(map[string]error),
	}
	log := logrus.WithField("cycle", report.CycleID)

	ctx, span := s.tracer.Start(ctx, "scheduler.RunCycle", trace.WithAttributes(
		attribute.String("cycle", report.CycleID),
		attribute.Int("vaults", len(vaults)),
	))
	defer span.End()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, vault := range vaults {
		vault := vault
		g.Go(func() error {
			outcome, err := s.refresh(ctx, vault)
			vaultRefreshes.WithLabelValues(outcome).Inc()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[vault] = err
				log.WithFields(logrus.Fields{
					"vault":   vault,
					"outcome": outcome,
				}).WithError(err).Warn("Vault refresh failed")
				return nil
			}
			report.Saved = append(report.Saved, vault)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = s.clock.Since(report.Started)
	cyclesTotal.Inc()
	cycleDuration.Observe(report.Duration.Seconds())
	lastCycle.Set(float64(s.clock.Now().Unix()))
	span.SetAttributes(attribute.Int("failed", len(report.Failed)))

	log.WithFields(logrus.Fields{
		"saved":    len(report.Saved),
		"failed":   len(report.Failed),
		"duration": report.Duration,
	}).Info("Refresh cycle finished")
	return report
}

func (s *Scheduler) refresh(ctx context.Context, vault string) (string, error) {
	m, err := s.eval.Evaluate(ctx, vault)
	if err != nil {
		otel.RecordError(ctx, err)
		return outcomeEvaluateFailed, err
	}

	computedAt := m.ComputedAt
	if computedAt.IsZero() {
		computedAt = s.clock.Now().UTC()
	}
	if err := s.store.SaveSnapshot(ctx, model.NewSnapshot(m, computedAt)); err != nil {
		return outcomeSaveFailed, err
	}
	return outcomeSaved, nil
}
