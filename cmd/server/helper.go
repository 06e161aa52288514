package main

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/vault-metrics/internal/api"
	"github.com/yourorg/vault-metrics/internal/cache"
	"github.com/yourorg/vault-metrics/internal/chain"
	"github.com/yourorg/vault-metrics/internal/config"
	"github.com/yourorg/vault-metrics/internal/evaluator"
	"github.com/yourorg/vault-metrics/internal/fallback"
	"github.com/yourorg/vault-metrics/internal/fetch"
	"github.com/yourorg/vault-metrics/internal/integrity"
	"github.com/yourorg/vault-metrics/internal/ledger"
	"github.com/yourorg/vault-metrics/internal/retry"
	"github.com/yourorg/vault-metrics/internal/scheduler"
	"github.com/yourorg/vault-metrics/internal/store"
)

// Transport-level retries of the REST and GraphQL upstreams. Chain reads
// retry through their own policy instead.
const httpRetries = 2

// setupLogging configures logrus from the configuration
func setupLogging(cfg config.Config) {
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// registerMetrics registers the metrics of every package with the default registry
func registerMetrics() {
	groups := [][]prometheus.Collector{
		api.Collectors(),
		cache.Collectors(),
		fallback.Collectors(),
		retry.Collectors(),
		scheduler.Collectors(),
	}
	for _, g := range groups {
		prometheus.MustRegister(g...)
	}
}

// newEvaluator wires the upstream clients into an evaluator for the configured vaults
func newEvaluator(cfg config.Config) *evaluator.Evaluator {
	restClient := fetch.NewRetryClient(httpRetries, cfg.UpstreamTimeout)
	chainClient := fetch.NewRetryClient(0, cfg.UpstreamTimeout)

	return evaluator.New(evaluator.Deps{
		Chain:   chain.NewClient(cfg.TonClientURL, chainClient, cfg.RetryPolicy("chain")),
		Dex:     fetch.NewDedustClient(cfg.DedustAPIURL, restClient),
		Tokens:  fetch.NewTonAPIClient(cfg.TonAPIURL, cfg.TonAPIKey, cfg.TonAPIRPS, restClient),
		Ledgers: ledger.NewReader(cfg.IPFSGateway, restClient),
	}, config.DefaultVaults)
}

func newScheduler(cfg config.Config, eval *evaluator.Evaluator, st *store.Store) *scheduler.Scheduler {
	return scheduler.New(eval, st, eval.Vaults(), cfg.RefreshInterval,
		scheduler.WithConcurrency(cfg.RefreshConcurrency))
}

func openStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	rdb, err := store.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return store.New(rdb), nil
}

// newSigner returns nil when response signing is not configured
func newSigner(cfg config.Config) (*integrity.Signer, error) {
	if cfg.SigningKey == "" {
		return nil, nil
	}
	return integrity.NewSigner(cfg.SigningKey)
}
