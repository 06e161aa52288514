// Package main is the entry point of the vault metrics service: it computes
// TVL, prices, reward rates and KPIs of the configured vaults and serves them
// over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/vault-metrics/internal/api"
	"github.com/yourorg/vault-metrics/internal/config"
	"github.com/yourorg/vault-metrics/internal/otel"
	"github.com/yourorg/vault-metrics/internal/scheduler"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("Command failed")
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vault-metrics",
		Short:         "Vault metrics service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newRefreshCmd(), newSeedCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the vault list and refresh snapshots in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
			defer shutdownTracer()

			return serve(cmd.Context(), cfg)
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) (scheduler.Report, error) {
				return s.RunCycle(ctx)
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store KPI targets and first snapshots of the configured vaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, s *scheduler.Scheduler) (scheduler.Report, error) {
				return s.Seed(ctx)
			})
		},
	}
}

func setup() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg)
	registerMetrics()
	return cfg, nil
}

// serve runs the API and, in snapshot mode, the refresher until ctx is done.
func serve(ctx context.Context, cfg config.Config) error {
	eval := newEvaluator(cfg)

	opts := api.Options{
		ServingMode:    cfg.ServingMode,
		FallbackMaxAge: cfg.FallbackMaxAge,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}
	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}
	opts.Signer = signer

	g, gctx := errgroup.WithContext(ctx)

	var source api.VaultSource
	switch cfg.ServingMode {
	case config.ServingLive:
		source = api.SourceFunc(eval.EvaluateAll)
	default:
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		source = api.SourceFunc(st.ListVaults)
		sched := newScheduler(cfg, eval, st)
		g.Go(func() error {
			return sched.Run(gctx)
		})
	}

	server := api.New(source, opts)
	g.Go(func() error {
		return server.Start(gctx, cfg.Addr())
	})

	logrus.WithFields(logrus.Fields{
		"addr":    cfg.Addr(),
		"mode":    cfg.ServingMode,
		"vaults":  len(eval.Vaults()),
		"refresh": cfg.RefreshInterval,
	}).Info("Vault metrics service started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runOnce runs a single scheduler operation against the store.
func runOnce(ctx context.Context, op func(context.Context, *scheduler.Scheduler) (scheduler.Report, error)) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := op(ctx, newScheduler(cfg, newEvaluator(cfg), st))
	if err != nil {
		return err
	}
	if len(report.Saved) == 0 && len(report.Failed) > 0 {
		return fmt.Errorf("no vault refreshed, %d failed", len(report.Failed))
	}
	return nil
}
