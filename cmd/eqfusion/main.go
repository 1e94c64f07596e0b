// Command eqfusion runs the earthquake event-fusion pipeline: polling
// agency feeds, normalizing and validating records, clustering them
// spatio-temporally, and fusing clusters into unified events.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seismicfusion/eqfusion/internal/adapter/httpadapter"
	kafkaadapter "github.com/seismicfusion/eqfusion/internal/adapter/kafka"
	"github.com/seismicfusion/eqfusion/internal/cluster"
	"github.com/seismicfusion/eqfusion/internal/config"
	"github.com/seismicfusion/eqfusion/internal/observability"
	"github.com/seismicfusion/eqfusion/internal/poll"
	"github.com/seismicfusion/eqfusion/internal/registry"
	"github.com/seismicfusion/eqfusion/internal/run"
	"github.com/seismicfusion/eqfusion/internal/score"
	"github.com/seismicfusion/eqfusion/internal/store"
	"github.com/seismicfusion/eqfusion/internal/store/memstore"
	"github.com/seismicfusion/eqfusion/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	sinks := newSinks(cfg, logger)

	sources := registry.ByTag(registry.DefaultSources(), cfg.SourcesEnabled)
	if len(sources) == 0 {
		logger.Error("no sources enabled")
		os.Exit(1)
	}

	client := transport.NewClient(nil, logger, metrics)
	retryOverride := retryOverrideFromConfig(cfg)
	pollers := make([]*poll.Poller, len(sources))
	for i, s := range sources {
		if d, ok, err := config.PollIntervalOverride(s.Tag); err != nil {
			logger.Error("invalid poll interval override", "source", s.Tag, "error", err)
			os.Exit(1)
		} else if ok {
			s.MinPollInterval = d
		}
		pollers[i] = poll.New(s, client, sinks, metrics, logger)
		pollers[i].RetryOverride = retryOverride
	}

	clusterOpts := cluster.Options{
		EpsKm:          cfg.ClusterEpsKm,
		DtSeconds:      cfg.ClusterDtSeconds,
		DMag:           cfg.ClusterDMag,
		MatchThreshold: cfg.MatchThreshold,
		NaiveThreshold: cluster.DefaultOptions().NaiveThreshold,
	}
	weights := score.Weights{
		Time:      cfg.ScoringWeightTime,
		Distance:  cfg.ScoringWeightDistance,
		Magnitude: cfg.ScoringWeightMagnitude,
	}
	clusterOpts.Weights = weights

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.RunMode {
	case "batch":
		runBatch(ctx, cfg, pollers, sinks, clusterOpts, weights, metrics, logger)
	default:
		runWorker(ctx, cfg, pollers, sinks, clusterOpts, weights, metrics, logger)
	}
}

// retryOverrideFromConfig builds a transport.RetryOverride from whichever
// RETRY_*/TIMEOUT_MS environment variables were explicitly set, leaving the
// registry's own per-source tuning in force for the rest (spec §6).
func retryOverrideFromConfig(cfg *config.Config) transport.RetryOverride {
	var o transport.RetryOverride
	if cfg.RetryMaxAttemptsSet {
		v := cfg.RetryMaxAttempts
		o.MaxRetries = &v
	}
	if cfg.RetryBaseMsSet {
		v := time.Duration(cfg.RetryBaseMs) * time.Millisecond
		o.BaseDelay = &v
	}
	if cfg.RetryCapMsSet {
		v := time.Duration(cfg.RetryCapMs) * time.Millisecond
		o.CapDelay = &v
	}
	if cfg.TimeoutMsSet {
		v := time.Duration(cfg.TimeoutMs) * time.Millisecond
		o.Timeout = &v
	}
	return o
}

func newSinks(cfg *config.Config, logger *slog.Logger) store.Sinks {
	if cfg.SinkBackend == "kafka" {
		return kafkaadapter.NewSinks(cfg.KafkaBrokers, kafkaadapter.DefaultTopics(), logger)
	}
	return memstore.New()
}

func runWorker(ctx context.Context, cfg *config.Config, pollers []*poll.Poller, sinks store.Sinks, opts cluster.Options, weights score.Weights, metrics *observability.Metrics, logger *slog.Logger) {
	sched := &run.Scheduler{
		Pollers:         pollers,
		Sinks:           sinks,
		WindowHours:     cfg.WindowHours,
		ClusterInterval: time.Duration(cfg.ClusterIntervalSeconds) * time.Second,
		ClusterOptions:  opts,
		ScoringWeights:  weights,
		Metrics:         metrics,
		Logger:          logger,
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, sched, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go sched.Run(ctx)

	<-ctx.Done()
	logger.Info("shutting down")
	shutdown(cfg, srv, sinks, logger)
}

func runBatch(ctx context.Context, cfg *config.Config, pollers []*poll.Poller, sinks store.Sinks, opts cluster.Options, weights score.Weights, metrics *observability.Metrics, logger *slog.Logger) {
	runs, err := run.Batch(ctx, pollers, sinks, cfg.WindowHours, opts, weights, metrics, logger)
	if err != nil {
		logger.Error("batch run failed", "error", err)
	}
	logger.Info("batch run complete", "runs", len(runs))
	shutdown(cfg, nil, sinks, logger)
}

func shutdown(cfg *config.Config, srv *httpadapter.Server, sinks store.Sinks, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if closer, ok := sinks.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("sinks close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
