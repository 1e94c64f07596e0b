package run

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/seismicfusion/eqfusion/internal/cluster"
	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/observability"
	"github.com/seismicfusion/eqfusion/internal/poll"
	"github.com/seismicfusion/eqfusion/internal/score"
	"github.com/seismicfusion/eqfusion/internal/store"
)

// Batch runs every poller once with bounded concurrency, awaits completion,
// then runs one clustering pass and returns, per spec.md §5's batch mode.
// Awaiting N bounded goroutines uses golang.org/x/sync/errgroup, grounded in
// jordigilh-kubernaut's suite_test.go use of the same package for bounded
// concurrent fan-out.
func Batch(ctx context.Context, pollers []*poll.Poller, sinks store.Sinks, windowHours int, opts cluster.Options, weights score.Weights, metrics *observability.Metrics, logger *slog.Logger) ([]domain.PipelineRun, error) {
	runs := make([]domain.PipelineRun, len(pollers))

	if metrics != nil {
		metrics.PipelineRunning.Set(1)
		defer metrics.PipelineRunning.Set(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(pollers))

	for i, p := range pollers {
		i, p := i, p
		g.Go(func() error {
			runs[i] = p.RunOnce(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return runs, err
	}

	if err := ClusterPass(ctx, sinks, windowHours, opts, weights, metrics, logger); err != nil {
		logger.Error("cluster pass failed", "error", err)
		return runs, err
	}

	return runs, nil
}
