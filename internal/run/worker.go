package run

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seismicfusion/eqfusion/internal/cluster"
	"github.com/seismicfusion/eqfusion/internal/observability"
	"github.com/seismicfusion/eqfusion/internal/poll"
	"github.com/seismicfusion/eqfusion/internal/score"
	"github.com/seismicfusion/eqfusion/internal/store"
)

// Scheduler runs the long-lived worker-mode process shape: one goroutine
// per source polling on its own cadence, plus one goroutine running the
// clustering pass on its own cadence, per spec.md §5's "long-lived worker
// mode" (plain goroutines and sync/atomic, no generic fan-out library,
// grounded in the teacher's pipeline.Pipeline.Run loop shape).
type Scheduler struct {
	Pollers         []*poll.Poller
	Sinks           store.Sinks
	WindowHours     int
	ClusterInterval time.Duration
	ClusterOptions  cluster.Options
	ScoringWeights  score.Weights
	Metrics         *observability.Metrics
	Logger          *slog.Logger

	ready          atomic.Bool
	clusterRanOnce atomic.Bool
	sourcesMu      sync.Mutex
	sourcesSet     map[string]bool
}

// Ready reports whether every configured source has completed at least one
// poll cycle and the clustering pass has run at least once, satisfying
// httpadapter.ReadinessChecker.
func (s *Scheduler) Ready() bool {
	return s.ready.Load()
}

// Run starts one ticker goroutine per poller plus the clustering-pass
// goroutine, and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sourcesSet = make(map[string]bool, len(s.Pollers))

	if s.Metrics != nil {
		s.Metrics.PipelineRunning.Set(1)
		defer s.Metrics.PipelineRunning.Set(0)
	}

	var wg sync.WaitGroup
	for _, p := range s.Pollers {
		wg.Add(1)
		go func(p *poll.Poller) {
			defer wg.Done()
			s.runSourceLoop(ctx, p)
		}(p)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runClusterLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
}

func (s *Scheduler) runSourceLoop(ctx context.Context, p *poll.Poller) {
	ticker := time.NewTicker(p.Source.MinPollInterval)
	defer ticker.Stop()

	p.RunOnce(ctx)
	s.markSourceDone(p.Source.Tag)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
			s.markSourceDone(p.Source.Tag)
		}
	}
}

func (s *Scheduler) markSourceDone(tag string) {
	s.sourcesMu.Lock()
	s.sourcesSet[tag] = true
	done := len(s.sourcesSet)
	total := len(s.Pollers)
	s.sourcesMu.Unlock()

	if done >= total {
		s.maybeMarkReady()
	}
}

func (s *Scheduler) runClusterLoop(ctx context.Context) {
	ticker := time.NewTicker(s.ClusterInterval)
	defer ticker.Stop()

	if err := ClusterPass(ctx, s.Sinks, s.WindowHours, s.ClusterOptions, s.ScoringWeights, s.Metrics, s.Logger); err != nil {
		s.Logger.Error("cluster pass failed", "error", err)
	} else {
		s.clusterRanOnce.Store(true)
		s.maybeMarkReady()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ClusterPass(ctx, s.Sinks, s.WindowHours, s.ClusterOptions, s.ScoringWeights, s.Metrics, s.Logger); err != nil {
				s.Logger.Error("cluster pass failed", "error", err)
				continue
			}
			s.clusterRanOnce.Store(true)
			s.maybeMarkReady()
		}
	}
}

// maybeMarkReady flips ready once every source has polled at least once and
// the clustering pass has run at least once.
func (s *Scheduler) maybeMarkReady() {
	s.sourcesMu.Lock()
	allSourcesDone := len(s.sourcesSet) >= len(s.Pollers)
	s.sourcesMu.Unlock()

	if allSourcesDone && s.clusterRanOnce.Load() {
		s.ready.Store(true)
	}
}
