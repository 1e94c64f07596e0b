// Package run wires pollers, the clustering engine, and the unifier into
// the two process shapes spec.md §5 describes: a long-lived worker mode
// with one ticker goroutine per source plus an independent clustering
// cadence, and a single-shot batch mode that fans out, clusters once, and
// exits.
package run

import (
	"context"
	"log/slog"
	"time"

	"github.com/seismicfusion/eqfusion/internal/cluster"
	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/observability"
	"github.com/seismicfusion/eqfusion/internal/score"
	"github.com/seismicfusion/eqfusion/internal/store"
	"github.com/seismicfusion/eqfusion/internal/unify"
)

// ClusterPass runs one read-window→cluster→unify→upsert cycle, per spec's
// data flow G→H+F+I. The window slides by the max origin_time_utc observed
// in the read window itself, not by wall clock, for deterministic replay
// (spec.md's Open Question decision, recorded in DESIGN.md).
func ClusterPass(ctx context.Context, sinks store.Sinks, windowHours int, opts cluster.Options, weights score.Weights, metrics *observability.Metrics, logger *slog.Logger) error {
	start := time.Now()

	all, err := sinks.ReadWindow(ctx, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return err
	}
	var latest time.Time
	for _, e := range all {
		if e.OriginTimeUTC.After(latest) {
			latest = e.OriginTimeUTC
		}
	}
	since := latest.Add(-time.Duration(windowHours) * time.Hour)

	events, err := sinks.ReadWindow(ctx, since, latest.Add(time.Nanosecond))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		metrics.ClusterCount.Set(0)
		return nil
	}

	assignment := cluster.Cluster(events, opts)
	byCluster := make(map[string][]domain.NormalizedEvent, len(assignment))
	for _, e := range events {
		key := assignment[e.EventUID]
		byCluster[key] = append(byCluster[key], e)
	}

	existing := func(eventUID string) (string, bool) {
		id, ok, lookupErr := sinks.ReadExistingCrosswalk(ctx, eventUID)
		if lookupErr != nil {
			logger.Warn("crosswalk lookup failed", "event_uid", eventUID, "error", lookupErr)
			return "", false
		}
		return id, ok
	}

	for _, members := range byCluster {
		result := unify.Unify(members, existing, weights)

		if err := sinks.UpsertUnified(ctx, result.Unified); err != nil {
			logger.Error("upsert unified event failed", "unified_event_id", result.Unified.UnifiedEventID, "error", err)
			continue
		}
		if err := sinks.UpsertCrosswalk(ctx, result.Crosswalk); err != nil {
			logger.Error("upsert crosswalk failed", "unified_event_id", result.Unified.UnifiedEventID, "error", err)
		}
		metrics.UnifiedEventsTotal.Inc()
	}

	metrics.ClusterCount.Set(float64(len(byCluster)))
	metrics.ClusterPassDuration.Observe(time.Since(start).Seconds())
	logger.Info("cluster pass complete", "events", len(events), "clusters", len(byCluster))

	return nil
}
