// Package store declares the Sinks interface the rest of the pipeline writes
// through, so the poller, clustering/unification run, and HTTP admin surface
// never import a concrete backend directly (spec §4.J/§4.K).
package store

import (
	"context"
	"time"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// Sinks bundles every persistence operation the pipeline needs. A single
// implementation may back all of them (e.g. one in-memory store, one Kafka
// producer set), or callers may compose per-operation adapters; the
// interface only fixes the contract.
type Sinks interface {
	// AppendRaw records one fetch's provenance, verbatim, before parsing.
	AppendRaw(ctx context.Context, envelope domain.RawEnvelope) error

	// AppendNormalized records a validated NormalizedEvent so a later
	// clustering pass can read it back via ReadWindow.
	AppendNormalized(ctx context.Context, event domain.NormalizedEvent) error

	// UpsertUnified writes or replaces a unified event keyed by
	// UnifiedEventID.
	UpsertUnified(ctx context.Context, event domain.UnifiedEvent) error

	// UpsertCrosswalk writes or replaces crosswalk rows keyed by the
	// composite (EventUID, UnifiedEventID) pair: a member migrating to a
	// new unified event writes a new row rather than overwriting the row
	// for its previous one, which implementations leave in place.
	UpsertCrosswalk(ctx context.Context, rows []domain.CrosswalkRow) error

	// AppendDeadLetter records a payload or event the pipeline rejected.
	AppendDeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error

	// AppendRun records one pipeline_run telemetry row.
	AppendRun(ctx context.Context, run domain.PipelineRun) error

	// ReadWindow returns every NormalizedEvent with OriginTimeUTC in
	// [since, until), across all sources, for the clustering pass.
	ReadWindow(ctx context.Context, since, until time.Time) ([]domain.NormalizedEvent, error)

	// ReadExistingCrosswalk returns the unified_event_id already recorded
	// for eventUID, if any, supporting unify.ExistingCrosswalk lookups.
	ReadExistingCrosswalk(ctx context.Context, eventUID string) (unifiedEventID string, ok bool, err error)
}
