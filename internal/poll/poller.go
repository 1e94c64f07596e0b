// Package poll runs the per-source fetch→parse→validate→emit cycle, per
// spec §4.E; package run schedules one goroutine per configured source.
package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/observability"
	"github.com/seismicfusion/eqfusion/internal/parse"
	"github.com/seismicfusion/eqfusion/internal/registry"
	"github.com/seismicfusion/eqfusion/internal/store"
	"github.com/seismicfusion/eqfusion/internal/transport"
	"github.com/seismicfusion/eqfusion/internal/validate"
)

// Poller runs one source's poll cycle: fetch the source's feed, parse it
// into canonical events, validate each one, and emit the survivors (and the
// rejects) to the configured sinks.
type Poller struct {
	Source  registry.Source
	Client  *transport.Client
	Sinks   store.Sinks
	Metrics *observability.Metrics
	Logger  *slog.Logger

	// RetryOverride layers config-driven retry/timeout settings (spec §6)
	// onto the registry source's own tuned RetryPolicy. Zero value is a
	// no-op, so the registry's per-source values win unless the operator
	// explicitly configured an override.
	RetryOverride transport.RetryOverride
}

// New builds a Poller for one registry source. metrics may be nil, in which
// case per-stage counters are skipped.
func New(source registry.Source, client *transport.Client, sinks store.Sinks, metrics *observability.Metrics, logger *slog.Logger) *Poller {
	return &Poller{Source: source, Client: client, Sinks: sinks, Metrics: metrics, Logger: logger}
}

// RunOnce executes one fetch→parse→validate→emit cycle and returns the
// PipelineRun telemetry row for it. A bad individual record never fails the
// run; only a failed fetch does (retries exhausted, a non-retryable status,
// or the deadline reached).
func (p *Poller) RunOnce(ctx context.Context) domain.PipelineRun {
	now := domain.Clock().Now().UTC()
	run := domain.PipelineRun{
		RunID:          uuid.NewString(),
		StartedAt:      now,
		SourcesFetched: []string{p.Source.Tag},
	}

	policy := p.RetryOverride.Apply(transport.DefaultRetryPolicy(p.Source.MaxRetries, p.Source.Timeout))

	body, err := p.Client.Fetch(ctx, p.Source.Tag, p.Source.BaseURL, p.Source.MinPollInterval, policy)
	if err != nil {
		p.finishFailed(ctx, &run, err)
		return run
	}

	envelope := domain.RawEnvelope{
		Source:    p.Source.Tag,
		RawBytes:  body,
		FetchedAt: now,
	}
	if err := p.Sinks.AppendRaw(ctx, envelope); err != nil {
		p.Logger.Error("append raw envelope failed", "source", p.Source.Tag, "error", err)
	}

	events, parseErrs := parse.Dispatch(p.Source.Format, p.Source.Tag, body)
	for _, perr := range parseErrs {
		p.Logger.Warn("parse error", "source", p.Source.Tag, "kind", perr.Kind, "error", perr.Err)
		if p.Metrics != nil {
			p.Metrics.ParseErrors.WithLabelValues(p.Source.Tag, string(perr.Kind)).Inc()
			p.Metrics.DeadLetterTotal.WithLabelValues(p.Source.Tag, "parse").Inc()
		}
		p.deadLetterParseError(ctx, perr, now)
	}

	emitted, deadLettered := p.emitEvents(ctx, events, now)

	run.FinishedAt = domain.Clock().Now().UTC()
	run.Status = domain.RunStatusOK
	run.RawEventsCount = emitted
	run.DeadLetterCount = deadLettered + len(parseErrs)
	run.DurationSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()

	p.Logger.Info("poll cycle complete", "source", p.Source.Tag, "emitted", emitted, "dead_letters", run.DeadLetterCount)
	p.appendRun(ctx, run)

	return run
}

func (p *Poller) finishFailed(ctx context.Context, run *domain.PipelineRun, err error) {
	run.FinishedAt = domain.Clock().Now().UTC()
	run.Status = domain.RunStatusFailed
	run.ErrorMessage = err.Error()
	run.DurationSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	p.Logger.Error("poll cycle failed", "source", p.Source.Tag, "error", err)
	p.appendRun(ctx, *run)
}

// emitEvents validates each parsed event, routing failures to the
// dead-letter sink and survivors to the normalized-event sink, returning the
// counts of each.
func (p *Poller) emitEvents(ctx context.Context, events []domain.NormalizedEvent, now time.Time) (emitted, deadLettered int) {
	for _, e := range events {
		e.FetchedAt = now
		e.IngestedAt = domain.Clock().Now().UTC()

		if verrs := validate.Event(e, now); len(verrs) > 0 {
			deadLettered++
			for _, verr := range verrs {
				p.Logger.Warn("validation error", "event_uid", e.EventUID, "kind", verr.Kind, "message", verr.Message)
			}
			if p.Metrics != nil {
				p.Metrics.DeadLetterTotal.WithLabelValues(p.Source.Tag, "validate").Inc()
			}
			entry := validate.ToDeadLetter(e, verrs, now)
			if err := p.Sinks.AppendDeadLetter(ctx, entry); err != nil {
				p.Logger.Error("append dead letter failed", "event_uid", e.EventUID, "error", err)
			}
			continue
		}

		if err := p.Sinks.AppendNormalized(ctx, e); err != nil {
			p.Logger.Error("append normalized event failed", "event_uid", e.EventUID, "error", err)
			continue
		}
		if p.Metrics != nil {
			p.Metrics.NormalizedEvents.WithLabelValues(p.Source.Tag).Inc()
		}
		emitted++
	}
	return emitted, deadLettered
}

func (p *Poller) deadLetterParseError(ctx context.Context, perr *domain.ParseError, now time.Time) {
	entry := domain.DeadLetterEntry{
		Source:        perr.Source,
		SourceEventID: perr.SourceEventID,
		RawPayload:    perr.RawBytes,
		ErrorMessages: []string{perr.Error()},
		CreatedAt:     now,
	}
	if err := p.Sinks.AppendDeadLetter(ctx, entry); err != nil {
		p.Logger.Error("append dead letter failed", "source", perr.Source, "error", err)
	}
}

func (p *Poller) appendRun(ctx context.Context, run domain.PipelineRun) {
	if err := p.Sinks.AppendRun(ctx, run); err != nil {
		p.Logger.Error("append pipeline run failed", "run_id", run.RunID, "error", err)
	}
}
