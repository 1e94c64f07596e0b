// Package kafka adapts store.Sinks onto Kafka topics, one topic per record
// kind, adapted from the teacher's producer-only Writer (spec §4.K). Kafka
// has no native query path, so ReadWindow/ReadExistingCrosswalk are served
// from an embedded in-memory mirror that every write also lands in; this
// keeps the clustering pass backend-agnostic without requiring a consumer
// group just to read back what this same process just produced.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/store/memstore"
)

// Topics names the six outbound topics this adapter produces to.
type Topics struct {
	Raw         string
	Normalized  string
	Unified     string
	Crosswalk   string
	DeadLetter  string
	PipelineRun string
}

// DefaultTopics returns the spec's conventional topic names.
func DefaultTopics() Topics {
	return Topics{
		Raw:         "eqfusion-raw-envelopes",
		Normalized:  "eqfusion-normalized-events",
		Unified:     "eqfusion-unified-events",
		Crosswalk:   "eqfusion-crosswalk",
		DeadLetter:  "eqfusion-dead-letters",
		PipelineRun: "eqfusion-pipeline-runs",
	}
}

// Sinks implements store.Sinks over Kafka, with a local mirror for reads.
type Sinks struct {
	logger *slog.Logger
	mirror *memstore.Store

	raw         *kafkago.Writer
	normalized  *kafkago.Writer
	unified     *kafkago.Writer
	crosswalk   *kafkago.Writer
	deadLetter  *kafkago.Writer
	pipelineRun *kafkago.Writer
}

// NewSinks creates a Kafka-backed Sinks over brokers, producing to topics.
func NewSinks(brokers []string, topics Topics, logger *slog.Logger) *Sinks {
	newWriter := func(topic string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return &Sinks{
		logger:      logger,
		mirror:      memstore.New(),
		raw:         newWriter(topics.Raw),
		normalized:  newWriter(topics.Normalized),
		unified:     newWriter(topics.Unified),
		crosswalk:   newWriter(topics.Crosswalk),
		deadLetter:  newWriter(topics.DeadLetter),
		pipelineRun: newWriter(topics.PipelineRun),
	}
}

// Close flushes and closes every underlying Kafka writer.
func (s *Sinks) Close() error {
	for _, w := range []*kafkago.Writer{s.raw, s.normalized, s.unified, s.crosswalk, s.deadLetter, s.pipelineRun} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sinks) AppendRaw(ctx context.Context, envelope domain.RawEnvelope) error {
	msg, err := serialize(envelope.Source, envelope)
	if err != nil {
		return err
	}
	if err := s.raw.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce raw envelope: %w", err)
	}
	return s.mirror.AppendRaw(ctx, envelope)
}

func (s *Sinks) AppendNormalized(ctx context.Context, event domain.NormalizedEvent) error {
	msg, err := serialize(event.EventUID, event)
	if err != nil {
		return err
	}
	if err := s.normalized.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce normalized event: %w", err)
	}
	return s.mirror.AppendNormalized(ctx, event)
}

func (s *Sinks) UpsertUnified(ctx context.Context, event domain.UnifiedEvent) error {
	msg, err := serialize(event.UnifiedEventID, event)
	if err != nil {
		return err
	}
	if err := s.unified.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce unified event: %w", err)
	}
	return s.mirror.UpsertUnified(ctx, event)
}

func (s *Sinks) UpsertCrosswalk(ctx context.Context, rows []domain.CrosswalkRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i, row := range rows {
		msg, err := serialize(row.EventUID, row)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := s.crosswalk.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("produce crosswalk rows: %w", err)
	}
	return s.mirror.UpsertCrosswalk(ctx, rows)
}

func (s *Sinks) AppendDeadLetter(ctx context.Context, entry domain.DeadLetterEntry) error {
	msg, err := serialize(entry.Source+":"+entry.SourceEventID, entry)
	if err != nil {
		return err
	}
	if err := s.deadLetter.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce dead letter: %w", err)
	}
	return s.mirror.AppendDeadLetter(ctx, entry)
}

func (s *Sinks) AppendRun(ctx context.Context, run domain.PipelineRun) error {
	msg, err := serialize(run.RunID, run)
	if err != nil {
		return err
	}
	if err := s.pipelineRun.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce pipeline run: %w", err)
	}
	return s.mirror.AppendRun(ctx, run)
}

func (s *Sinks) ReadWindow(ctx context.Context, since, until time.Time) ([]domain.NormalizedEvent, error) {
	return s.mirror.ReadWindow(ctx, since, until)
}

func (s *Sinks) ReadExistingCrosswalk(ctx context.Context, eventUID string) (string, bool, error) {
	return s.mirror.ReadExistingCrosswalk(ctx, eventUID)
}

func serialize(key string, v any) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %T: %w", v, err)
	}
	return kafkago.Message{Key: []byte(key), Value: data}, nil
}
