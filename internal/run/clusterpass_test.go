package run

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismicfusion/eqfusion/internal/cluster"
	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/observability"
	"github.com/seismicfusion/eqfusion/internal/score"
	"github.com/seismicfusion/eqfusion/internal/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withFixedClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func TestClusterPass_FusesNearbyEventsIntoOneUnifiedEvent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	withFixedClock(t, now)

	sinks := memstore.New()
	ctx := context.Background()
	require.NoError(t, sinks.AppendNormalized(ctx, domain.NormalizedEvent{
		EventUID: "usgs:1", Source: "usgs", Status: domain.StatusReviewed,
		Latitude: 35.0, Longitude: -97.0, MagnitudeValue: 4.5, OriginTimeUTC: now.Add(-time.Hour),
	}))
	require.NoError(t, sinks.AppendNormalized(ctx, domain.NormalizedEvent{
		EventUID: "emsc:1", Source: "emsc", Status: domain.StatusAutomatic,
		Latitude: 35.01, Longitude: -97.01, MagnitudeValue: 4.6, OriginTimeUTC: now.Add(-time.Hour).Add(5 * time.Second),
	}))

	metrics := observability.NewMetricsForTesting()
	err := ClusterPass(ctx, sinks, 24, cluster.DefaultOptions(), score.DefaultWeights(), metrics, testLogger())
	require.NoError(t, err)

	unified := sinks.UnifiedEvents()
	require.Len(t, unified, 1)
	assert.Equal(t, 2, unified[0].NumSources)
}

func TestClusterPass_EmptyWindowIsANoop(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	withFixedClock(t, now)

	sinks := memstore.New()
	metrics := observability.NewMetricsForTesting()

	err := ClusterPass(context.Background(), sinks, 24, cluster.DefaultOptions(), score.DefaultWeights(), metrics, testLogger())
	require.NoError(t, err)
	assert.Empty(t, sinks.UnifiedEvents())
}
