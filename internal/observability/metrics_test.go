package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMetricsForTesting_FieldsAreUsable(t *testing.T) {
	m := NewMetricsForTesting()

	m.FetchRetries.WithLabelValues("usgs").Inc()
	m.FetchFailures.WithLabelValues("usgs", "timeout").Inc()
	m.ParseErrors.WithLabelValues("usgs", "malformed_event").Inc()
	m.DeadLetterTotal.WithLabelValues("usgs", "validate").Inc()
	m.NormalizedEvents.WithLabelValues("usgs").Inc()
	m.ClusterPassDuration.Observe(1.5)
	m.ClusterCount.Set(3)
	m.UnifiedEventsTotal.Inc()
	m.PipelineRunning.Set(1)

	assert.NotNil(t, m)
}

func TestNewMetricsForTesting_IndependentRegistriesDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsForTesting()
		NewMetricsForTesting()
	})
}
