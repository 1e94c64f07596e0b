package run

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismicfusion/eqfusion/internal/cluster"
	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/observability"
	"github.com/seismicfusion/eqfusion/internal/poll"
	"github.com/seismicfusion/eqfusion/internal/registry"
	"github.com/seismicfusion/eqfusion/internal/score"
	"github.com/seismicfusion/eqfusion/internal/store/memstore"
	"github.com/seismicfusion/eqfusion/internal/transport"
)

const batchUSGSFixture = `{
  "features": [
    {
      "id": "us1000abcd",
      "properties": {"mag": 4.5, "magType": "mb", "place": "Example", "time": 1735689600000, "status": "reviewed"},
      "geometry": {"coordinates": [-97.1, 35.2, 10.5]}
    }
  ]
}`

func TestBatch_RunsAllPollersThenClustersOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(batchUSGSFixture))
	}))
	defer srv.Close()

	sinks := memstore.New()
	client := transport.NewClient(nil, testLogger(), observability.NewMetricsForTesting())

	sources := []registry.Source{
		{Tag: "usgs", BaseURL: srv.URL, Format: domain.FormatGeoJSONUSGS, MinPollInterval: time.Millisecond, Timeout: 2 * time.Second, MaxRetries: 1},
		{Tag: "emsc", BaseURL: srv.URL, Format: domain.FormatGeoJSONUSGS, MinPollInterval: time.Millisecond, Timeout: 2 * time.Second, MaxRetries: 1},
	}
	pollers := make([]*poll.Poller, len(sources))
	for i, s := range sources {
		pollers[i] = poll.New(s, client, sinks, observability.NewMetricsForTesting(), testLogger())
	}

	metrics := observability.NewMetricsForTesting()
	runs, err := Batch(context.Background(), pollers, sinks, 24, cluster.DefaultOptions(), score.DefaultWeights(), metrics, testLogger())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, domain.RunStatusOK, run.Status)
	}

	assert.Len(t, sinks.UnifiedEvents(), 1)
}
