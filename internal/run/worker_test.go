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

const workerUSGSFixture = `{
  "features": [
    {
      "id": "us1000abcd",
      "properties": {"mag": 4.5, "magType": "mb", "place": "Example", "time": 1735689600000, "status": "reviewed"},
      "geometry": {"coordinates": [-97.1, 35.2, 10.5]}
    }
  ]
}`

func TestScheduler_BecomesReadyAfterFirstCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(workerUSGSFixture))
	}))
	defer srv.Close()

	sinks := memstore.New()
	client := transport.NewClient(nil, testLogger(), observability.NewMetricsForTesting())
	source := registry.Source{Tag: "usgs", BaseURL: srv.URL, Format: domain.FormatGeoJSONUSGS, MinPollInterval: 50 * time.Millisecond, Timeout: 2 * time.Second, MaxRetries: 1}
	p := poll.New(source, client, sinks, observability.NewMetricsForTesting(), testLogger())

	sched := &Scheduler{
		Pollers:         []*poll.Poller{p},
		Sinks:           sinks,
		WindowHours:     24,
		ClusterInterval: 50 * time.Millisecond,
		ClusterOptions:  cluster.DefaultOptions(),
		ScoringWeights:  score.DefaultWeights(),
		Metrics:         observability.NewMetricsForTesting(),
		Logger:          testLogger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, sched.Ready, time.Second, 5*time.Millisecond)

	<-done
	assert.NotEmpty(t, sinks.Runs())
}
