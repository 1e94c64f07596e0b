package region

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		lat, lon   float64
		wantRegion domain.Region
	}{
		{"california", 36.7, -121.6, domain.RegionAmericas},
		{"chile", -33.4, -70.6, domain.RegionAmericas},
		{"italy", 42.5, 13.3, domain.RegionEurope},
		// The Europe box starts at lat 30, so northern Morocco falls in it.
		{"morocco_north_of_30n", 31.6, -7.9, domain.RegionEurope},
		{"japan", 36.2, 138.2, domain.RegionAsiaPacific},
		{"new_zealand", -41.3, 174.8, domain.RegionAsiaPacific},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantRegion, Classify(tc.lat, tc.lon))
		})
	}
}

func TestRegionPriorityRank_KnownAndUnknownSource(t *testing.T) {
	assert.Equal(t, 0, RegionPriorityRank(domain.RegionAmericas, "usgs"))
	assert.Equal(t, 1, RegionPriorityRank(domain.RegionAmericas, "emsc"))
	assert.Equal(t, 6, RegionPriorityRank(domain.RegionAmericas, "nonexistent"))
}

func TestPreferred_ReviewedBeatsAutomaticRegardlessOfRegionRank(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	automatic := domain.NormalizedEvent{EventUID: "usgs:1", Source: "usgs", Status: domain.StatusAutomatic, UpdatedAt: now}
	reviewed := domain.NormalizedEvent{EventUID: "geonet:1", Source: "geonet", Status: domain.StatusReviewed, UpdatedAt: now}

	got := Preferred(domain.RegionAmericas, []domain.NormalizedEvent{automatic, reviewed})
	assert.Equal(t, "geonet:1", got.EventUID)
}

func TestPreferred_HigherRegionRankWins(t *testing.T) {
	older := domain.NormalizedEvent{
		EventUID: "usgs:2", Source: "usgs", Status: domain.StatusAutomatic,
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := domain.NormalizedEvent{
		EventUID: "emsc:2", Source: "emsc", Status: domain.StatusAutomatic,
		UpdatedAt: time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
	}

	// Both in priorityTables[RegionEurope], emsc ranks higher than usgs, so
	// emsc wins on region rank before UpdatedAt is even consulted.
	got := Preferred(domain.RegionEurope, []domain.NormalizedEvent{older, newer})
	assert.Equal(t, "emsc:2", got.EventUID)
}

func TestPreferred_SingleMember(t *testing.T) {
	only := domain.NormalizedEvent{EventUID: "isc:1", Source: "isc"}
	got := Preferred(domain.RegionAfrica, []domain.NormalizedEvent{only})
	assert.Equal(t, "isc:1", got.EventUID)
}
