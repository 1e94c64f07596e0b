// Package region classifies earthquake locations into coarse geographic
// buckets and orders candidate source agencies by region-aware priority, per
// spec §4.F.
package region

import (
	"sort"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// Classify maps a (lat, lon) pair to one of the four region buckets using
// the boxed longitude/latitude ranges in spec §4.F. The ranges overlap at
// their edges (e.g. lon = -30 with lat >= 30 fits both Americas and Europe);
// checks run in the fixed order below so the first matching box wins.
func Classify(lat, lon float64) domain.Region {
	switch {
	case lon >= -170 && lon <= -30:
		return domain.RegionAmericas
	case lon >= -30 && lon <= 45 && lat >= 30:
		return domain.RegionEurope
	case lon >= -20 && lon <= 55 && lat < 30:
		return domain.RegionAfrica
	default:
		// asia_pacific: lon > 45, wrapping through lon < -170.
		return domain.RegionAsiaPacific
	}
}

// priorityTables lists, per region, the fixed source-order from the spec
// glossary. Lower index is higher priority.
var priorityTables = map[domain.Region][]string{
	domain.RegionAmericas:    {"usgs", "emsc", "gfz", "isc", "ipgp", "geonet"},
	domain.RegionEurope:      {"emsc", "gfz", "usgs", "isc", "ipgp", "geonet"},
	domain.RegionAfrica:      {"isc", "emsc", "ipgp", "usgs", "gfz", "geonet"},
	domain.RegionAsiaPacific: {"isc", "usgs", "geonet", "emsc", "gfz", "ipgp"},
}

// RegionPriorityRank returns the rank of source within region's priority
// table (0 = highest priority). Sources absent from the table rank last.
func RegionPriorityRank(r domain.Region, source string) int {
	table := priorityTables[r]
	for i, s := range table {
		if s == source {
			return i
		}
	}
	return len(table)
}

// Preferred orders candidates by
// (status=='reviewed' desc, region_priority_rank asc, updated_at desc, event_uid asc)
// and returns the first element, per spec §4.F. Reviewed beats automatic
// regardless of region. Callers pass the region computed from the cluster
// centroid, not any single member's own region.
func Preferred(r domain.Region, members []domain.NormalizedEvent) domain.NormalizedEvent {
	ordered := make([]domain.NormalizedEvent, len(members))
	copy(ordered, members)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]

		ar := a.Status == domain.StatusReviewed
		br := b.Status == domain.StatusReviewed
		if ar != br {
			return ar // reviewed sorts first
		}

		rai := RegionPriorityRank(r, a.Source)
		rbi := RegionPriorityRank(r, b.Source)
		if rai != rbi {
			return rai < rbi
		}

		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}

		return a.EventUID < b.EventUID
	})

	return ordered[0]
}
