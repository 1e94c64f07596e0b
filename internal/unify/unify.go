// Package unify fuses one spatial-temporal cluster of NormalizedEvents into
// a single UnifiedEvent plus the CrosswalkRows that record which
// source-level events fed it, per spec §4.H.
package unify

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/region"
	"github.com/seismicfusion/eqfusion/internal/score"
)

// ExistingCrosswalk looks up the unified_event_id already assigned to an
// event_uid in a prior run, if any. Unify uses it for identity continuity:
// a cluster that re-forms across runs keeps its unified_event_id instead of
// minting a new one every pass.
type ExistingCrosswalk func(eventUID string) (unifiedEventID string, ok bool)

// Result is one cluster's fusion output: the unified record and the
// crosswalk rows tying its source members to it.
type Result struct {
	Unified   domain.UnifiedEvent
	Crosswalk []domain.CrosswalkRow
}

// Unify fuses members, a single cluster's worth of NormalizedEvents, into a
// Result. members must be non-empty; a singleton cluster still produces a
// UnifiedEvent (NumSources == 1) so every source event has a crosswalk row.
func Unify(members []domain.NormalizedEvent, existing ExistingCrosswalk, weights score.Weights) Result {
	now := domain.Clock().Now().UTC()

	centroidLat, centroidLon := meanLatLon(members)
	r := region.Classify(centroidLat, centroidLon)
	preferred := region.Preferred(r, members)

	unifiedID, isNew := resolveIdentity(members, existing)

	sourceEventUIDs := make([]string, 0, len(members))
	sources := make(map[string]struct{}, len(members))
	for _, m := range members {
		sourceEventUIDs = append(sourceEventUIDs, m.EventUID)
		sources[m.Source] = struct{}{}
	}
	sort.Strings(sourceEventUIDs)

	unified := domain.UnifiedEvent{
		UnifiedEventID: unifiedID,

		OriginTimeUTC:  preferred.OriginTimeUTC,
		Latitude:       preferred.Latitude,
		Longitude:      preferred.Longitude,
		DepthKm:        preferred.DepthKm,
		MagnitudeValue: preferred.MagnitudeValue,
		MagnitudeType:  preferred.MagnitudeType,
		Place:          preferred.Place,
		Region:         r,
		Status:         preferred.Status,

		NumSources:        len(sources),
		PreferredSource:   preferred.Source,
		PreferredEventUID: preferred.EventUID,
		SourceEventUIDs:   sourceEventUIDs,

		MagnitudeStd:         populationStdDev(magnitudes(members)),
		LocationSpreadKm:     maxPairwiseDistanceKm(members),
		SourceAgreementScore: float64(len(sources)) / float64(len(members)),

		UpdatedAt: now,
	}
	// CreatedAt is set here for a brand new identity; a sink upserting over
	// an existing unified_event_id is expected to preserve the original
	// created_at rather than overwrite it with this value.
	if isNew {
		unified.CreatedAt = now
	}

	crosswalk := make([]domain.CrosswalkRow, 0, len(members))
	for _, m := range members {
		crosswalk = append(crosswalk, domain.CrosswalkRow{
			EventUID:       m.EventUID,
			UnifiedEventID: unifiedID,
			MatchScore:     score.Score(m, preferred, weights),
			IsPreferred:    m.EventUID == preferred.EventUID,
			CreatedAt:      now,
		})
	}

	return Result{Unified: unified, Crosswalk: crosswalk}
}

// resolveIdentity returns the unified_event_id this cluster should carry: the
// most common existing id among its members when any member was already
// crosswalked, broken ties by the lexically smallest id, or a freshly minted
// uuid when none were. The second return value reports whether the id is new.
func resolveIdentity(members []domain.NormalizedEvent, existing ExistingCrosswalk) (string, bool) {
	if existing == nil {
		return uuid.NewString(), true
	}

	counts := make(map[string]int)
	for _, m := range members {
		if id, ok := existing(m.EventUID); ok && id != "" {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return uuid.NewString(), true
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})

	return ids[0], false
}

func meanLatLon(members []domain.NormalizedEvent) (lat, lon float64) {
	var sumLat, sumLon float64
	for _, m := range members {
		sumLat += m.Latitude
		sumLon += m.Longitude
	}
	n := float64(len(members))
	return sumLat / n, sumLon / n
}

func magnitudes(members []domain.NormalizedEvent) []float64 {
	out := make([]float64, len(members))
	for i, m := range members {
		out[i] = m.MagnitudeValue
	}
	return out
}

// populationStdDev returns the population (not sample) standard deviation,
// per spec §4.H's magnitude-spread quality metric.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sqDiffSum float64
	for _, v := range values {
		d := v - mean
		sqDiffSum += d * d
	}
	return math.Sqrt(sqDiffSum / float64(len(values)))
}

// maxPairwiseDistanceKm returns the largest great-circle distance between
// any two members, per spec §4.H's location-spread quality metric.
func maxPairwiseDistanceKm(members []domain.NormalizedEvent) float64 {
	var max float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			d := score.HaversineKm(members[i].Latitude, members[i].Longitude, members[j].Latitude, members[j].Longitude)
			if d > max {
				max = d
			}
		}
	}
	return max
}
