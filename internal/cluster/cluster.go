// Package cluster implements the density-based spatial-temporal clustering
// engine of spec §4.G: spatial grouping by great-circle distance, a
// time/magnitude sub-partition pass, and a consistency filter that ejects
// outliers into their own singleton clusters.
package cluster

import (
	"fmt"
	"sort"
	"time"

	h3 "github.com/uber/h3-go/v4"

	"github.com/seismicfusion/eqfusion/internal/domain"
	"github.com/seismicfusion/eqfusion/internal/score"
)

// Options configures the clustering thresholds from spec §6.
type Options struct {
	EpsKm          float64 // neighborhood radius, default 100
	DtSeconds      float64 // max time delta within a sub-cluster, default 30
	DMag           float64 // max magnitude delta within a sub-cluster, default 0.5
	MatchThreshold float64 // consistency-filter threshold, default 0.6
	NaiveThreshold int     // |S| above which the H3 grid index is used, default 5000
	Weights        score.Weights
}

// DefaultOptions returns spec §6's default clustering configuration.
func DefaultOptions() Options {
	return Options{
		EpsKm:          100,
		DtSeconds:      30,
		DMag:           0.5,
		MatchThreshold: 0.6,
		NaiveThreshold: 5000,
		Weights:        score.DefaultWeights(),
	}
}

// h3Resolution is chosen so a cell's typical edge length (~59.8km at
// resolution 3) lets the 2-ring searched around each point's cell reach
// beyond EpsKm=100km from anywhere in that cell, per spec §9's "metric tree"
// allowance. Grounded in
// other_examples' h3-spatial-cache package, which buckets lat/lon into H3
// cells for the same O(n log n) neighbor-candidate role.
const h3Resolution = 3

// Cluster assigns every event in events a cluster key. The result is a total
// function over the input's event UIDs (spec §4.G).
func Cluster(events []domain.NormalizedEvent, opts Options) map[string]string {
	assignment := make(map[string]string, len(events))
	if len(events) == 0 {
		return assignment
	}

	nextKey := 0
	newKey := func() string {
		k := fmt.Sprintf("c%d", nextKey)
		nextKey++
		return k
	}

	for _, group := range spatialGroups(events, opts) {
		for _, sub := range subPartition(group, opts) {
			for _, final := range consistencyFilter(sub, opts) {
				key := newKey()
				for _, e := range final {
					assignment[e.EventUID] = key
				}
			}
		}
	}

	return assignment
}

// spatialGroups partitions events into density-connected components using
// great-circle distance with neighborhood radius opts.EpsKm. Below
// opts.NaiveThreshold it runs a direct pairwise pass (spec's cluster-pass
// deadline allowance); above it, candidate pairs are limited to events
// sharing an H3 cell or a neighboring cell.
func spatialGroups(events []domain.NormalizedEvent, opts Options) [][]domain.NormalizedEvent {
	uf := newUnionFind(len(events))

	if len(events) <= opts.NaiveThreshold {
		for i := 0; i < len(events); i++ {
			for j := i + 1; j < len(events); j++ {
				if score.HaversineKm(events[i].Latitude, events[i].Longitude, events[j].Latitude, events[j].Longitude) <= opts.EpsKm {
					uf.union(i, j)
				}
			}
		}
		return uf.groups(events)
	}

	cellOf := make([]h3.Cell, len(events))
	bucket := make(map[h3.Cell][]int)
	for i, e := range events {
		latLng := h3.NewLatLng(e.Latitude, e.Longitude)
		cell, err := h3.LatLngToCell(latLng, h3Resolution)
		if err != nil {
			// Fall back to the sentinel cell 0, shared by every point that
			// fails conversion, so such points are still compared with
			// one another; distance checks below are still exact.
			cell = 0
		}
		cellOf[i] = cell
		bucket[cell] = append(bucket[cell], i)
	}

	for i, cell := range cellOf {
		neighbors, err := h3.GridDisk(cell, 2)
		if err != nil {
			neighbors = []h3.Cell{cell}
		}
		for _, nc := range neighbors {
			for _, j := range bucket[nc] {
				if j <= i {
					continue
				}
				if score.HaversineKm(events[i].Latitude, events[i].Longitude, events[j].Latitude, events[j].Longitude) <= opts.EpsKm {
					uf.union(i, j)
				}
			}
		}
	}

	return uf.groups(events)
}

// subPartition splits a spatial group so that any two members in the same
// final sub-cluster satisfy |Δtime| <= DtSeconds and |Δmagnitude| <= DMag,
// per spec §4.G.2: sort by origin time, start a new sub-cluster whenever the
// next event violates either bound against the running median of the
// current sub-cluster.
func subPartition(group []domain.NormalizedEvent, opts Options) [][]domain.NormalizedEvent {
	if len(group) <= 1 {
		return [][]domain.NormalizedEvent{group}
	}

	sorted := make([]domain.NormalizedEvent, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OriginTimeUTC.Before(sorted[j].OriginTimeUTC)
	})

	var result [][]domain.NormalizedEvent
	current := []domain.NormalizedEvent{sorted[0]}

	for _, e := range sorted[1:] {
		medTime := medianTime(current)
		medMag := medianFloat(magnitudes(current))

		dt := e.OriginTimeUTC.Sub(medTime).Abs().Seconds()
		dMag := absFloat(e.MagnitudeValue - medMag)

		if dt > opts.DtSeconds || dMag > opts.DMag {
			result = append(result, current)
			current = []domain.NormalizedEvent{e}
			continue
		}
		current = append(current, e)
	}
	result = append(result, current)

	return result
}

// consistencyFilter requires, for every candidate sub-cluster of size >= 2,
// that every member's match score against the cluster's centroid is >=
// opts.MatchThreshold; failing members are ejected into their own singleton.
func consistencyFilter(sub []domain.NormalizedEvent, opts Options) [][]domain.NormalizedEvent {
	if len(sub) < 2 {
		return [][]domain.NormalizedEvent{sub}
	}

	centroid := centroidOf(sub)

	var kept []domain.NormalizedEvent
	var singles [][]domain.NormalizedEvent
	for _, e := range sub {
		if score.Score(e, centroid, opts.Weights) >= opts.MatchThreshold {
			kept = append(kept, e)
		} else {
			singles = append(singles, []domain.NormalizedEvent{e})
		}
	}

	var out [][]domain.NormalizedEvent
	if len(kept) > 0 {
		out = append(out, kept)
	}
	out = append(out, singles...)
	return out
}

// centroidOf builds a synthetic event at the arithmetic mean location, time,
// and magnitude of members, used only as the consistency filter's reference
// point.
func centroidOf(members []domain.NormalizedEvent) domain.NormalizedEvent {
	var sumLat, sumLon, sumMag float64
	var sumNanos int64
	base := members[0].OriginTimeUTC

	for _, e := range members {
		sumLat += e.Latitude
		sumLon += e.Longitude
		sumMag += e.MagnitudeValue
		sumNanos += int64(e.OriginTimeUTC.Sub(base))
	}

	n := float64(len(members))
	return domain.NormalizedEvent{
		Latitude:       sumLat / n,
		Longitude:      sumLon / n,
		OriginTimeUTC:  base.Add(time.Duration(sumNanos / int64(len(members)))),
		MagnitudeValue: sumMag / n,
	}
}

func magnitudes(events []domain.NormalizedEvent) []float64 {
	out := make([]float64, len(events))
	for i, e := range events {
		out[i] = e.MagnitudeValue
	}
	return out
}

func medianFloat(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func medianTime(events []domain.NormalizedEvent) time.Time {
	sorted := make([]time.Time, len(events))
	for i, e := range events {
		sorted[i] = e.OriginTimeUTC
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	mid := sorted[n/2-1].Add(sorted[n/2].Sub(sorted[n/2-1]) / 2)
	return mid
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// unionFind is a plain disjoint-set over event indices.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

func (u *unionFind) groups(events []domain.NormalizedEvent) [][]domain.NormalizedEvent {
	byRoot := make(map[int][]domain.NormalizedEvent)
	for i, e := range events {
		root := u.find(i)
		byRoot[root] = append(byRoot[root], e)
	}
	out := make([][]domain.NormalizedEvent, 0, len(byRoot))
	for _, members := range byRoot {
		out = append(out, members)
	}
	return out
}
