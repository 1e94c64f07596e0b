// Package score computes pairwise similarity between normalized events, used
// both for crosswalk match scores and for the clustering engine's
// consistency filter, per spec §4.I.
package score

import (
	"math"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// earthRadiusKm is the mean Earth radius used for the haversine formula.
const earthRadiusKm = 6371.0088

// Weights configures the relative contribution of each similarity term.
// Defaults sum to 1 (0.4/0.4/0.2) per spec §6 scoring.weights.
type Weights struct {
	Time      float64
	Distance  float64
	Magnitude float64
}

// DefaultWeights returns the spec's default weighting.
func DefaultWeights() Weights {
	return Weights{Time: 0.4, Distance: 0.4, Magnitude: 0.2}
}

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	phi1, phi2 := rad(lat1), rad(lat2)
	dPhi := rad(lat2 - lat1)
	dLambda := rad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// Score returns the weighted similarity in [0,1] between two events, per
// spec §4.I: 0.4*t_sim + 0.4*d_sim + 0.2*m_sim (or the given weights).
// Scoring is symmetric and Score(a, a) == 1.0.
func Score(a, b domain.NormalizedEvent, w Weights) float64 {
	dtSeconds := math.Abs(b.OriginTimeUTC.Sub(a.OriginTimeUTC).Seconds())
	tSim := math.Max(0, 1-dtSeconds/60)

	dKm := HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	dSim := math.Max(0, 1-dKm/100)

	dMag := math.Abs(b.MagnitudeValue - a.MagnitudeValue)
	mSim := math.Max(0, 1-dMag/2)

	return w.Time*tSim + w.Distance*dSim + w.Magnitude*mSim
}
