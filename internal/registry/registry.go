// Package registry holds the static, read-only table of known seismological
// agencies. It is loaded once at startup (DefaultSources) and has no
// mutation path, per spec §4.A.
package registry

import (
	"time"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// Source describes one agency's endpoint, wire format, and polling policy.
type Source struct {
	Tag              string
	BaseURL          string
	Format           domain.Format
	MinPollInterval  time.Duration
	Timeout          time.Duration
	MaxRetries       int
	GlobalPriority   int // lower is better; not consulted by region preference, which uses per-region tables
	SupportedRegions []domain.Region
}

// DefaultSources returns the built-in agency table. Callers needing a subset
// (per the sources.enabled config option) filter the result; the table
// itself is never mutated.
func DefaultSources() []Source {
	return []Source{
		{
			Tag:             "usgs",
			BaseURL:         "https://earthquake.usgs.gov/fdsnws/event/1/query",
			Format:          domain.FormatGeoJSONUSGS,
			MinPollInterval: 60 * time.Second,
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			GlobalPriority:  1,
			SupportedRegions: []domain.Region{
				domain.RegionAmericas, domain.RegionEurope, domain.RegionAfrica, domain.RegionAsiaPacific,
			},
		},
		{
			Tag:             "emsc",
			BaseURL:         "https://www.seismicportal.eu/fdsnws/event/1/query",
			Format:          domain.FormatGeoJSONEMSC,
			MinPollInterval: 60 * time.Second,
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			GlobalPriority:  1,
			SupportedRegions: []domain.Region{
				domain.RegionEurope, domain.RegionAfrica, domain.RegionAmericas, domain.RegionAsiaPacific,
			},
		},
		{
			Tag:             "gfz",
			BaseURL:         "https://geofon.gfz-potsdam.de/fdsnws/event/1/query",
			Format:          domain.FormatFDSNText,
			MinPollInterval: 120 * time.Second,
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			GlobalPriority:  2,
			SupportedRegions: []domain.Region{
				domain.RegionEurope, domain.RegionAfrica, domain.RegionAsiaPacific,
			},
		},
		{
			Tag:             "isc",
			BaseURL:         "https://www.isc.ac.uk/fdsnws/event/1/query",
			Format:          domain.FormatQuakeML,
			MinPollInterval: 300 * time.Second,
			Timeout:         20 * time.Second,
			MaxRetries:      2,
			GlobalPriority:  1,
			SupportedRegions: []domain.Region{
				domain.RegionAmericas, domain.RegionEurope, domain.RegionAfrica, domain.RegionAsiaPacific,
			},
		},
		{
			Tag:             "ipgp",
			BaseURL:         "https://www.fdsn.org/webservices/ipgp/fdsnws/event/1/query",
			Format:          domain.FormatQuakeML,
			MinPollInterval: 180 * time.Second,
			Timeout:         15 * time.Second,
			MaxRetries:      2,
			GlobalPriority:  3,
			SupportedRegions: []domain.Region{
				domain.RegionEurope, domain.RegionAfrica,
			},
		},
		{
			Tag:             "geonet",
			BaseURL:         "https://quakesearch.geonet.org.nz/fdsnws/event/1/query",
			Format:          domain.FormatFDSNText,
			MinPollInterval: 120 * time.Second,
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			GlobalPriority:  4,
			SupportedRegions: []domain.Region{
				domain.RegionAsiaPacific,
			},
		},
	}
}

// ByTag filters the table down to the sources named in tags, preserving
// DefaultSources order. Unknown tags are silently skipped.
func ByTag(all []Source, tags []string) []Source {
	if len(tags) == 0 {
		return all
	}
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}
	out := make([]Source, 0, len(tags))
	for _, s := range all {
		if want[s.Tag] {
			out = append(out, s)
		}
	}
	return out
}
