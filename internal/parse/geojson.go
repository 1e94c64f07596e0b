package parse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// geoJSONFeatureCollection mirrors the USGS/EMSC "all events" GeoJSON feed
// shape: a FeatureCollection of point features with a flat properties bag.
// Grounded in other_examples' USGSGeoJSONResponse struct, which parses the
// identical feed with plain encoding/json.
type geoJSONFeatureCollection struct {
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	ID         string             `json:"id"`
	Properties geoJSONProperties  `json:"properties"`
	Geometry   geoJSONGeometry    `json:"geometry"`
}

type geoJSONProperties struct {
	Mag      *float64 `json:"mag"`
	MagType  string   `json:"magType"`
	Place    string   `json:"place"`
	Time     json.RawMessage `json:"time"`
	Updated  json.RawMessage `json:"updated"`
	Status   string   `json:"status"`
	Net      string   `json:"net"`
	URL      string   `json:"url"`
	Detail   string   `json:"detail"`
	Gap      *float64 `json:"gap"`
	NST      *int     `json:"nst"`
}

type geoJSONGeometry struct {
	Coordinates []float64 `json:"coordinates"`
}

// timeParser converts the format's wire encoding of properties.time/updated
// (epoch-ms for USGS, ISO-8601 string for EMSC) into a UTC instant.
type timeParser func(json.RawMessage) (time.Time, error)

func epochMillisTime(raw json.RawMessage) (time.Time, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("parse epoch ms: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func iso8601Time(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("parse iso8601 string: %w", err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse iso8601 %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseGeoJSONUSGS parses the USGS GeoJSON feed: properties.time is epoch ms.
func ParseGeoJSONUSGS(source string, raw []byte) ([]domain.NormalizedEvent, []*domain.ParseError) {
	return parseGeoJSON(source, raw, epochMillisTime)
}

// ParseGeoJSONEMSC parses the EMSC GeoJSON feed: properties.time is ISO-8601.
func ParseGeoJSONEMSC(source string, raw []byte) ([]domain.NormalizedEvent, []*domain.ParseError) {
	return parseGeoJSON(source, raw, iso8601Time)
}

func parseGeoJSON(source string, raw []byte, parseTime timeParser) ([]domain.NormalizedEvent, []*domain.ParseError) {
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, []*domain.ParseError{{
			Source:   source,
			Kind:     domain.ParseMalformedPayload,
			RawBytes: raw,
			Err:      fmt.Errorf("decode geojson feature collection: %w", err),
		}}
	}

	var events []domain.NormalizedEvent
	var errs []*domain.ParseError

	for _, f := range fc.Features {
		event, err := mapGeoJSONFeature(source, f, parseTime)
		if err != nil {
			errs = append(errs, &domain.ParseError{
				Source:        source,
				SourceEventID: f.ID,
				Kind:          domain.ParseMalformedEvent,
				RawBytes:      rawFeatureBytes(f),
				Err:           err,
			})
			continue
		}
		events = append(events, event)
	}

	return events, errs
}

func rawFeatureBytes(f geoJSONFeature) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return b
}

func mapGeoJSONFeature(source string, f geoJSONFeature, parseTime timeParser) (domain.NormalizedEvent, error) {
	if f.ID == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("feature missing id")
	}
	if f.Properties.Mag == nil {
		return domain.NormalizedEvent{}, fmt.Errorf("missing magnitude")
	}
	if f.Properties.MagType == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("missing magnitude type")
	}
	if len(f.Geometry.Coordinates) < 3 {
		return domain.NormalizedEvent{}, fmt.Errorf("coordinates must have [lon, lat, depth], got %d values", len(f.Geometry.Coordinates))
	}
	if len(f.Properties.Time) == 0 {
		return domain.NormalizedEvent{}, fmt.Errorf("missing origin time")
	}

	originTime, err := parseTime(f.Properties.Time)
	if err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("origin time: %w", err)
	}

	var updatedAt time.Time
	if len(f.Properties.Updated) > 0 {
		if t, err := parseTime(f.Properties.Updated); err == nil {
			updatedAt = t
		}
	}

	lon, lat, depth := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], f.Geometry.Coordinates[2]

	e := domain.NormalizedEvent{
		EventUID:       source + ":" + f.ID,
		Source:         source,
		SourceEventID:  f.ID,
		OriginTimeUTC:  originTime,
		Latitude:       lat,
		Longitude:      lon,
		DepthKm:        depth,
		MagnitudeValue: *f.Properties.Mag,
		MagnitudeType:  f.Properties.MagType,
		Status:         mapGeoJSONStatus(f.Properties.Status),
		Place:          f.Properties.Place,
		Author:         f.Properties.Net,
		URL:            f.Properties.URL,
		UpdatedAt:      updatedAt,
		AzimuthalGap:   f.Properties.Gap,
		NumPhases:      f.Properties.NST,
	}
	return e, nil
}

func mapGeoJSONStatus(s string) domain.Status {
	switch s {
	case "reviewed":
		return domain.StatusReviewed
	case "manual":
		return domain.StatusManual
	default:
		return domain.StatusAutomatic
	}
}
