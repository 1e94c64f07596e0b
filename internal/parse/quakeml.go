package parse

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// QuakeML 1.2 XML structs. Reflection-based unmarshalling follows the same
// approach as GeoNet-qsearch/quakeml12: tag-matching structs plus
// post-unmarshal ID-map resolution for preferredOriginID/preferredMagnitudeID,
// since encoding/xml has no notion of "the element this ID string refers to".
type quakeMLDoc struct {
	EventParameters quakeMLEventParameters `xml:"eventParameters"`
}

type quakeMLEventParameters struct {
	Events []quakeMLEvent `xml:"event"`
}

type quakeMLEvent struct {
	PublicID              string             `xml:"publicID,attr"`
	PreferredOriginID     string             `xml:"preferredOriginID"`
	PreferredMagnitudeID  string             `xml:"preferredMagnitudeID"`
	Origins               []quakeMLOrigin    `xml:"origin"`
	Magnitudes             []quakeMLMagnitude `xml:"magnitude"`
	Description           quakeMLDescription `xml:"description"`
}

type quakeMLDescription struct {
	Text string `xml:"text"`
}

type quakeMLValue struct {
	Value float64 `xml:"value"`
}

type quakeMLTimeValue struct {
	Value string `xml:"value"`
}

type quakeMLOrigin struct {
	PublicID         string           `xml:"publicID,attr"`
	Time             quakeMLTimeValue `xml:"time"`
	Latitude         quakeMLValue     `xml:"latitude"`
	Longitude        quakeMLValue     `xml:"longitude"`
	Depth            quakeMLValue     `xml:"depth"` // metres
	EvaluationMode   string           `xml:"evaluationMode"`
	EvaluationStatus string           `xml:"evaluationStatus"`
}

type quakeMLMagnitude struct {
	PublicID     string       `xml:"publicID,attr"`
	Mag          quakeMLValue `xml:"mag"`
	Type         string       `xml:"type"`
	StationCount int          `xml:"stationCount"`
	OriginID     string       `xml:"originID"`
	CreationInfo struct {
		Author string `xml:"author"`
	} `xml:"creationInfo"`
}

// magnitudeTypePreference orders magnitude types when preferredMagnitudeID is
// absent, per spec §4.C; among candidates of equal type rank, the higher
// stationCount wins.
var magnitudeTypePreference = map[string]int{
	"mw":  0,
	"mww": 1,
	"mb":  2,
	"ml":  3,
	"md":  4,
}

func magnitudeTypeRank(t string) int {
	if rank, ok := magnitudeTypePreference[strings.ToLower(t)]; ok {
		return rank
	}
	return len(magnitudeTypePreference)
}

// ParseQuakeML parses a QuakeML 1.2 document, possibly containing multiple
// events, into canonical records. A document that fails to parse as XML at
// all is a whole-payload failure; an individual event missing a usable
// origin or magnitude becomes a per-event error.
func ParseQuakeML(source string, raw []byte) ([]domain.NormalizedEvent, []*domain.ParseError) {
	var doc quakeMLDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, []*domain.ParseError{{
			Source:   source,
			Kind:     domain.ParseMalformedPayload,
			RawBytes: raw,
			Err:      fmt.Errorf("decode quakeml document: %w", err),
		}}
	}

	var events []domain.NormalizedEvent
	var errs []*domain.ParseError

	for _, ev := range doc.Events {
		event, err := mapQuakeMLEvent(source, ev)
		if err != nil {
			evBytes, _ := xml.Marshal(ev)
			errs = append(errs, &domain.ParseError{
				Source:        source,
				SourceEventID: stripQuakeMLURN(ev.PublicID),
				Kind:          domain.ParseMalformedEvent,
				RawBytes:      evBytes,
				Err:           err,
			})
			continue
		}
		events = append(events, event)
	}

	return events, errs
}

func mapQuakeMLEvent(source string, ev quakeMLEvent) (domain.NormalizedEvent, error) {
	sourceEventID := stripQuakeMLURN(ev.PublicID)
	if sourceEventID == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("event missing publicID")
	}

	origin := preferredOrigin(ev)
	if origin == nil {
		return domain.NormalizedEvent{}, fmt.Errorf("no origin element present")
	}

	magnitude := preferredMagnitude(ev)
	if magnitude == nil {
		return domain.NormalizedEvent{}, fmt.Errorf("no magnitude element present")
	}
	if magnitude.Type == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("preferred magnitude missing type")
	}

	originTime, err := time.Parse(time.RFC3339, strings.TrimSpace(origin.Time.Value))
	if err != nil {
		originTime, err = time.Parse("2006-01-02T15:04:05.999999", strings.TrimSpace(origin.Time.Value))
		if err != nil {
			return domain.NormalizedEvent{}, fmt.Errorf("origin time: %w", err)
		}
	}

	status := mapQuakeMLStatus(origin.EvaluationMode, origin.EvaluationStatus)

	return domain.NormalizedEvent{
		EventUID:       source + ":" + sourceEventID,
		Source:         source,
		SourceEventID:  sourceEventID,
		OriginTimeUTC:  originTime.UTC(),
		Latitude:       origin.Latitude.Value,
		Longitude:      origin.Longitude.Value,
		DepthKm:        origin.Depth.Value / 1000.0,
		MagnitudeValue: magnitude.Mag.Value,
		MagnitudeType:  magnitude.Type,
		Status:         status,
		Place:          ev.Description.Text,
		Author:         magnitude.CreationInfo.Author,
	}, nil
}

// preferredOrigin resolves preferredOriginID to its element, falling back
// to the first origin in document order when absent.
func preferredOrigin(ev quakeMLEvent) *quakeMLOrigin {
	if len(ev.Origins) == 0 {
		return nil
	}
	if ev.PreferredOriginID != "" {
		for i := range ev.Origins {
			if ev.Origins[i].PublicID == ev.PreferredOriginID {
				return &ev.Origins[i]
			}
		}
	}
	return &ev.Origins[0]
}

// preferredMagnitude resolves preferredMagnitudeID to its element. When
// absent (e.g. ISC payloads), it picks the magnitude whose type ranks
// highest in magnitudeTypePreference, breaking ties by the larger
// stationCount then document order: type preference wins over station
// count (spec §4.C/§8 scenario 4 — e.g. an mw magnitude with fewer
// reporting stations is still preferred over an mb magnitude with more).
func preferredMagnitude(ev quakeMLEvent) *quakeMLMagnitude {
	if len(ev.Magnitudes) == 0 {
		return nil
	}
	if ev.PreferredMagnitudeID != "" {
		for i := range ev.Magnitudes {
			if ev.Magnitudes[i].PublicID == ev.PreferredMagnitudeID {
				return &ev.Magnitudes[i]
			}
		}
	}

	best := 0
	for i := 1; i < len(ev.Magnitudes); i++ {
		a, b := ev.Magnitudes[i], ev.Magnitudes[best]
		switch {
		case magnitudeTypeRank(a.Type) != magnitudeTypeRank(b.Type):
			if magnitudeTypeRank(a.Type) < magnitudeTypeRank(b.Type) {
				best = i
			}
		case a.StationCount > b.StationCount:
			best = i
		}
	}
	return &ev.Magnitudes[best]
}

func mapQuakeMLStatus(evaluationMode, evaluationStatus string) domain.Status {
	status := domain.StatusAutomatic
	if evaluationMode == "manual" {
		status = domain.StatusManual
	}
	switch evaluationStatus {
	case "reviewed", "confirmed", "final":
		status = domain.StatusReviewed
	}
	return status
}

// stripQuakeMLURN strips known URN/SMI scheme prefixes from a QuakeML
// publicID, keeping the trailing path segment as source_event_id, e.g.
// "smi:org.isc/events/600000000" -> "600000000" and
// "quakeml:us.anss.org/event/us1000abcd" -> "us1000abcd".
func stripQuakeMLURN(publicID string) string {
	id := strings.TrimSpace(publicID)
	if idx := strings.LastIndex(id, "/"); idx != -1 {
		return id[idx+1:]
	}
	if idx := strings.LastIndex(id, ":"); idx != -1 {
		return id[idx+1:]
	}
	return id
}
