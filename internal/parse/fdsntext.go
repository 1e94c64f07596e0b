package parse

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// fdsnTextFieldCount is the fixed column count per spec §4.C:
// EventID|Time|Latitude|Longitude|Depth/km|Author|Catalog|Contributor|
// ContributorID|MagType|Magnitude|MagAuthor|EventLocationName
const fdsnTextFieldCount = 13

const (
	fdsnFieldEventID = iota
	fdsnFieldTime
	fdsnFieldLatitude
	fdsnFieldLongitude
	fdsnFieldDepthKm
	fdsnFieldAuthor
	fdsnFieldCatalog
	fdsnFieldContributor
	fdsnFieldContributorID
	fdsnFieldMagType
	fdsnFieldMagnitude
	fdsnFieldMagAuthor
	fdsnFieldLocationName
)

var fdsnTimeLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseFDSNText parses the FDSN web-service pipe-delimited text format.
// A completely unparseable payload (e.g. no header, no data rows) is a
// whole-payload failure; individual malformed rows become per-event errors.
func ParseFDSNText(source string, raw []byte) ([]domain.NormalizedEvent, []*domain.ParseError) {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var events []domain.NormalizedEvent
	var errs []*domain.ParseError
	sawDataRow := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		sawDataRow = true
		event, err := parseFDSNTextRow(source, trimmed)
		if err != nil {
			errs = append(errs, &domain.ParseError{
				Source:   source,
				Kind:     domain.ParseMalformedEvent,
				RawBytes: []byte(line),
				Err:      err,
			})
			continue
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, []*domain.ParseError{{
			Source:   source,
			Kind:     domain.ParseMalformedPayload,
			RawBytes: raw,
			Err:      fmt.Errorf("scan fdsn text: %w", err),
		}}
	}
	if !sawDataRow {
		return nil, []*domain.ParseError{{
			Source:   source,
			Kind:     domain.ParseMalformedPayload,
			RawBytes: raw,
			Err:      fmt.Errorf("no data rows found"),
		}}
	}

	return events, errs
}

func parseFDSNTextRow(source, line string) (domain.NormalizedEvent, error) {
	fields := strings.Split(line, "|")
	if len(fields) != fdsnTextFieldCount {
		return domain.NormalizedEvent{}, fmt.Errorf("expected %d pipe-delimited fields, got %d", fdsnTextFieldCount, len(fields))
	}

	eventID := strings.TrimSpace(fields[fdsnFieldEventID])
	if eventID == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("empty EventID")
	}

	originTime, err := parseFDSNTime(fields[fdsnFieldTime])
	if err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("Time: %w", err)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[fdsnFieldLatitude]), 64)
	if err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("Latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[fdsnFieldLongitude]), 64)
	if err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("Longitude: %w", err)
	}
	depth, err := strconv.ParseFloat(strings.TrimSpace(fields[fdsnFieldDepthKm]), 64)
	if err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("Depth/km: %w", err)
	}

	magType := strings.TrimSpace(fields[fdsnFieldMagType])
	if magType == "" {
		return domain.NormalizedEvent{}, fmt.Errorf("empty MagType")
	}
	mag, err := strconv.ParseFloat(strings.TrimSpace(fields[fdsnFieldMagnitude]), 64)
	if err != nil {
		return domain.NormalizedEvent{}, fmt.Errorf("Magnitude: %w", err)
	}

	return domain.NormalizedEvent{
		EventUID:       source + ":" + eventID,
		Source:         source,
		SourceEventID:  eventID,
		OriginTimeUTC:  originTime,
		Latitude:       lat,
		Longitude:      lon,
		DepthKm:        depth,
		MagnitudeValue: mag,
		MagnitudeType:  magType,
		// FDSN text carries no evaluation-mode field; agencies that expose
		// this format to the web service report automatic origins here.
		Status: domain.StatusAutomatic,
		Author: strings.TrimSpace(fields[fdsnFieldAuthor]),
		Place:  strings.TrimSpace(fields[fdsnFieldLocationName]),
	}, nil
}

func parseFDSNTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range fdsnTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
