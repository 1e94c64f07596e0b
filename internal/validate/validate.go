// Package validate applies the bounds, required-field, and sanity checks
// from spec §4.D. Valid records flow onward; invalid records carry their
// error messages to the dead-letter sink.
package validate

import (
	"fmt"
	"time"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

const (
	minLatitude  = -90.0
	maxLatitude  = 90.0
	minLongitude = -180.0
	maxLongitude = 180.0
	minDepthKm   = -5.0
	maxDepthKm   = 1000.0
	minMagnitude = -2.0
	maxMagnitude = 11.0

	maxFutureSkew = 24 * time.Hour
	maxPastSkew   = 200 * 365 * 24 * time.Hour
)

// Event runs every check against e and returns the full list of failures
// (possibly empty). Callers treat a non-empty result as a dead-letter.
func Event(e domain.NormalizedEvent, now time.Time) []*domain.ValidationError {
	var errs []*domain.ValidationError

	add := func(kind domain.ValidationErrorKind, format string, args ...any) {
		errs = append(errs, &domain.ValidationError{
			EventUID: e.EventUID,
			Kind:     kind,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if e.Source == "" {
		add(domain.ValidationMissingField, "source is required")
	}
	if e.SourceEventID == "" {
		add(domain.ValidationMissingField, "source_event_id is required")
	}
	if e.MagnitudeType == "" {
		add(domain.ValidationMissingField, "magnitude_type is required")
	}

	if e.Latitude < minLatitude || e.Latitude > maxLatitude {
		add(domain.ValidationOutOfRange, "latitude %.4f out of range [%g,%g]", e.Latitude, minLatitude, maxLatitude)
	}
	if e.Longitude < minLongitude || e.Longitude > maxLongitude {
		add(domain.ValidationOutOfRange, "longitude %.4f out of range [%g,%g]", e.Longitude, minLongitude, maxLongitude)
	}
	if e.DepthKm < minDepthKm || e.DepthKm > maxDepthKm {
		add(domain.ValidationOutOfRange, "depth_km %.4f out of range [%g,%g]", e.DepthKm, minDepthKm, maxDepthKm)
	}
	if e.MagnitudeValue < minMagnitude || e.MagnitudeValue > maxMagnitude {
		add(domain.ValidationOutOfRange, "magnitude_value %.4f out of range [%g,%g]", e.MagnitudeValue, minMagnitude, maxMagnitude)
	}

	if e.OriginTimeUTC.IsZero() {
		add(domain.ValidationMissingField, "origin_time_utc is required")
	} else {
		if e.OriginTimeUTC.After(now.Add(maxFutureSkew)) {
			add(domain.ValidationBadTimestamp, "origin_time_utc %s is more than 1 day in the future", e.OriginTimeUTC)
		}
		if e.OriginTimeUTC.Before(now.Add(-maxPastSkew)) {
			add(domain.ValidationBadTimestamp, "origin_time_utc %s is more than 200 years in the past", e.OriginTimeUTC)
		}
	}

	switch e.Status {
	case domain.StatusAutomatic, domain.StatusReviewed, domain.StatusManual:
	default:
		add(domain.ValidationMissingField, "status %q is not one of automatic/reviewed/manual", e.Status)
	}

	return errs
}

// ToDeadLetter builds a DeadLetterEntry from a rejected event and its raw
// payload bytes.
func ToDeadLetter(e domain.NormalizedEvent, errs []*domain.ValidationError, now time.Time) domain.DeadLetterEntry {
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Message
	}
	return domain.DeadLetterEntry{
		Source:        e.Source,
		SourceEventID: e.SourceEventID,
		RawPayload:    e.RawPayload,
		ErrorMessages: messages,
		CreatedAt:     now,
	}
}
