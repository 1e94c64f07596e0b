package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

func validEvent(now time.Time) domain.NormalizedEvent {
	return domain.NormalizedEvent{
		EventUID:       "usgs:us1000abcd",
		Source:         "usgs",
		SourceEventID:  "us1000abcd",
		OriginTimeUTC:  now.Add(-time.Hour),
		Latitude:       35.0,
		Longitude:      -97.0,
		DepthKm:        10.0,
		MagnitudeValue: 4.5,
		MagnitudeType:  "mb",
		Status:         domain.StatusAutomatic,
	}
}

func TestEvent_ValidEventHasNoErrors(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	errs := Event(validEvent(now), now)
	assert.Empty(t, errs)
}

func TestEvent_MissingRequiredFields(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := validEvent(now)
	e.Source = ""
	e.SourceEventID = ""
	e.MagnitudeType = ""

	errs := Event(e, now)
	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.Equal(t, domain.ValidationMissingField, err.Kind)
	}
}

func TestEvent_OutOfRangeFields(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := validEvent(now)
	e.Latitude = 200
	e.Longitude = -400
	e.DepthKm = 5000
	e.MagnitudeValue = 20

	errs := Event(e, now)
	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.Equal(t, domain.ValidationOutOfRange, err.Kind)
	}
}

func TestEvent_FutureTimestampBeyondSkew(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := validEvent(now)
	e.OriginTimeUTC = now.Add(48 * time.Hour)

	errs := Event(e, now)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ValidationBadTimestamp, errs[0].Kind)
}

func TestEvent_AncientTimestampBeyondSkew(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := validEvent(now)
	e.OriginTimeUTC = now.Add(-300 * 365 * 24 * time.Hour)

	errs := Event(e, now)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ValidationBadTimestamp, errs[0].Kind)
}

func TestEvent_ZeroOriginTimeIsMissingField(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := validEvent(now)
	e.OriginTimeUTC = time.Time{}

	errs := Event(e, now)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ValidationMissingField, errs[0].Kind)
}

func TestEvent_UnknownStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := validEvent(now)
	e.Status = "bogus"

	errs := Event(e, now)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.ValidationMissingField, errs[0].Kind)
}

func TestToDeadLetter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := validEvent(now)
	e.RawPayload = []byte(`{"id":"us1000abcd"}`)

	errs := []*domain.ValidationError{
		{EventUID: e.EventUID, Kind: domain.ValidationOutOfRange, Message: "latitude out of range"},
	}
	dl := ToDeadLetter(e, errs, now)

	assert.Equal(t, "usgs", dl.Source)
	assert.Equal(t, "us1000abcd", dl.SourceEventID)
	assert.Equal(t, e.RawPayload, dl.RawPayload)
	assert.Equal(t, []string{"latitude out of range"}, dl.ErrorMessages)
	assert.Equal(t, now, dl.CreatedAt)
}
