package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quakeMLFixture = `<?xml version="1.0" encoding="UTF-8"?>
<q:quakeml xmlns:q="http://quakeml.org/xmlns/quakeml/1.2">
  <eventParameters>
    <event publicID="smi:org.isc/events/600000001">
      <preferredOriginID>smi:org.isc/origins/700000001</preferredOriginID>
      <preferredMagnitudeID>smi:org.isc/magnitudes/800000001</preferredMagnitudeID>
      <description><text>Southern Mid-Atlantic Ridge</text></description>
      <origin publicID="smi:org.isc/origins/700000001">
        <time><value>2026-01-01T00:00:00.000000Z</value></time>
        <latitude><value>-10.5</value></latitude>
        <longitude><value>-20.3</value></longitude>
        <depth><value>15000</value></depth>
        <evaluationMode>manual</evaluationMode>
        <evaluationStatus>reviewed</evaluationStatus>
      </origin>
      <magnitude publicID="smi:org.isc/magnitudes/800000001">
        <mag><value>5.8</value></mag>
        <type>mb</type>
        <stationCount>42</stationCount>
        <originID>smi:org.isc/origins/700000001</originID>
        <creationInfo><author>ISC</author></creationInfo>
      </magnitude>
    </event>
    <event publicID="smi:org.isc/events/600000002">
      <origin publicID="smi:org.isc/origins/700000002">
        <time><value>2026-01-02T00:00:00.000000Z</value></time>
        <latitude><value>1.0</value></latitude>
        <longitude><value>2.0</value></longitude>
        <depth><value>5000</value></depth>
        <evaluationMode>automatic</evaluationMode>
      </origin>
      <magnitude publicID="smi:org.isc/magnitudes/800000002a">
        <mag><value>4.0</value></mag>
        <type>mw</type>
        <stationCount>20</stationCount>
      </magnitude>
      <magnitude publicID="smi:org.isc/magnitudes/800000002b">
        <mag><value>4.2</value></mag>
        <type>mb</type>
        <stationCount>30</stationCount>
      </magnitude>
    </event>
  </eventParameters>
</q:quakeml>`

func TestParseQuakeML_PreferredOriginAndMagnitude(t *testing.T) {
	events, errs := ParseQuakeML("isc", []byte(quakeMLFixture))
	require.Empty(t, errs)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "isc:600000001", first.EventUID)
	assert.Equal(t, -10.5, first.Latitude)
	assert.Equal(t, -20.3, first.Longitude)
	assert.Equal(t, 15.0, first.DepthKm, "depth converted metres to km")
	assert.Equal(t, 5.8, first.MagnitudeValue)
	assert.Equal(t, "mb", first.MagnitudeType)
	assert.Equal(t, "ISC", first.Author)
	assert.Equal(t, "Southern Mid-Atlantic Ridge", first.Place)
	assert.True(t, first.OriginTimeUTC.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "reviewed", string(first.Status))
}

func TestParseQuakeML_MissingPreferredIDsFallsBackToTypeThenStationCount(t *testing.T) {
	events, errs := ParseQuakeML("isc", []byte(quakeMLFixture))
	require.Empty(t, errs)
	require.Len(t, events, 2)

	second := events[1]
	assert.Equal(t, "isc:600000002", second.EventUID)
	// 800000002a is type mw (stationCount 20) and 800000002b is type mb
	// (stationCount 30, the larger count). Type preference wins over
	// station count, so the mw magnitude is preferred despite fewer
	// reporting stations.
	assert.Equal(t, 4.0, second.MagnitudeValue)
	assert.Equal(t, "mw", second.MagnitudeType)
	assert.Equal(t, "automatic", string(second.Status))
}

func TestParseQuakeML_MalformedXML(t *testing.T) {
	events, errs := ParseQuakeML("isc", []byte("<not-xml"))
	assert.Nil(t, events)
	require.Len(t, errs, 1)
	assert.Equal(t, "malformed_payload", string(errs[0].Kind))
}

func TestParseQuakeML_EventMissingOriginIsPerEventError(t *testing.T) {
	raw := `<q:quakeml xmlns:q="http://quakeml.org/xmlns/quakeml/1.2">
  <eventParameters>
    <event publicID="smi:org.isc/events/600000003">
      <magnitude publicID="m1"><mag><value>3.0</value></mag><type>ml</type></magnitude>
    </event>
  </eventParameters>
</q:quakeml>`
	events, errs := ParseQuakeML("isc", []byte(raw))
	assert.Empty(t, events)
	require.Len(t, errs, 1)
	assert.Equal(t, "malformed_event", string(errs[0].Kind))
	assert.Equal(t, "600000003", errs[0].SourceEventID)
}

func TestStripQuakeMLURN(t *testing.T) {
	assert.Equal(t, "600000000", stripQuakeMLURN("smi:org.isc/events/600000000"))
	assert.Equal(t, "us1000abcd", stripQuakeMLURN("quakeml:us.anss.org/event/us1000abcd"))
	assert.Equal(t, "bare-id", stripQuakeMLURN("bare-id"))
}

func TestMagnitudeTypeRank_KnownAndUnknown(t *testing.T) {
	assert.Less(t, magnitudeTypeRank("mw"), magnitudeTypeRank("mb"))
	assert.Less(t, magnitudeTypeRank("mb"), magnitudeTypeRank("unknown-type"))
}

func TestPreferredMagnitude_StationCountTiebreaksEqualType(t *testing.T) {
	ev := quakeMLEvent{
		Magnitudes: []quakeMLMagnitude{
			{PublicID: "a", Type: "mb", StationCount: 10},
			{PublicID: "b", Type: "mb", StationCount: 25},
		},
	}
	got := preferredMagnitude(ev)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.PublicID, "equal type ranks tiebreak on the larger stationCount")
}
