// Package domain models seismic event reports as they move through the
// fusion pipeline: a raw agency payload, a canonical normalized record, and
// the unified event that fuses one or more normalized records believed to
// describe the same physical earthquake.
//
// # Agency wire formats
//
// Four formats are ingested, each resolved to the same canonical shape by
// internal/parse:
//
//	geojson_usgs  - USGS "all events" GeoJSON feed: properties.mag/magType/time,
//	                geometry.coordinates = [lon, lat, depth_km].
//	geojson_emsc  - EMSC's GeoJSON feed, same feature shape as USGS but with
//	                properties.time as an ISO-8601 string instead of epoch ms.
//	fdsn_text     - FDSN web-service pipe-delimited text with a "#"-prefixed
//	                header row and a fixed 13-column layout.
//	quakeml       - QuakeML 1.2 XML; preferred origin/magnitude resolved via
//	                preferredOriginID/preferredMagnitudeID, falling back to
//	                document order and a magnitude-type preference order.
//
// # Identity
//
// A NormalizedEvent's EventUID is "{source}:{source_event_id}", unique across
// the whole system. A UnifiedEvent's ID is a randomly minted UUID, stable for
// the lifetime of the cluster it represents and recovered across runs only
// through the crosswalk, never recomputed from content.
package domain
