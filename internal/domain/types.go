package domain

import "time"

// Format tags the wire format of a source so the poller can dispatch bytes
// to the right parser.
type Format string

const (
	FormatGeoJSONUSGS Format = "geojson_usgs"
	FormatGeoJSONEMSC Format = "geojson_emsc"
	FormatFDSNText    Format = "fdsn_text"
	FormatQuakeML     Format = "quakeml"
)

// Status is the review state an agency assigns to an origin solution.
type Status string

const (
	StatusAutomatic Status = "automatic"
	StatusReviewed  Status = "reviewed"
	StatusManual    Status = "manual"
)

// Region is a coarse geographic bucket used for source-priority ordering.
type Region string

const (
	RegionAmericas    Region = "americas"
	RegionEurope      Region = "europe"
	RegionAfrica      Region = "africa"
	RegionAsiaPacific Region = "asia_pacific"
)

// RawEnvelope is the immutable, append-only provenance record for one fetch.
type RawEnvelope struct {
	Source        string
	SourceEventID string
	RawBytes      []byte
	FetchedAt     time.Time
}

// NormalizedEvent is the canonical event record produced by a format parser.
type NormalizedEvent struct {
	// Identity.
	EventUID      string
	Source        string
	SourceEventID string

	// Required.
	OriginTimeUTC  time.Time
	Latitude       float64
	Longitude      float64
	DepthKm        float64
	MagnitudeValue float64
	MagnitudeType  string
	Status         Status

	// Optional.
	Place          string
	Region         Region
	LatErrorKm     *float64
	LonErrorKm     *float64
	DepthErrorKm   *float64
	MagError       *float64
	TimeErrorSec   *float64
	NumPhases      *int
	AzimuthalGap   *float64
	Author         string
	URL            string
	UpdatedAt      time.Time

	// Bookkeeping, not part of the agency payload.
	FetchedAt   time.Time
	IngestedAt  time.Time
	RawPayload  []byte
}

// UnifiedEvent is the best-estimate, deduplicated representation of one
// physical earthquake, fused from one or more NormalizedEvents.
type UnifiedEvent struct {
	UnifiedEventID string

	// Best-estimate fields, copied verbatim from the preferred representative.
	OriginTimeUTC  time.Time
	Latitude       float64
	Longitude      float64
	DepthKm        float64
	MagnitudeValue float64
	MagnitudeType  string
	Place          string
	Region         Region
	Status         Status

	// Aggregates.
	NumSources         int
	PreferredSource    string
	PreferredEventUID  string
	SourceEventUIDs    []string

	// Quality metrics.
	MagnitudeStd         float64
	LocationSpreadKm     float64
	SourceAgreementScore float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CrosswalkRow is one row of the many-to-one mapping from a source-level
// event to the unified event it was folded into.
type CrosswalkRow struct {
	EventUID       string
	UnifiedEventID string
	MatchScore     float64
	IsPreferred    bool
	CreatedAt      time.Time
}

// DeadLetterEntry records a payload the pipeline could not convert or
// validate, retained with its original bytes for inspection.
type DeadLetterEntry struct {
	Source        string
	SourceEventID string // empty when the whole payload failed before an id could be extracted
	RawPayload    []byte
	ErrorMessages []string
	CreatedAt     time.Time
}

// RunStatus is the terminal state of one pipeline_run entry.
type RunStatus string

const (
	RunStatusOK     RunStatus = "ok"
	RunStatusFailed RunStatus = "failed"
)

// PipelineRun is the telemetry row emitted once per poll-and-cluster
// invocation (batch mode) or once per poller/clustering cycle (worker mode).
type PipelineRun struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	Status            RunStatus
	SourcesFetched    []string
	RawEventsCount    int
	UnifiedEventsCount int
	DeadLetterCount   int
	ErrorMessage      string
	DurationSeconds   float64
}
