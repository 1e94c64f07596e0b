// Package parse converts raw agency bytes into canonical NormalizedEvent
// records, one file per wire format (spec §4.C). Every parser is pure: no
// I/O, deterministic, and total over malformed input (it reports errors
// rather than panicking).
package parse

import (
	"fmt"

	"github.com/seismicfusion/eqfusion/internal/domain"
)

// Func parses one payload for a single source into zero or more canonical
// events plus zero or more per-event errors. A whole-payload failure (e.g.
// invalid JSON/XML) returns zero events and exactly one error.
type Func func(source string, raw []byte) ([]domain.NormalizedEvent, []*domain.ParseError)

// table is the tagged-variant dispatch table: format tag -> parser function.
// Keeping it a plain map avoids open-ended polymorphism per spec §9.
var table = map[domain.Format]Func{
	domain.FormatGeoJSONUSGS: ParseGeoJSONUSGS,
	domain.FormatGeoJSONEMSC: ParseGeoJSONEMSC,
	domain.FormatFDSNText:    ParseFDSNText,
	domain.FormatQuakeML:     ParseQuakeML,
}

// Dispatch looks up and invokes the parser registered for format. An unknown
// format is itself a whole-payload ParseError of kind unsupported_format.
func Dispatch(format domain.Format, source string, raw []byte) ([]domain.NormalizedEvent, []*domain.ParseError) {
	fn, ok := table[format]
	if !ok {
		return nil, []*domain.ParseError{{
			Source:   source,
			Kind:     domain.ParseUnsupportedFormat,
			RawBytes: raw,
			Err:      fmt.Errorf("no parser registered for format %q", format),
		}}
	}
	return fn(source, raw)
}
