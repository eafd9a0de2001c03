// Package models defines the domain types shared across the extractor:
// granularities and their protocol metadata, datasets, chunks and rows.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownGranularity signals a granularity outside the supported set; it
// is a configuration error, upstream validation should make it unreachable.
var ErrUnknownGranularity = errors.New("unsupported granularity")

// Granularity is the time resolution of exported data points.
type Granularity string

const (
	Year        Granularity = "year"
	QuarterYear Granularity = "quarterYear"
	Month       Granularity = "month"
	Day         Granularity = "day"
	Hour        Granularity = "hour"
	QuarterHour Granularity = "quarterHour"
	Minute      Granularity = "minute"
)

// GranularityMeta holds the single-letter API code and the data point
// density for one granularity level.
//
// Points per day follow the time intervals:
//   - minute: 24h x 60min = 1440 points/day
//   - quarterHour: 24h x 4 quarters = 96 points/day
//   - hour: 24 points/day
//   - day/month/quarterYear/year: 1 point per period
type GranularityMeta struct {
	ShortCode    string
	PointsPerDay int
}

var granularityMeta = map[Granularity]GranularityMeta{
	Year:        {ShortCode: "r", PointsPerDay: 1},
	QuarterYear: {ShortCode: "v", PointsPerDay: 1},
	Month:       {ShortCode: "m", PointsPerDay: 1},
	Day:         {ShortCode: "d", PointsPerDay: 1},
	Hour:        {ShortCode: "h", PointsPerDay: 24},
	QuarterHour: {ShortCode: "c", PointsPerDay: 96},
	Minute:      {ShortCode: "t", PointsPerDay: 1440},
}

// Meta returns the protocol metadata for a granularity.
func Meta(g Granularity) (GranularityMeta, error) {
	meta, ok := granularityMeta[g]
	if !ok {
		return GranularityMeta{}, fmt.Errorf("%w: %s", ErrUnknownGranularity, g)
	}
	return meta, nil
}

// Granularities lists all supported levels.
func Granularities() []Granularity {
	return []Granularity{Year, QuarterYear, Month, Day, Hour, QuarterHour, Minute}
}

// Valid reports whether g is one of the supported levels.
func (g Granularity) Valid() bool {
	_, ok := granularityMeta[g]
	return ok
}

// FileSuffix returns the snake_case filename component for a granularity,
// e.g. quarterHour -> quarter_hour.
func (g Granularity) FileSuffix() string {
	var b strings.Builder
	for _, r := range string(g) {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Dataset selects which remote operation a run extracts.
type Dataset string

const (
	// DatasetExport fetches metered values (xexport operation).
	DatasetExport Dataset = "export"
	// DatasetJournal fetches event records (xjournal operation).
	DatasetJournal Dataset = "journal"
)

// Valid reports whether d is a known dataset.
func (d Dataset) Valid() bool {
	return d == DatasetExport || d == DatasetJournal
}

// OutputFields returns the CSV/table column order for a dataset.
func (d Dataset) OutputFields() []string {
	switch d {
	case DatasetJournal:
		return []string{"uzel", "popis", "cas", "udalost", "faze"}
	default:
		return []string{"uzel", "hodnota", "cas"}
	}
}

// MandatoryFields returns the child elements a response row must carry to
// be emitted; rows missing any of them are skipped.
func (d Dataset) MandatoryFields() []string {
	switch d {
	case DatasetJournal:
		return []string{"uzel", "popis", "cas"}
	default:
		return []string{"uzel", "hodnota", "cas"}
	}
}

// PrimaryKeys returns the business uniqueness expectation for a dataset.
// Uniqueness is not enforced by the extractor itself.
func (d Dataset) PrimaryKeys() []string {
	switch d {
	case DatasetJournal:
		return []string{"uzel", "cas", "udalost", "faze"}
	default:
		return []string{"uzel", "cas"}
	}
}

// Operation returns the SOAPAction name for a dataset.
func (d Dataset) Operation() string {
	if d == DatasetJournal {
		return "xjournal"
	}
	return "xexport"
}

// Row is one extracted record, keyed by protocol field name. Rows are
// immutable once produced.
type Row map[string]string

// Chunk addresses one independent fetch operation: either an inclusive
// calendar date range, or a single calendar-period token ("r-2", "m",
// "d-10"), never both.
type Chunk struct {
	Start  string
	End    string
	Period string
}

// IsPeriod reports whether the chunk uses period addressing.
func (c Chunk) IsPeriod() bool {
	return c.Period != ""
}

func (c Chunk) String() string {
	if c.IsPeriod() {
		return c.Period
	}
	return c.Start + ".." + c.End
}
