package soap

import (
	"fmt"
	"strings"
	"time"

	"github.com/enerlytics/energis-extractor/internal/models"
)

var quarterMap = map[string]string{
	"I":   "Q1",
	"II":  "Q2",
	"III": "Q3",
	"IV":  "Q4",
}

// NormalizeTimestamp converts the per-granularity timestamp encodings used
// in responses into one canonical string form:
//
//   - year, month: passthrough
//   - quarterYear: "III/2025" -> "Q3/2025" (unknown roman tokens pass through)
//   - day: "06.03.2025" -> "2025-03-06"
//   - hour/quarterHour/minute: "06.03.2025 08-09" -> "2025-03-06 08:00"
//
// Sub-day values are reduced to the start instant of the range; the
// start-end form found in some deployments is deliberately not emitted.
func NormalizeTimestamp(value string, g models.Granularity) (string, error) {
	switch g {
	case models.Year, models.Month:
		return value, nil
	case models.QuarterYear:
		quarter, year, found := strings.Cut(value, "/")
		if !found {
			return "", fmt.Errorf("%w: %q for granularity %s", ErrInvalidTimestamp, value, g)
		}
		if mapped, ok := quarterMap[quarter]; ok {
			quarter = mapped
		}
		return quarter + "/" + year, nil
	case models.Day:
		return normalizeDay(value, g)
	case models.Hour, models.QuarterHour, models.Minute:
		dayPart, timePart, found := strings.Cut(value, " ")
		if !found {
			return "", fmt.Errorf("%w: %q for granularity %s", ErrInvalidTimestamp, value, g)
		}
		day, err := normalizeDay(dayPart, g)
		if err != nil {
			return "", err
		}
		start, _, found := strings.Cut(timePart, "-")
		if !found {
			return "", fmt.Errorf("%w: %q has no time range separator", ErrInvalidTimestamp, value)
		}
		if !strings.Contains(start, ":") {
			start += ":00"
		}
		return day + " " + start, nil
	default:
		return "", fmt.Errorf("%w: unsupported granularity %s", ErrInvalidTimestamp, g)
	}
}

func normalizeDay(value string, g models.Granularity) (string, error) {
	t, err := time.Parse("02.01.2006", value)
	if err != nil {
		return "", fmt.Errorf("%w: %q for granularity %s", ErrInvalidTimestamp, value, g)
	}
	return t.Format("2006-01-02"), nil
}
