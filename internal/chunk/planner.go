// Package chunk splits a requested date range into the independent fetch
// operations a run dispatches. The API has no paging, so large ranges must
// be self-chunked: either into date sub-ranges sized by a memory budget, or
// into the calendar-period tokens the protocol's "periods ago" addressing
// understands.
package chunk

import (
	"fmt"
	"time"

	"github.com/enerlytics/energis-extractor/internal/models"
)

const (
	// MaxChunkBytes is the memory budget one chunk's rows may occupy.
	MaxChunkBytes = 10 * 1024 * 1024

	// BytesPerRow is the estimated in-memory size of one row.
	BytesPerRow = 200

	maxRowsPerChunk = MaxChunkBytes / BytesPerRow

	dateLayout = "2006-01-02"
)

// Days returns the chunk length in days for a granularity and node count,
// derived from the memory budget. Never less than one day.
func Days(g models.Granularity, nodeCount int) (int, error) {
	meta, err := models.Meta(g)
	if err != nil {
		return 0, err
	}
	if nodeCount < 1 {
		return 0, fmt.Errorf("node count must be positive, got %d", nodeCount)
	}
	rowsPerDay := meta.PointsPerDay * nodeCount
	days := maxRowsPerChunk / rowsPerDay
	if days < 1 {
		days = 1
	}
	return days, nil
}

// PlanRange splits [dateFrom, dateTo] into contiguous, non-overlapping
// inclusive date sub-ranges whose union is exactly the input range; the
// final chunk may be shorter than the nominal size. A range where dateFrom
// >= dateTo yields no chunks, which callers treat as a no-op.
func PlanRange(g models.Granularity, nodeCount int, dateFrom, dateTo string) ([]models.Chunk, error) {
	days, err := Days(g, nodeCount)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, dateFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid date_from %q: %w", dateFrom, err)
	}
	end, err := time.Parse(dateLayout, dateTo)
	if err != nil {
		return nil, fmt.Errorf("invalid date_to %q: %w", dateTo, err)
	}

	var chunks []models.Chunk
	for current := start; current.Before(end); {
		chunkEnd := current.AddDate(0, 0, days)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, models.Chunk{
			Start: current.Format(dateLayout),
			End:   chunkEnd.Format(dateLayout),
		})
		current = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks, nil
}

// PlanPeriods expresses [dateFrom, dateTo] as the protocol's calendar
// period tokens, counting down from the oldest period to the current one:
// N periods ago renders as "<code>-N", the current period as the bare
// code. Equal dates yield exactly one token. Node count and memory are
// irrelevant here because each token is fetched by its own call.
func PlanPeriods(g models.Granularity, dateFrom, dateTo string) ([]models.Chunk, error) {
	meta, err := models.Meta(g)
	if err != nil {
		return nil, err
	}
	start, err := time.Parse(dateLayout, dateFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid date_from %q: %w", dateFrom, err)
	}
	end, err := time.Parse(dateLayout, dateTo)
	if err != nil {
		return nil, fmt.Errorf("invalid date_to %q: %w", dateTo, err)
	}

	steps, err := periodSteps(g, start, end)
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	for i := steps; i >= 0; i-- {
		token := meta.ShortCode
		if i > 0 {
			token = fmt.Sprintf("%s-%d", meta.ShortCode, i)
		}
		chunks = append(chunks, models.Chunk{Period: token})
	}
	return chunks, nil
}

// periodSteps counts whole calendar units between the two dates. Calendar
// granularities compare truncated-to-unit values; sub-day granularities
// divide the elapsed duration by the unit length.
func periodSteps(g models.Granularity, start, end time.Time) (int, error) {
	switch g {
	case models.Year:
		return end.Year() - start.Year(), nil
	case models.QuarterYear:
		return quarterIndex(end) - quarterIndex(start), nil
	case models.Month:
		return (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()), nil
	case models.Day:
		return int(end.Sub(start) / (24 * time.Hour)), nil
	case models.Hour:
		return int(end.Sub(start) / time.Hour), nil
	case models.QuarterHour:
		return int(end.Sub(start) / (15 * time.Minute)), nil
	case models.Minute:
		return int(end.Sub(start) / time.Minute), nil
	default:
		return 0, fmt.Errorf("unsupported granularity: %s", g)
	}
}

func quarterIndex(t time.Time) int {
	return t.Year()*4 + (int(t.Month())-1)/3
}
