package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeta(t *testing.T) {
	tests := []struct {
		granularity  Granularity
		shortCode    string
		pointsPerDay int
	}{
		{Year, "r", 1},
		{QuarterYear, "v", 1},
		{Month, "m", 1},
		{Day, "d", 1},
		{Hour, "h", 24},
		{QuarterHour, "c", 96},
		{Minute, "t", 1440},
	}

	for _, tt := range tests {
		t.Run(string(tt.granularity), func(t *testing.T) {
			meta, err := Meta(tt.granularity)
			require.NoError(t, err)
			assert.Equal(t, tt.shortCode, meta.ShortCode)
			assert.Equal(t, tt.pointsPerDay, meta.PointsPerDay)
		})
	}
}

func TestMetaUnknownGranularity(t *testing.T) {
	_, err := Meta("weekly")
	assert.ErrorIs(t, err, ErrUnknownGranularity)
}

func TestShortCodesAreUnique(t *testing.T) {
	seen := make(map[string]Granularity)
	for _, g := range Granularities() {
		meta, err := Meta(g)
		require.NoError(t, err)
		require.Len(t, meta.ShortCode, 1)
		require.Positive(t, meta.PointsPerDay)
		if prev, ok := seen[meta.ShortCode]; ok {
			t.Fatalf("short code %q shared by %s and %s", meta.ShortCode, prev, g)
		}
		seen[meta.ShortCode] = g
	}
}

func TestFileSuffix(t *testing.T) {
	tests := []struct {
		granularity Granularity
		expected    string
	}{
		{Year, "year"},
		{QuarterYear, "quarter_year"},
		{Month, "month"},
		{Day, "day"},
		{Hour, "hour"},
		{QuarterHour, "quarter_hour"},
		{Minute, "minute"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.granularity.FileSuffix())
	}
}

func TestDatasetFields(t *testing.T) {
	assert.Equal(t, []string{"uzel", "hodnota", "cas"}, DatasetExport.OutputFields())
	assert.Equal(t, []string{"uzel", "cas"}, DatasetExport.PrimaryKeys())
	assert.Equal(t, "xexport", DatasetExport.Operation())

	assert.Equal(t, []string{"uzel", "popis", "cas", "udalost", "faze"}, DatasetJournal.OutputFields())
	assert.Equal(t, []string{"uzel", "cas", "udalost", "faze"}, DatasetJournal.PrimaryKeys())
	assert.Equal(t, []string{"uzel", "popis", "cas"}, DatasetJournal.MandatoryFields())
	assert.Equal(t, "xjournal", DatasetJournal.Operation())

	assert.True(t, DatasetExport.Valid())
	assert.True(t, DatasetJournal.Valid())
	assert.False(t, Dataset("events").Valid())
}

func TestChunkAddressing(t *testing.T) {
	rangeChunk := Chunk{Start: "2025-01-01", End: "2025-01-31"}
	assert.False(t, rangeChunk.IsPeriod())
	assert.Equal(t, "2025-01-01..2025-01-31", rangeChunk.String())

	periodChunk := Chunk{Period: "r-2"}
	assert.True(t, periodChunk.IsPeriod())
	assert.Equal(t, "r-2", periodChunk.String())
}
