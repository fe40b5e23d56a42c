package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceRecord_Full(t *testing.T) {
	t.Parallel()

	rec, err := ParseSourceRecord(map[string]any{
		"source_id":       "q1-financials.xlsx",
		"source_type":     "excel",
		"extraction_time": "2025-06-15T12:00:00Z",
		"confidence":      0.9,
		"metadata":        map[string]any{"sheet": "Summary"},
		"data":            map[string]any{"Revenue": 1000000.0},
	})
	require.NoError(t, err)

	assert.Equal(t, "q1-financials.xlsx", rec.SourceID)
	assert.Equal(t, "excel", rec.SourceType)
	require.NotNil(t, rec.ExtractionTime)
	assert.Equal(t, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), *rec.ExtractionTime)
	require.NotNil(t, rec.Confidence)
	assert.InDelta(t, 0.9, *rec.Confidence, 0.0001)
	assert.Equal(t, "Summary", rec.Metadata["sheet"])
	assert.Equal(t, 1000000.0, rec.Data["Revenue"])
}

func TestParseSourceRecord_Defaults(t *testing.T) {
	t.Parallel()

	rec, err := ParseSourceRecord(map[string]any{"source_id": "a"})
	require.NoError(t, err)
	assert.Nil(t, rec.ExtractionTime)
	assert.Nil(t, rec.Confidence)
	assert.NotNil(t, rec.Data)
	assert.Empty(t, rec.Data)
}

func TestParseSourceRecord_ExtractionDateAlias(t *testing.T) {
	t.Parallel()

	rec, err := ParseSourceRecord(map[string]any{
		"extraction_date": "2024-03-31",
		"data":            map[string]any{},
	})
	require.NoError(t, err)
	require.NotNil(t, rec.ExtractionTime)
	assert.Equal(t, 2024, rec.ExtractionTime.Year())
	assert.Equal(t, time.March, rec.ExtractionTime.Month())
}

func TestParseSourceRecord_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"not a mapping", []any{"x"}, "must be a mapping"},
		{"bad timestamp", map[string]any{"extraction_time": "last tuesday"}, "invalid ISO-8601"},
		{"numeric timestamp", map[string]any{"extraction_time": 12345.0}, "extraction_time"},
		{"string confidence", map[string]any{"confidence": "high"}, "confidence"},
		{"data list", map[string]any{"data": []any{1, 2}}, "data must be a mapping"},
		{"metadata scalar", map[string]any{"metadata": "x"}, "metadata must be a mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSourceRecord(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSourceRecords_StopsAtFirstError(t *testing.T) {
	t.Parallel()

	_, err := ParseSourceRecords([]any{
		map[string]any{"source_id": "ok"},
		"broken",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source record 1")
}

func TestParseTimestamp_Layouts(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"2025-01-02T03:04:05Z",
		"2025-01-02T03:04:05.123456+02:00",
		"2025-01-02T03:04:05",
		"2025-01-02 03:04:05",
		"2025-01-02",
	} {
		ts, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2025, ts.Year(), s)
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	s, err := ParseStrategy(" Weighted_Average ")
	require.NoError(t, err)
	assert.Equal(t, StrategyWeightedAverage, s)

	_, err = ParseStrategy("no_conflict")
	assert.Error(t, err)

	_, err = ParseStrategy("coin_flip")
	assert.Error(t, err)
}

func TestParseConflictKind(t *testing.T) {
	t.Parallel()

	k, err := ParseConflictKind("semantic_conflict")
	require.NoError(t, err)
	assert.Equal(t, ConflictSemantic, k)
	assert.False(t, ConflictKind("bogus").Valid())
}

func TestObservation_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, Observation{}.IsEmpty())
	assert.True(t, Observation{Value: ""}.IsEmpty())
	assert.False(t, Observation{Value: " "}.IsEmpty())
	assert.False(t, Observation{Value: 0}.IsEmpty())
	assert.False(t, Observation{Value: false}.IsEmpty())
}

func TestConflict_String(t *testing.T) {
	t.Parallel()

	c := Conflict{
		FieldName: "Revenue",
		Observations: []Observation{
			{Value: 100},
			{Value: "120"},
		},
	}
	assert.Equal(t, "Conflict in Revenue: 100 vs 120", c.String())
}
