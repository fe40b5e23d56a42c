package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSVFileDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Q3 Report.csv", "Revenue,100\n")

	recs, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Q3 Report", recs[0].SourceID)
	assert.Equal(t, TypeCSV, recs[0].SourceType)
	assert.Nil(t, recs[0].Confidence)
}

func TestLoad_XLSXFileDefaults(t *testing.T) {
	path := createTestXLSX(t, "model.xlsx", map[string][][]string{"Sheet1": {{"Revenue", "100"}}})

	recs, err := Load(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "model", recs[0].SourceID)
	assert.Equal(t, TypeExcel, recs[0].SourceType)
}

func TestLoad_OverridesOnlyFillGaps(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "records.json", `[
		{"source_id": "a", "confidence": 0.9, "data": {"x": 1}},
		{"data": {"x": 2}}
	]`)

	conf := 0.6
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	recs, err := Load(context.Background(), path, Options{SourceType: "word", Confidence: &conf, ExtractionTime: &at})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "a", recs[0].SourceID)
	assert.InDelta(t, 0.9, *recs[0].Confidence, 0.0001)
	assert.Equal(t, "word", recs[0].SourceType)

	assert.Equal(t, "", recs[1].SourceID)
	assert.InDelta(t, 0.6, *recs[1].Confidence, 0.0001)
	assert.Equal(t, at, *recs[1].ExtractionTime)
}

func TestLoad_TSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "deck.tsv", "Status\tActive\n")

	recs, err := Load(context.Background(), path, Options{SourceType: "pdf"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "pdf", recs[0].SourceType)
	assert.Equal(t, "Active", recs[0].Data["Status"])
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(context.Background(), writeFile(t, dir, "notes.txt", "x"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	_, err = Load(context.Background(), filepath.Join(dir, "missing.json"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: load")
}

func TestLoadFiles_KeepsPathOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.json", `[{"source_id": "a1", "data": {}}, {"source_id": "a2", "data": {}}]`),
		writeFile(t, dir, "b.csv", "Revenue,1\n"),
		writeFile(t, dir, "c.json", `{"source_id": "c1", "data": {}}`),
	}

	recs, err := LoadFiles(context.Background(), paths, Options{}, 2)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, []string{"a1", "a2", "b", "c1"},
		[]string{recs[0].SourceID, recs[1].SourceID, recs[2].SourceID, recs[3].SourceID})
}

func TestLoadFiles_FailureStopsRun(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "ok.json", `[]`),
		writeFile(t, dir, "bad.json", `[{"data": "oops"}]`),
	}

	_, err := LoadFiles(context.Background(), paths, Options{}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestLoadFiles_Empty(t *testing.T) {
	recs, err := LoadFiles(context.Background(), nil, Options{}, 4)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
