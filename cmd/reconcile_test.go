package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/source"
	"github.com/sells-group/reconcile-cli/internal/store"
)

func TestRunReconcile_JSON(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	paths := []string{
		writeTestFile(t, dir, "extracted.json", testRecords),
		writeTestFile(t, dir, "notes.csv", "Owner,Acme\n"),
	}

	var out bytes.Buffer
	err := runReconcile(context.Background(), &out, reconcileOptions{paths: paths, format: formatJSON})
	require.NoError(t, err)

	var report model.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, model.ReportSummary{TotalFields: 3, ConflictsDetected: 1, ConflictsResolved: 1}, report.Summary)

	rev := report.ResolvedData["Revenue"]
	assert.Equal(t, model.StrategyWeightedAverage, rev.ResolutionStrategy)
	// (1,200,000×0.95 + 1,100,000×0.8) / 1.75
	assert.InDelta(t, 2020000.0/1.75, rev.Value, 0.01)

	status := report.ResolvedData["Status"]
	assert.Equal(t, model.StrategyNoConflict, status.ResolutionStrategy)
	assert.Equal(t, "Active", status.Value)

	owner := report.ResolvedData["Owner"]
	assert.Equal(t, "Acme", owner.Value)
	assert.InDelta(t, 0.5, owner.Confidence, 0.0001) // engine default
}

func TestRunReconcile_YAMLToFile(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "extracted.json", testRecords)
	outPath := filepath.Join(dir, "report.yaml")

	var stdout bytes.Buffer
	err := runReconcile(context.Background(), &stdout, reconcileOptions{paths: []string{path}, format: formatYAML, output: outPath})
	require.NoError(t, err)
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Contains(t, doc, "resolved_data")
	summary, ok := doc["summary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, summary["conflicts_detected"])
}

func TestRunReconcile_SaveRun(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "extracted.json", testRecords)

	var out bytes.Buffer
	require.NoError(t, runReconcile(context.Background(), &out, reconcileOptions{paths: []string{path}, format: formatTable, save: true}))
	assert.Contains(t, out.String(), "Conflicts detected:")
	assert.Contains(t, out.String(), "Revenue")

	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, []string{path}, runs[0].Sources)
	assert.Equal(t, 1, runs[0].Summary.ConflictsDetected)

	fields, err := st.ListFields(ctx)
	require.NoError(t, err)
	assert.Len(t, fields, 2)
}

func TestRunReconcile_FailOnReview(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "zero.json", `[
		{"source_id": "a", "confidence": 0, "data": {"Revenue": 100}},
		{"source_id": "b", "confidence": 0, "data": {"Revenue": 200}}
	]`)

	var out bytes.Buffer
	err := runReconcile(context.Background(), &out, reconcileOptions{paths: []string{path}, failOnReview: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errReviewRequired))

	out.Reset()
	require.NoError(t, runReconcile(context.Background(), &out, reconcileOptions{paths: []string{path}}))
}

func TestRunReconcile_SourceOverrides(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	paths := []string{
		writeTestFile(t, dir, "a.csv", "Status,Active\n"),
		writeTestFile(t, dir, "b.csv", "Status,Closed\n"),
	}

	conf := 0.9
	var out bytes.Buffer
	err := runReconcile(context.Background(), &out, reconcileOptions{
		paths: paths,
		load:  source.Options{Confidence: &conf},
	})
	require.NoError(t, err)

	var report model.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, model.ConflictCategoricalMismatch, report.Conflicts[0].Kind)
	// Equal confidence: the first source wins.
	assert.Equal(t, "Active", report.ResolvedData["Status"].Value)
	assert.InDelta(t, 0.9, report.ResolvedData["Status"].Confidence, 0.0001)
}

func TestRunReconcile_LoadError(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "bad.json", `[{"data": [1, 2]}]`)

	err := runReconcile(context.Background(), &bytes.Buffer{}, reconcileOptions{paths: []string{path}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data must be a mapping")
}

func TestRunReconcile_UnsupportedFormat(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "extracted.json", testRecords)

	err := runReconcile(context.Background(), &bytes.Buffer{}, reconcileOptions{paths: []string{path}, format: "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestRunReconcile_LargeIntegerPassesThrough(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "ledger.json", `[
		{"source_id": "ledger", "confidence": 0.9, "data": {"Account": 12345678901234567}}
	]`)

	var out bytes.Buffer
	require.NoError(t, runReconcile(context.Background(), &out, reconcileOptions{paths: []string{path}}))
	assert.Contains(t, out.String(), `"value": 12345678901234567`)
	assert.NotContains(t, out.String(), "e+16")
}
