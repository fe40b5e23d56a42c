package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/store"
)

const reviewRecords = `[
	{"source_id": "a", "confidence": 0, "data": {"Revenue": 100}},
	{"source_id": "b", "confidence": 0, "data": {"Revenue": 200}}
]`

// saveTestRuns reconciles and saves one clean batch and one batch that needs review.
func saveTestRuns(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	for _, content := range []string{testRecords, reviewRecords} {
		path := writeTestFile(t, dir, "batch.json", content)
		require.NoError(t, runReconcile(context.Background(), &bytes.Buffer{}, reconcileOptions{paths: []string{path}, save: true}))
	}
}

func savedRuns(t *testing.T, filter store.RunFilter) []model.Run {
	t.Helper()
	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, filter)
	require.NoError(t, err)
	return runs
}

func TestHistory_EmptyStore(t *testing.T) {
	setTestConfig(t)
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	require.NoError(t, runHistoryList(ctx, &stdout, &stderr, store.RunFilter{}))
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "No runs found.")

	stderr.Reset()
	require.NoError(t, runHistoryReview(ctx, &stdout, &stderr, store.ResolutionFilter{ReviewOnly: true}))
	assert.Contains(t, stderr.String(), "No resolutions found.")

	stderr.Reset()
	require.NoError(t, runHistoryFields(ctx, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "No reconciled fields found.")
	assert.Empty(t, stdout.String())
}

func TestHistoryList(t *testing.T) {
	setTestConfig(t)
	saveTestRuns(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, runHistoryList(context.Background(), &stdout, &stderr, store.RunFilter{}))
	assert.Empty(t, stderr.String())
	assert.Contains(t, stdout.String(), "CONFLICTS")
	assert.Len(t, savedRuns(t, store.RunFilter{}), 2)
	assert.Len(t, savedRuns(t, store.RunFilter{ReviewOnly: true}), 1)
}

func TestHistoryReview(t *testing.T) {
	setTestConfig(t)
	saveTestRuns(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, runHistoryReview(context.Background(), &stdout, &stderr, store.ResolutionFilter{ReviewOnly: true}))
	assert.Contains(t, stdout.String(), "Revenue")
	assert.Contains(t, stdout.String(), string(model.StrategyManualReview))
	assert.NotContains(t, stdout.String(), string(model.StrategyWeightedAverage))

	stdout.Reset()
	require.NoError(t, runHistoryReview(context.Background(), &stdout, &stderr, store.ResolutionFilter{}))
	assert.Contains(t, stdout.String(), string(model.StrategyWeightedAverage))
}

func TestHistoryFields(t *testing.T) {
	setTestConfig(t)
	saveTestRuns(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, runHistoryFields(context.Background(), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Revenue")
	assert.Contains(t, stdout.String(), "Status")
}

func TestHistoryShow(t *testing.T) {
	setTestConfig(t)
	saveTestRuns(t)

	runs := savedRuns(t, store.RunFilter{ReviewOnly: true})
	require.Len(t, runs, 1)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runHistoryShow(ctx, &out, runs[0].ID, formatJSON))

	var got model.Run
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, runs[0].ID, got.ID)
	require.NotNil(t, got.Report)
	assert.Equal(t, 1, got.Report.Summary.ManualReviewRequired)

	out.Reset()
	require.NoError(t, runHistoryShow(ctx, &out, runs[0].ID, formatTable))
	assert.Contains(t, out.String(), "Manual review:")

	err := runHistoryShow(ctx, &out, "missing", formatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}
