package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
)

func decodeFieldResolution(t *testing.T, b []byte) fieldResolution {
	t.Helper()
	var fr fieldResolution
	require.NoError(t, json.Unmarshal(b, &fr))
	return fr
}

func TestRunResolve_ExplicitStrategy(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "extracted.json", testRecords)

	var out, errOut bytes.Buffer
	err := runResolve(context.Background(), &out, &errOut, resolveOptions{
		paths:    []string{path},
		field:    "Revenue",
		strategy: model.StrategyMedian,
	})
	require.NoError(t, err)

	fr := decodeFieldResolution(t, out.Bytes())
	assert.Equal(t, model.ConflictNumericMismatch, fr.Conflict.Kind)
	assert.Equal(t, model.StrategyMedian, fr.Resolution.Strategy)
	assert.InDelta(t, 1150000.0, fr.Resolution.ResolvedValue, 0.001)
	assert.InDelta(t, 0.75, fr.Resolution.Confidence, 0.0001)
	assert.Equal(t, "Revenue", fr.Resolution.FieldName)
}

func TestRunResolve_PolicyFile(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "extracted.json", testRecords)
	policy := writeTestFile(t, dir, "policy.yaml", `
policy:
  fields:
    Revenue:
      strategy: source_priority
      source_priorities: { pdf: 1, excel: 2 }
`)

	var out, errOut bytes.Buffer
	err := runResolve(context.Background(), &out, &errOut, resolveOptions{
		paths:      []string{path},
		field:      "Revenue",
		policyPath: policy,
	})
	require.NoError(t, err)

	fr := decodeFieldResolution(t, out.Bytes())
	assert.Equal(t, model.StrategySourcePriority, fr.Resolution.Strategy)
	assert.Equal(t, "$1,100,000", fr.Resolution.ResolvedValue)
}

func TestRunResolve_FlagBeatsPolicy(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "extracted.json", testRecords)
	policy := writeTestFile(t, dir, "policy.yaml", "policy:\n  fields:\n    Revenue:\n      strategy: median\n")

	var out, errOut bytes.Buffer
	err := runResolve(context.Background(), &out, &errOut, resolveOptions{
		paths:      []string{path},
		field:      "Revenue",
		strategy:   model.StrategyMostRecent,
		policyPath: policy,
	})
	require.NoError(t, err)

	fr := decodeFieldResolution(t, out.Bytes())
	assert.Equal(t, model.StrategyMostRecent, fr.Resolution.Strategy)
	assert.Equal(t, float64(1200000), fr.Resolution.ResolvedValue)
}

func TestRunResolve_NoConflict(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "extracted.json", testRecords)

	var out, errOut bytes.Buffer
	err := runResolve(context.Background(), &out, &errOut, resolveOptions{paths: []string{path}, field: "Status"})
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), `No conflict found for field "Status"`)
}

func TestRunResolve_TableFormat(t *testing.T) {
	setTestConfig(t)
	path := writeTestFile(t, t.TempDir(), "extracted.json", testRecords)

	var out, errOut bytes.Buffer
	err := runResolve(context.Background(), &out, &errOut, resolveOptions{paths: []string{path}, field: "Revenue", format: formatTable})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "weighted_average")
	assert.Contains(t, out.String(), "calculated_weighted_average")
	assert.Contains(t, out.String(), "deck")
}

func TestRunResolve_BadPolicy(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "extracted.json", testRecords)

	err := runResolve(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, resolveOptions{
		paths:      []string{path},
		field:      "Revenue",
		policyPath: writeTestFile(t, dir, "policy.yaml", "policy:\n  fields:\n    Revenue:\n      strategy: dice\n"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Revenue")
}
