package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
)

func TestLoadPolicy(t *testing.T) {
	yaml := `
policy:
  defaults:
    source_priorities: { excel: 1, pdf: 2 }
  fields:
    Revenue:
      strategy: median
    Status:
      strategy: Source_Priority
      source_priorities: { word: 1 }
    Period: {}
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	rev := p.ForField("Revenue")
	assert.Equal(t, model.StrategyMedian, rev.Strategy)
	assert.Equal(t, map[string]int{"excel": 1, "pdf": 2}, rev.SourcePriorities) // inherited

	status := p.ForField("Status")
	assert.Equal(t, model.StrategySourcePriority, status.Strategy)
	assert.Equal(t, map[string]int{"word": 1}, status.SourcePriorities)

	assert.Empty(t, p.ForField("Period").Strategy)

	other := p.ForField("Unknown")
	assert.Empty(t, other.Strategy)
	assert.Equal(t, map[string]int{"excel": 1, "pdf": 2}, other.SourcePriorities)
}

func TestLoadPolicy_UnknownStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy:\n  fields:\n    Revenue:\n      strategy: coin_flip\n"), 0644))

	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Revenue")
}

func TestLoadPolicy_FileNotFound(t *testing.T) {
	_, err := LoadPolicy("/nonexistent/policy.yaml")
	assert.Error(t, err)
}

func TestPolicy_NilForField(t *testing.T) {
	var p *Policy
	assert.Equal(t, FieldPolicy{}, p.ForField("x"))
}
