package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/config"
)

// setTestConfig installs a config backed by a temp SQLite store for the
// duration of the test.
func setTestConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Detect:  config.DetectConfig{NumericTolerance: 0.01},
		Resolve: config.ResolveConfig{SourcePriorities: map[string]int{"excel": 1, "word": 2, "pdf": 3}},
		Source:  config.SourceConfig{DefaultConfidence: 0.5, MaxConcurrentLoads: 2},
		Store:   config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "runs.db")},
		Log:     config.LogConfig{Level: "error", Format: "json"},
	}
	t.Cleanup(func() { cfg = prev })
	return cfg
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const testRecords = `[
  {"source_id": "fin", "source_type": "excel", "confidence": 0.95,
   "extraction_time": "2024-03-01T00:00:00Z", "data": {"Revenue": 1200000, "Status": "Active"}},
  {"source_id": "deck", "source_type": "pdf", "confidence": 0.8,
   "extraction_time": "2024-02-01T00:00:00Z", "data": {"Revenue": "$1,100,000", "Status": "Active"}}
]`
