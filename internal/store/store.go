package store

import (
	"context"
	"sort"
	"time"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Field      string `json:"field,omitempty"`       // runs that resolved this field
	ReviewOnly bool   `json:"review_only,omitempty"` // runs with manual review outstanding
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// ResolutionFilter specifies criteria for listing stored resolutions.
type ResolutionFilter struct {
	RunID      string `json:"run_id,omitempty"`
	Field      string `json:"field,omitempty"`
	ReviewOnly bool   `json:"review_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// ResolutionRecord is one persisted resolution row.
type ResolutionRecord struct {
	RunID          string         `json:"run_id"`
	ConflictID     string         `json:"conflict_id"`
	Field          string         `json:"field"`
	Strategy       model.Strategy `json:"strategy"`
	ResolvedValue  any            `json:"resolved_value"`
	Confidence     float64        `json:"confidence"`
	RequiresReview bool           `json:"requires_review"`
	CreatedAt      time.Time      `json:"created_at"`
}

// FieldRecord is the latest reconciled value of a field across all runs.
type FieldRecord struct {
	Field      string         `json:"field"`
	Value      any            `json:"value"`
	Confidence float64        `json:"confidence"`
	Strategy   model.Strategy `json:"strategy"`
	RunID      string         `json:"run_id"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Store persists reconciliation runs. The engine itself never persists;
// callers hand finished runs to a Store.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Resolution history
	ListResolutions(ctx context.Context, filter ResolutionFilter) ([]ResolutionRecord, error)
	ListFields(ctx context.Context) ([]FieldRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// prepareRun fills in the ID, timestamp and summary of a run about to be saved.
func prepareRun(run *model.Run, newID func() string) {
	if run.ID == "" {
		run.ID = newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Report != nil {
		run.Summary = run.Report.Summary
	}
}

// resolutionRows flattens a run's resolutions into store rows.
func resolutionRows(run *model.Run) []ResolutionRecord {
	if run.Report == nil {
		return nil
	}
	out := make([]ResolutionRecord, 0, len(run.Report.Resolutions))
	for _, r := range run.Report.Resolutions {
		out = append(out, ResolutionRecord{
			RunID:          run.ID,
			ConflictID:     r.ConflictID,
			Field:          r.FieldName,
			Strategy:       r.Strategy,
			ResolvedValue:  r.ResolvedValue,
			Confidence:     r.Confidence,
			RequiresReview: r.RequiresReview,
			CreatedAt:      run.CreatedAt,
		})
	}
	return out
}

// fieldRows returns a run's reconciled fields sorted by name.
func fieldRows(run *model.Run) []FieldRecord {
	if run.Report == nil {
		return nil
	}
	names := make([]string, 0, len(run.Report.ResolvedData))
	for name := range run.Report.ResolvedData {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]FieldRecord, 0, len(names))
	for _, name := range names {
		f := run.Report.ResolvedData[name]
		out = append(out, FieldRecord{
			Field:      name,
			Value:      f.Value,
			Confidence: f.Confidence,
			Strategy:   f.ResolutionStrategy,
			RunID:      run.ID,
			UpdatedAt:  run.CreatedAt,
		})
	}
	return out
}
