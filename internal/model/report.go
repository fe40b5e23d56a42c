package model

import "time"

// ReconciledField is the final value chosen for one field.
type ReconciledField struct {
	Value              any      `json:"value"`
	Confidence         float64  `json:"confidence"`
	ResolutionStrategy Strategy `json:"resolution_strategy"`
}

// ReportSummary holds simple counts over a Report.
type ReportSummary struct {
	TotalFields          int `json:"total_fields"`
	ConflictsDetected    int `json:"conflicts_detected"`
	ConflictsResolved    int `json:"conflicts_resolved"`
	ManualReviewRequired int `json:"manual_review_required"`
}

// Report is the outcome of reconciling one batch of sources.
type Report struct {
	ResolvedData   map[string]ReconciledField `json:"resolved_data"`
	Conflicts      []Conflict                 `json:"conflicts"`
	Resolutions    []Resolution               `json:"resolutions"`
	RequiresReview []Resolution               `json:"requires_review"`
	Summary        ReportSummary              `json:"summary"`
}

// Run is a persisted reconciliation run.
type Run struct {
	ID        string        `json:"id"`
	Sources   []string      `json:"sources"`
	Summary   ReportSummary `json:"summary"`
	Report    *Report       `json:"report,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
