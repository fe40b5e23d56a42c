package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Strategy names the algorithm used to turn a Conflict into a Resolution.
type Strategy string

const (
	StrategyMostRecent        Strategy = "most_recent"
	StrategyHighestConfidence Strategy = "highest_confidence"
	StrategyMajorityVote      Strategy = "majority_vote"
	StrategyAverage           Strategy = "average"
	StrategyMedian            Strategy = "median"
	StrategySourcePriority    Strategy = "source_priority"
	StrategyManualReview      Strategy = "manual_review"
	StrategyWeightedAverage   Strategy = "weighted_average"

	// StrategyNoConflict marks reconciled entries that never conflicted.
	// It is not accepted by the resolver.
	StrategyNoConflict Strategy = "no_conflict"
)

// Strategies lists every strategy the resolver accepts.
var Strategies = []Strategy{
	StrategyMostRecent,
	StrategyHighestConfidence,
	StrategyMajorityVote,
	StrategyAverage,
	StrategyMedian,
	StrategySourcePriority,
	StrategyManualReview,
	StrategyWeightedAverage,
}

// ParseStrategy converts a name into a resolver strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Strategies {
		if st == known {
			return st, nil
		}
	}
	return "", eris.Errorf("unknown resolution strategy %q", s)
}

// AuditEntry is one step in the derivation of a resolved value.
type AuditEntry struct {
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Resolution is the outcome of resolving one Conflict. Strategy is the
// strategy actually applied, which may differ from the one requested.
type Resolution struct {
	ConflictID     string       `json:"conflict_id"`
	FieldName      string       `json:"field"`
	Strategy       Strategy     `json:"strategy"`
	ResolvedValue  any          `json:"resolved_value"`
	Confidence     float64      `json:"confidence"`
	Justification  string       `json:"justification"`
	AuditTrail     []AuditEntry `json:"audit_trail"`
	RequiresReview bool         `json:"requires_review"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("Resolved to: %v using %s", r.ResolvedValue, r.Strategy)
}
