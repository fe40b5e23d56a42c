package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ConflictKind classifies a disagreement between observations.
type ConflictKind string

const (
	ConflictNumericMismatch     ConflictKind = "numeric_mismatch"
	ConflictDateMismatch        ConflictKind = "date_mismatch"
	ConflictCategoricalMismatch ConflictKind = "categorical_mismatch"
	ConflictBooleanMismatch     ConflictKind = "boolean_mismatch"
	ConflictMissingData         ConflictKind = "missing_data"
	ConflictUnitMismatch        ConflictKind = "unit_mismatch"
	ConflictRangeViolation      ConflictKind = "range_violation"
	ConflictSemantic            ConflictKind = "semantic_conflict"
)

var conflictKinds = []ConflictKind{
	ConflictNumericMismatch,
	ConflictDateMismatch,
	ConflictCategoricalMismatch,
	ConflictBooleanMismatch,
	ConflictMissingData,
	ConflictUnitMismatch,
	ConflictRangeViolation,
	ConflictSemantic,
}

// Valid reports whether k is a known conflict kind.
func (k ConflictKind) Valid() bool {
	for _, known := range conflictKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseConflictKind converts a name into a ConflictKind.
func ParseConflictKind(s string) (ConflictKind, error) {
	k := ConflictKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", eris.Errorf("unknown conflict kind %q", s)
	}
	return k, nil
}

// Conflict is a detected disagreement among at least two observations of
// the same field. Severity is in [0,1] and its meaning depends on Kind.
type Conflict struct {
	ID           string        `json:"conflict_id"`
	Kind         ConflictKind  `json:"type"`
	FieldName    string        `json:"field"`
	Observations []Observation `json:"values"`
	Severity     float64       `json:"severity"`
	Description  string        `json:"description"`
	DetectedAt   time.Time     `json:"detected_at"`
}

func (c Conflict) String() string {
	values := make([]string, len(c.Observations))
	for i, o := range c.Observations {
		values[i] = fmt.Sprintf("%v", o.Value)
	}
	return fmt.Sprintf("Conflict in %s: %s", c.FieldName, strings.Join(values, " vs "))
}
