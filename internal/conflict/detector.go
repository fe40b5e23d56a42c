// Package conflict detects disagreements between source observations of the
// same field, resolves them with configurable strategies, and assembles the
// reconciled report for a batch of sources.
package conflict

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// DefaultNumericTolerance is the relative spread below which numeric values
// are considered to agree.
const DefaultNumericTolerance = 0.01

// fullSeveritySpread is the relative spread at which numeric severity saturates.
const fullSeveritySpread = 0.5

const (
	dateSeverity        = 0.7
	booleanSeverity     = 1.0
	semanticSeverity    = 0.3
	categoricalSeverity = 0.8
)

// valueClass is the type bucket a field is compared in. It is decided once
// per field from the first non-empty value.
type valueClass int

const (
	classCategorical valueClass = iota
	classNumeric
	classDate
	classBoolean
)

func classify(v any) valueClass {
	switch x := v.(type) {
	case bool:
		return classBoolean
	case string:
		if isDateString(x) {
			return classDate
		}
		if numericString.MatchString(x) {
			return classNumeric
		}
		return classCategorical
	default:
		if _, ok := numberValue(v); ok {
			return classNumeric
		}
		return classCategorical
	}
}

// Detector decides whether a field's observations disagree. It holds no
// mutable state after construction and is safe for concurrent use.
type Detector struct {
	tolerance float64
	now       func() time.Time
}

// NewDetector creates a detector with the default numeric tolerance.
func NewDetector() *Detector {
	return &Detector{
		tolerance: DefaultNumericTolerance,
		now:       time.Now,
	}
}

// WithTolerance sets the relative numeric tolerance. Negative values are ignored.
func (d *Detector) WithTolerance(tolerance float64) *Detector {
	if tolerance >= 0 {
		d.tolerance = tolerance
	}
	return d
}

// WithNow sets a fixed time for testing.
func (d *Detector) WithNow(t time.Time) *Detector {
	d.now = func() time.Time { return t }
	return d
}

// Tolerance returns the configured numeric tolerance.
func (d *Detector) Tolerance() float64 {
	return d.tolerance
}

// Detect returns one Conflict per field whose observations disagree, in the
// order the fields were given. Fields with fewer than two observations, or
// with no non-empty values, never conflict.
func (d *Detector) Detect(groups []model.FieldGroup) []model.Conflict {
	var conflicts []model.Conflict
	for _, g := range groups {
		if len(g.Observations) < 2 {
			continue
		}
		c, ok := d.detectField(g.Field, g.Observations)
		if !ok {
			continue
		}
		zap.L().Debug("conflict: detected",
			zap.String("field", c.FieldName),
			zap.String("kind", string(c.Kind)),
			zap.Float64("severity", c.Severity),
			zap.Int("observations", len(c.Observations)),
		)
		conflicts = append(conflicts, c)
	}
	return conflicts
}

func (d *Detector) detectField(field string, observations []model.Observation) (model.Conflict, bool) {
	present := make([]model.Observation, 0, len(observations))
	for _, o := range observations {
		if !o.IsEmpty() {
			present = append(present, o)
		}
	}
	if len(present) < 2 {
		return model.Conflict{}, false
	}

	switch classify(present[0].Value) {
	case classNumeric:
		return d.detectNumeric(field, present)
	case classDate:
		return d.detectDistinct(field, present, model.ConflictDateMismatch, dateSeverity)
	case classBoolean:
		return d.detectDistinct(field, present, model.ConflictBooleanMismatch, booleanSeverity)
	default:
		return d.detectCategorical(field, present)
	}
}

func (d *Detector) detectNumeric(field string, observations []model.Observation) (model.Conflict, bool) {
	values := make([]float64, 0, len(observations))
	valid := make([]model.Observation, 0, len(observations))
	for _, o := range observations {
		if f, ok := parseScaled(o.Value); ok {
			values = append(values, f)
			valid = append(valid, o)
		}
	}
	if len(values) < 2 {
		return model.Conflict{}, false
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var maxDiff float64
	for _, v := range values {
		maxDiff = math.Max(maxDiff, math.Abs(v-mean))
	}

	var relative float64
	switch {
	case maxDiff == 0:
		relative = 0
	case mean == 0:
		relative = math.Inf(1)
	default:
		relative = maxDiff / math.Abs(mean)
	}
	if relative <= d.tolerance {
		return model.Conflict{}, false
	}

	desc := fmt.Sprintf("Numeric values differ by %.1f%%", relative*100)
	if math.IsInf(relative, 1) {
		desc = "Numeric values disagree around a zero mean"
	}

	return d.newConflict(field, model.ConflictNumericMismatch, valid,
		math.Min(relative/fullSeveritySpread, 1.0), desc), true
}

func (d *Detector) detectDistinct(field string, observations []model.Observation, kind model.ConflictKind, severity float64) (model.Conflict, bool) {
	distinct := distinctValues(observations)
	if len(distinct) < 2 {
		return model.Conflict{}, false
	}

	var desc string
	switch kind {
	case model.ConflictDateMismatch:
		desc = "Different dates found: " + joinValues(distinct)
	case model.ConflictBooleanMismatch:
		desc = "Conflicting boolean values"
	default:
		desc = "Different values: " + joinValues(distinct)
	}
	return d.newConflict(field, kind, observations, severity, desc), true
}

func (d *Detector) detectCategorical(field string, observations []model.Observation) (model.Conflict, bool) {
	distinct := distinctValues(observations)
	if len(distinct) < 2 {
		return model.Conflict{}, false
	}

	kind, severity := model.ConflictCategoricalMismatch, categoricalSeverity
	if similarValues(distinct) {
		kind, severity = model.ConflictSemantic, semanticSeverity
	}
	return d.newConflict(field, kind, observations, severity, "Different values: "+joinValues(distinct)), true
}

func (d *Detector) newConflict(field string, kind model.ConflictKind, observations []model.Observation, severity float64, desc string) model.Conflict {
	now := d.now()
	return model.Conflict{
		ID:           conflictID(field, now),
		Kind:         kind,
		FieldName:    field,
		Observations: observations,
		Severity:     severity,
		Description:  desc,
		DetectedAt:   now,
	}
}

// conflictID derives an identifier from the field name and detection time.
// It is unique enough for one process; collisions are tolerated.
func conflictID(field string, t time.Time) string {
	return fmt.Sprintf("conflict_%s_%s%06d", field, t.Format("20060102150405"), t.Nanosecond()/1000)
}

// distinctValues returns the unique values in first-seen order.
func distinctValues(observations []model.Observation) []any {
	seen := make(map[string]bool, len(observations))
	var out []any
	for _, o := range observations {
		key := identity(o.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o.Value)
	}
	return out
}

// similarValues reports whether values differ only in spelling: all yes-like,
// all no-like, or identical after lowercasing and trimming.
func similarValues(values []any) bool {
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = normalizeText(fmt.Sprintf("%v", v))
	}

	allYes, allNo := true, true
	for _, n := range normalized {
		allYes = allYes && yesVariants[n]
		allNo = allNo && noVariants[n]
	}
	if allYes || allNo {
		return true
	}

	for _, n := range normalized[1:] {
		if n != normalized[0] {
			return false
		}
	}
	return true
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}
