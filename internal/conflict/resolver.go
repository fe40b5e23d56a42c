package conflict

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
)

const (
	mostRecentPenalty  = 0.9
	averageConfidence  = 0.7
	medianConfidence   = 0.75
	unresolvedMessage  = "Conflict requires manual review"
	fallbackActionName = "strategy_fallback"
)

// defaultStrategies maps each conflict kind to the strategy used when the
// caller does not request one. Kinds not listed go to manual review.
var defaultStrategies = map[model.ConflictKind]model.Strategy{
	model.ConflictNumericMismatch:     model.StrategyWeightedAverage,
	model.ConflictDateMismatch:        model.StrategyMostRecent,
	model.ConflictCategoricalMismatch: model.StrategyHighestConfidence,
	model.ConflictBooleanMismatch:     model.StrategyMajorityVote,
	model.ConflictSemantic:            model.StrategyHighestConfidence,
}

// ResolveConfig carries per-call resolution settings.
type ResolveConfig struct {
	// SourcePriorities ranks source types; lower ranks win.
	SourcePriorities map[string]int `yaml:"source_priorities" mapstructure:"source_priorities"`
}

// Resolver reduces a Conflict to a single value. Every call returns a
// Resolution; strategies that cannot apply degrade to another strategy or
// to manual review.
type Resolver struct {
	priorities map[string]int
	now        func() time.Time
}

// NewResolver creates a resolver with no default source priorities.
func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

// WithSourcePriorities sets the priorities used by source_priority when the
// per-call config does not carry any.
func (r *Resolver) WithSourcePriorities(priorities map[string]int) *Resolver {
	r.priorities = priorities
	return r
}

// WithNow sets a fixed time for testing.
func (r *Resolver) WithNow(t time.Time) *Resolver {
	r.now = func() time.Time { return t }
	return r
}

// DefaultStrategy returns the strategy applied to kind when none is requested.
func DefaultStrategy(kind model.ConflictKind) model.Strategy {
	if s, ok := defaultStrategies[kind]; ok {
		return s
	}
	return model.StrategyManualReview
}

// Resolve applies strategy to c. An empty strategy selects the kind default;
// a nil cfg uses the resolver's own source priorities.
func (r *Resolver) Resolve(c model.Conflict, strategy model.Strategy, cfg *ResolveConfig) model.Resolution {
	if strategy == "" {
		strategy = DefaultStrategy(c.Kind)
	}

	priorities := r.priorities
	if cfg != nil && len(cfg.SourcePriorities) > 0 {
		priorities = cfg.SourcePriorities
	}

	res := r.apply(c, strategy, priorities)
	res.ConflictID = c.ID
	res.FieldName = c.FieldName

	if res.RequiresReview {
		zap.L().Warn("conflict: manual review required",
			zap.String("field", c.FieldName),
			zap.String("kind", string(c.Kind)),
			zap.String("requested_strategy", string(strategy)),
		)
	}
	return res
}

func (r *Resolver) apply(c model.Conflict, strategy model.Strategy, priorities map[string]int) model.Resolution {
	if len(c.Observations) == 0 {
		return r.fallback(c, strategy, model.StrategyManualReview, "conflict has no observations", priorities)
	}

	switch strategy {
	case model.StrategyMostRecent:
		return r.mostRecent(c)
	case model.StrategyHighestConfidence:
		return r.highestConfidence(c)
	case model.StrategyMajorityVote:
		return r.majorityVote(c)
	case model.StrategyAverage:
		return r.average(c)
	case model.StrategyMedian:
		return r.median(c)
	case model.StrategyWeightedAverage:
		return r.weightedAverage(c)
	case model.StrategySourcePriority:
		return r.sourcePriority(c, priorities)
	case model.StrategyManualReview:
		return r.manualReview("No automatic resolution available")
	default:
		return r.fallback(c, strategy, model.StrategyManualReview, "unknown strategy", priorities)
	}
}

// fallback runs the target strategy and prepends an audit entry recording
// why the requested strategy was not used.
func (r *Resolver) fallback(c model.Conflict, from, to model.Strategy, reason string, priorities map[string]int) model.Resolution {
	var res model.Resolution
	if to == model.StrategyManualReview {
		res = r.manualReview(reason)
	} else {
		res = r.apply(c, to, priorities)
	}
	entry := r.entry(fallbackActionName, map[string]any{
		"requested": string(from),
		"applied":   string(to),
		"reason":    reason,
	})
	res.AuditTrail = append([]model.AuditEntry{entry}, res.AuditTrail...)
	return res
}

func (r *Resolver) mostRecent(c model.Conflict) model.Resolution {
	best := c.Observations[0]
	for _, o := range c.Observations[1:] {
		if o.ExtractionTime.After(best.ExtractionTime) {
			best = o
		}
	}
	return model.Resolution{
		Strategy:      model.StrategyMostRecent,
		ResolvedValue: best.Value,
		Confidence:    best.Confidence * mostRecentPenalty,
		Justification: fmt.Sprintf("Selected most recent value from %s (extracted %s)",
			best.SourceID, best.ExtractionTime.Format("2006-01-02")),
		AuditTrail: []model.AuditEntry{r.entry("selected_most_recent", map[string]any{
			"source":          best.SourceID,
			"extraction_time": best.ExtractionTime,
			"candidates":      len(c.Observations),
		})},
	}
}

func (r *Resolver) highestConfidence(c model.Conflict) model.Resolution {
	best := highestConfidence(c.Observations)
	return model.Resolution{
		Strategy:      model.StrategyHighestConfidence,
		ResolvedValue: best.Value,
		Confidence:    best.Confidence,
		Justification: fmt.Sprintf("Selected highest confidence value from %s (confidence: %.2f)",
			best.SourceID, best.Confidence),
		AuditTrail: []model.AuditEntry{r.entry("selected_highest_confidence", map[string]any{
			"source":     best.SourceID,
			"confidence": best.Confidence,
			"candidates": len(c.Observations),
		})},
	}
}

// highestConfidence returns the first observation with the maximum confidence.
func highestConfidence(observations []model.Observation) model.Observation {
	best := observations[0]
	for _, o := range observations[1:] {
		if o.Confidence > best.Confidence {
			best = o
		}
	}
	return best
}

type voteGroup struct {
	label   string
	members []model.Observation
}

func (r *Resolver) majorityVote(c model.Conflict) model.Resolution {
	var groups []*voteGroup
	byKey := make(map[string]*voteGroup)
	for _, o := range c.Observations {
		norm := voteKey(o.Value)
		key := identity(norm)
		g, ok := byKey[key]
		if !ok {
			g = &voteGroup{label: fmt.Sprintf("%v", norm)}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, o)
	}

	// Ties go to the group seen first.
	winner := groups[0]
	for _, g := range groups[1:] {
		if len(g.members) > len(winner.members) {
			winner = g
		}
	}

	var confSum float64
	for _, o := range winner.members {
		confSum += o.Confidence
	}
	total := len(c.Observations)
	ratio := float64(len(winner.members)) / float64(total)
	confidence := confSum / float64(len(winner.members)) * ratio

	distribution := make(map[string]int, len(groups))
	for _, g := range groups {
		distribution[g.label] += len(g.members)
	}

	return model.Resolution{
		Strategy:      model.StrategyMajorityVote,
		ResolvedValue: winner.members[0].Value,
		Confidence:    confidence,
		Justification: fmt.Sprintf("Majority vote: %d/%d sources agree on this value", len(winner.members), total),
		AuditTrail: []model.AuditEntry{r.entry("majority_vote", map[string]any{
			"vote_distribution": distribution,
			"winner":            winner.label,
			"source":            winner.members[0].SourceID,
		})},
	}
}

type weightedValue struct {
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Source string  `json:"source"`
}

// numericValues coerces every observation it can; the rest are skipped.
func numericValues(observations []model.Observation) []weightedValue {
	var out []weightedValue
	for _, o := range observations {
		if f, ok := parseLoose(o.Value); ok {
			out = append(out, weightedValue{Value: f, Weight: o.Confidence, Source: o.SourceID})
		}
	}
	return out
}

func (r *Resolver) average(c model.Conflict) model.Resolution {
	used := numericValues(c.Observations)
	if len(used) == 0 {
		return r.fallback(c, model.StrategyAverage, model.StrategyManualReview, "no numeric values", nil)
	}

	values := plainValues(used)
	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))

	return model.Resolution{
		Strategy:      model.StrategyAverage,
		ResolvedValue: avg,
		Confidence:    averageConfidence,
		Justification: fmt.Sprintf("Averaged %d numeric values", len(values)),
		AuditTrail: []model.AuditEntry{r.entry("calculated_average", map[string]any{
			"values": values,
			"result": avg,
		})},
	}
}

func (r *Resolver) median(c model.Conflict) model.Resolution {
	used := numericValues(c.Observations)
	if len(used) == 0 {
		return r.fallback(c, model.StrategyMedian, model.StrategyManualReview, "no numeric values", nil)
	}

	values := plainValues(used)
	sort.Float64s(values)
	mid := len(values) / 2
	med := values[mid]
	if len(values)%2 == 0 {
		med = (values[mid-1] + values[mid]) / 2
	}

	return model.Resolution{
		Strategy:      model.StrategyMedian,
		ResolvedValue: med,
		Confidence:    medianConfidence,
		Justification: fmt.Sprintf("Median of %d numeric values", len(values)),
		AuditTrail: []model.AuditEntry{r.entry("calculated_median", map[string]any{
			"values": values,
			"result": med,
		})},
	}
}

func (r *Resolver) weightedAverage(c model.Conflict) model.Resolution {
	used := numericValues(c.Observations)

	var weighted, weights float64
	for _, wv := range used {
		weighted += wv.Value * wv.Weight
		weights += wv.Weight
	}
	if weights == 0 || math.IsNaN(weights) {
		return r.fallback(c, model.StrategyWeightedAverage, model.StrategyManualReview, "total weight is zero", nil)
	}

	result := weighted / weights
	return model.Resolution{
		Strategy:      model.StrategyWeightedAverage,
		ResolvedValue: result,
		Confidence:    weights / float64(len(used)),
		Justification: fmt.Sprintf("Confidence-weighted average of %d values", len(used)),
		AuditTrail: []model.AuditEntry{r.entry("calculated_weighted_average", map[string]any{
			"values_and_weights": used,
			"result":             result,
		})},
	}
}

func (r *Resolver) sourcePriority(c model.Conflict, priorities map[string]int) model.Resolution {
	if len(priorities) == 0 {
		return r.fallback(c, model.StrategySourcePriority, model.StrategyHighestConfidence, "no source priorities configured", nil)
	}

	var best *model.Observation
	bestRank := math.MaxInt
	for i := range c.Observations {
		rank, ok := priorities[c.Observations[i].SourceType]
		if ok && rank < bestRank {
			bestRank = rank
			best = &c.Observations[i]
		}
	}
	if best == nil {
		return r.fallback(c, model.StrategySourcePriority, model.StrategyHighestConfidence, "no source type has a priority", nil)
	}

	return model.Resolution{
		Strategy:      model.StrategySourcePriority,
		ResolvedValue: best.Value,
		Confidence:    best.Confidence,
		Justification: fmt.Sprintf("Selected value from highest priority source: %s", best.SourceType),
		AuditTrail: []model.AuditEntry{r.entry("source_priority_selection", map[string]any{
			"source":      best.SourceID,
			"source_type": best.SourceType,
			"rank":        bestRank,
		})},
	}
}

func (r *Resolver) manualReview(reason string) model.Resolution {
	return model.Resolution{
		Strategy:       model.StrategyManualReview,
		ResolvedValue:  nil,
		Confidence:     0,
		Justification:  unresolvedMessage,
		RequiresReview: true,
		AuditTrail: []model.AuditEntry{r.entry("flagged_for_review", map[string]any{
			"reason": reason,
		})},
	}
}

func (r *Resolver) entry(action string, details map[string]any) model.AuditEntry {
	return model.AuditEntry{Action: action, Details: details, Timestamp: r.now()}
}

func plainValues(used []weightedValue) []float64 {
	out := make([]float64, len(used))
	for i, wv := range used {
		out[i] = wv.Value
	}
	return out
}
