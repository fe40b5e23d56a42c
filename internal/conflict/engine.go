package conflict

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// DefaultConfidence is assigned to observations whose source omits one.
const DefaultConfidence = 0.5

const unknownSource = "unknown"

// Engine drives detection and resolution across a batch of sources. The only
// state it carries between calls is its history sink; give each concurrent
// caller its own Engine unless the sink is shared deliberately.
type Engine struct {
	detector          *Detector
	resolver          *Resolver
	history           HistorySink
	defaultConfidence float64
	now               func() time.Time
}

// NewEngine creates an engine. Nil collaborators are replaced with defaults
// and history is kept in memory.
func NewEngine(detector *Detector, resolver *Resolver) *Engine {
	if detector == nil {
		detector = NewDetector()
	}
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Engine{
		detector:          detector,
		resolver:          resolver,
		history:           NewMemoryHistory(),
		defaultConfidence: DefaultConfidence,
		now:               time.Now,
	}
}

// WithHistory replaces the history sink.
func (e *Engine) WithHistory(sink HistorySink) *Engine {
	if sink != nil {
		e.history = sink
	}
	return e
}

// WithDefaultConfidence sets the confidence used for sources that omit one.
func (e *Engine) WithDefaultConfidence(c float64) *Engine {
	e.defaultConfidence = c
	return e
}

// WithNow sets a fixed time for testing. It is used as the extraction time
// for sources that omit one.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = func() time.Time { return t }
	return e
}

// History returns the resolutions recorded so far when the sink is the
// in-memory history, and nil otherwise.
func (e *Engine) History() []model.Resolution {
	if h, ok := e.history.(*MemoryHistory); ok {
		return h.Snapshot()
	}
	return nil
}

// GroupByField explodes every source's data into observations grouped by
// field. Fields appear in first-seen order; within a single source, field
// names are visited in sorted order.
func (e *Engine) GroupByField(sources []model.SourceRecord) []model.FieldGroup {
	now := e.now()
	index := make(map[string]int)
	var groups []model.FieldGroup

	for _, src := range sources {
		sourceID := src.SourceID
		if sourceID == "" {
			sourceID = unknownSource
		}
		sourceType := src.SourceType
		if sourceType == "" {
			sourceType = unknownSource
		}
		extracted := now
		if src.ExtractionTime != nil {
			extracted = *src.ExtractionTime
		}
		confidence := e.defaultConfidence
		if src.Confidence != nil {
			confidence = *src.Confidence
		}

		fields := make([]string, 0, len(src.Data))
		for f := range src.Data {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		for _, f := range fields {
			obs := model.Observation{
				Value:          src.Data[f],
				SourceID:       sourceID,
				SourceType:     sourceType,
				ExtractionTime: extracted,
				Confidence:     confidence,
				Metadata:       src.Metadata,
			}
			i, ok := index[f]
			if !ok {
				i = len(groups)
				index[f] = i
				groups = append(groups, model.FieldGroup{Field: f})
			}
			groups[i].Observations = append(groups[i].Observations, obs)
		}
	}
	return groups
}

// Process reconciles a batch of sources with each conflict's default
// strategy and returns the full report.
//
// A field whose conflict needs manual review is still backfilled in
// ResolvedData from its highest-confidence observation; consumers must check
// RequiresReview to see that it was not reconciled automatically.
func (e *Engine) Process(sources []model.SourceRecord) *model.Report {
	groups := e.GroupByField(sources)
	conflicts := e.detector.Detect(groups)

	report := &model.Report{
		ResolvedData:   make(map[string]model.ReconciledField, len(groups)),
		Conflicts:      conflicts,
		Resolutions:    make([]model.Resolution, 0, len(conflicts)),
		RequiresReview: []model.Resolution{},
	}
	if report.Conflicts == nil {
		report.Conflicts = []model.Conflict{}
	}

	for _, c := range conflicts {
		res := e.resolver.Resolve(c, "", nil)
		report.Resolutions = append(report.Resolutions, res)
		if res.RequiresReview {
			report.RequiresReview = append(report.RequiresReview, res)
			continue
		}
		report.ResolvedData[c.FieldName] = model.ReconciledField{
			Value:              res.ResolvedValue,
			Confidence:         res.Confidence,
			ResolutionStrategy: res.Strategy,
		}
	}

	for _, g := range groups {
		if _, ok := report.ResolvedData[g.Field]; ok || len(g.Observations) == 0 {
			continue
		}
		best := highestConfidence(g.Observations)
		report.ResolvedData[g.Field] = model.ReconciledField{
			Value:              best.Value,
			Confidence:         best.Confidence,
			ResolutionStrategy: model.StrategyNoConflict,
		}
	}

	e.history.Append(report.Resolutions...)

	report.Summary = model.ReportSummary{
		TotalFields:          len(groups),
		ConflictsDetected:    len(conflicts),
		ConflictsResolved:    len(report.Resolutions) - len(report.RequiresReview),
		ManualReviewRequired: len(report.RequiresReview),
	}

	zap.L().Info("reconcile: batch processed",
		zap.Int("sources", len(sources)),
		zap.Int("fields", report.Summary.TotalFields),
		zap.Int("conflicts", report.Summary.ConflictsDetected),
		zap.Int("resolved", report.Summary.ConflictsResolved),
		zap.Int("manual_review", report.Summary.ManualReviewRequired),
	)
	return report
}

// ResolveField detects and resolves a single field with an explicit
// strategy, bypassing the kind default. It reports false when the field is
// unknown or its observations agree. The resolution is recorded in history.
func (e *Engine) ResolveField(groups []model.FieldGroup, field string, strategy model.Strategy, cfg *ResolveConfig) (model.Conflict, model.Resolution, bool) {
	for _, g := range groups {
		if g.Field != field {
			continue
		}
		conflicts := e.detector.Detect([]model.FieldGroup{g})
		if len(conflicts) == 0 {
			return model.Conflict{}, model.Resolution{}, false
		}
		res := e.resolver.Resolve(conflicts[0], strategy, cfg)
		e.history.Append(res)
		return conflicts[0], res, true
	}
	return model.Conflict{}, model.Resolution{}, false
}
