package model

import (
	"fmt"
	"time"
)

// Observation is one value for one field as reported by one source.
// The engine never mutates an Observation after construction.
type Observation struct {
	Value          any            `json:"value"`
	SourceID       string         `json:"source_id"`
	SourceType     string         `json:"source_type"`
	ExtractionTime time.Time      `json:"extraction_time"`
	Confidence     float64        `json:"confidence"`
	Context        string         `json:"context,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func (o Observation) String() string {
	return fmt.Sprintf("%v (from %s, confidence: %.2f)", o.Value, o.SourceID, o.Confidence)
}

// IsEmpty reports whether the observation carries no usable value (nil or "").
func (o Observation) IsEmpty() bool {
	if o.Value == nil {
		return true
	}
	s, ok := o.Value.(string)
	return ok && s == ""
}

// FieldGroup holds every observation for a single field, in source order.
type FieldGroup struct {
	Field        string        `json:"field"`
	Observations []Observation `json:"observations"`
}
