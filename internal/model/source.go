package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SourceRecord is one extracted document: a flat field -> value map plus
// provenance. Nil ExtractionTime and Confidence are defaulted by the engine.
type SourceRecord struct {
	SourceID       string         `json:"source_id"`
	SourceType     string         `json:"source_type"`
	ExtractionTime *time.Time     `json:"extraction_time,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Data           map[string]any `json:"data"`
}

// isoLayouts are the timestamp layouts accepted for extraction_time.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without a zone are
// interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("model: invalid ISO-8601 timestamp %q", s)
}

// ParseSourceRecords converts decoded JSON/YAML values into SourceRecords.
// It fails fast on the first structurally invalid record.
func ParseSourceRecords(raw []any) ([]SourceRecord, error) {
	records := make([]SourceRecord, 0, len(raw))
	for i, r := range raw {
		rec, err := ParseSourceRecord(r)
		if err != nil {
			return nil, eris.Wrapf(err, "model: source record %d", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseSourceRecord validates the shape of a single decoded source record.
// A record that is not a mapping, a data section that is not a mapping, an
// unparseable extraction_time, or a non-numeric confidence is an error.
func ParseSourceRecord(raw any) (SourceRecord, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return SourceRecord{}, eris.Errorf("model: source record must be a mapping, got %T", raw)
	}

	rec := SourceRecord{
		SourceID:   stringField(m, "source_id"),
		SourceType: stringField(m, "source_type"),
	}

	// extraction_date is the older name for the same field.
	ts, ok := m["extraction_time"]
	if !ok || ts == nil {
		ts = m["extraction_date"]
	}
	switch v := ts.(type) {
	case nil:
	case time.Time:
		rec.ExtractionTime = &v
	case string:
		t, err := ParseTimestamp(v)
		if err != nil {
			return SourceRecord{}, err
		}
		rec.ExtractionTime = &t
	default:
		return SourceRecord{}, eris.Errorf("model: extraction_time must be an ISO-8601 string, got %T", ts)
	}

	if c, ok := m["confidence"]; ok && c != nil {
		f, ok := toFloat(c)
		if !ok {
			return SourceRecord{}, eris.Errorf("model: confidence must be a number, got %T", c)
		}
		rec.Confidence = &f
	}

	if md, ok := m["metadata"]; ok && md != nil {
		mm, ok := md.(map[string]any)
		if !ok {
			return SourceRecord{}, eris.Errorf("model: metadata must be a mapping, got %T", md)
		}
		rec.Metadata = mm
	}

	switch d := m["data"].(type) {
	case nil:
		rec.Data = map[string]any{}
	case map[string]any:
		rec.Data = d
	default:
		return SourceRecord{}, eris.Errorf("model: data must be a mapping, got %T", d)
	}

	return rec, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
