package source

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Header names recognised in tabular sources. Without a header the first
// column is the field name and the second its value.
const (
	colField          = "field"
	colValue          = "value"
	colSourceID       = "source_id"
	colSourceType     = "source_type"
	colConfidence     = "confidence"
	colExtractionTime = "extraction_time"
)

type columns map[string]int

func (c columns) cell(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// recordsFromRows turns field/value rows into source records. Rows naming a
// source_id are grouped per source in first-seen order; the rest belong to
// the file's own source. A field repeated within one source keeps the last
// value.
func recordsFromRows(rows [][]string, opts Options) ([]model.SourceRecord, error) {
	cols := columns{colField: 0, colValue: 1}
	start := 0
	if opts.HasHeader {
		if len(rows) == 0 {
			return nil, nil
		}
		cols = columns{}
		for i, name := range rows[0] {
			cols[strings.ToLower(strings.TrimSpace(name))] = i
		}
		_, hasField := cols[colField]
		_, hasValue := cols[colValue]
		if !hasField || !hasValue {
			return nil, eris.Errorf("tabular: header must name %q and %q columns", colField, colValue)
		}
		start = 1
	}

	var records []model.SourceRecord
	index := map[string]int{}

	for n := start; n < len(rows); n++ {
		row := rows[n]
		field := cols.cell(row, colField)
		if field == "" {
			continue
		}

		id := cols.cell(row, colSourceID)
		if id == "" {
			id = opts.SourceID
		}
		i, ok := index[id]
		if !ok {
			rec, err := newTabularRecord(id, row, cols)
			if err != nil {
				return nil, eris.Wrapf(err, "tabular: row %d", n+1)
			}
			records = append(records, rec)
			i = len(records) - 1
			index[id] = i
		}

		var value any
		if vi, ok := cols[colValue]; ok && vi < len(row) {
			value = row[vi]
		}
		records[i].Data[field] = value
	}
	return records, nil
}

func newTabularRecord(id string, row []string, cols columns) (model.SourceRecord, error) {
	rec := model.SourceRecord{
		SourceID:   id,
		SourceType: cols.cell(row, colSourceType),
		Data:       map[string]any{},
	}
	if s := cols.cell(row, colConfidence); s != "" {
		c, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return rec, eris.Wrapf(err, "invalid confidence %q", s)
		}
		rec.Confidence = &c
	}
	if s := cols.cell(row, colExtractionTime); s != "" {
		t, err := model.ParseTimestamp(s)
		if err != nil {
			return rec, eris.Wrapf(err, "invalid extraction_time %q", s)
		}
		rec.ExtractionTime = &t
	}
	return rec, nil
}
