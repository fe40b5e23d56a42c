package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// Output formats.
const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

// writeReport renders a reconciliation report in the requested format.
func writeReport(out io.Writer, report *model.Report, format string) error {
	switch format {
	case formatJSON, "":
		return writeJSON(out, report)
	case formatYAML:
		return writeYAML(out, report)
	case formatTable:
		formatReportTable(out, report)
		return nil
	default:
		return eris.Errorf("unsupported format: %s", format)
	}
}

// writeFieldResolution renders the result of resolving one field.
func writeFieldResolution(out io.Writer, fr fieldResolution, format string) error {
	switch format {
	case formatJSON, "":
		return writeJSON(out, fr)
	case formatYAML:
		return writeYAML(out, fr)
	case formatTable:
		formatResolutionTable(out, fr)
		return nil
	default:
		return eris.Errorf("unsupported format: %s", format)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

// writeYAML goes through JSON so YAML keys match the JSON field names.
func writeYAML(out io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "encode yaml")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return eris.Wrap(err, "encode yaml")
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(yamlNumbers(generic)); err != nil {
		return eris.Wrap(err, "encode yaml")
	}
	return eris.Wrap(enc.Close(), "encode yaml")
}

// yamlNumbers replaces json.Number values with plain scalar nodes carrying
// the exact JSON text; yaml.v3 would otherwise quote them as strings.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = yamlNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = yamlNumbers(e)
		}
		return t
	case json.Number:
		tag := "!!float"
		if _, err := t.Int64(); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}
	default:
		return v
	}
}

// formatReportTable writes a human-readable report: summary, reconciled
// fields, conflicts, then the review queue.
func formatReportTable(out io.Writer, report *model.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	s := report.Summary
	_, _ = fmt.Fprintf(w, "Fields:\t%d\n", s.TotalFields)
	_, _ = fmt.Fprintf(w, "Conflicts detected:\t%d\n", s.ConflictsDetected)
	_, _ = fmt.Fprintf(w, "Conflicts resolved:\t%d\n", s.ConflictsResolved)
	_, _ = fmt.Fprintf(w, "Manual review:\t%d\n", s.ManualReviewRequired)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "FIELD\tVALUE\tCONFIDENCE\tSTRATEGY")
	_, _ = fmt.Fprintln(w, "-----\t-----\t----------\t--------")
	names := make([]string, 0, len(report.ResolvedData))
	for name := range report.ResolvedData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := report.ResolvedData[name]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", name, displayValue(f.Value), f.Confidence, f.ResolutionStrategy)
	}

	if len(report.Conflicts) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "FIELD\tTYPE\tSEVERITY\tDESCRIPTION")
		_, _ = fmt.Fprintln(w, "-----\t----\t--------\t-----------")
		for _, c := range report.Conflicts {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", c.FieldName, c.Kind, c.Severity, truncate(c.Description, 60))
		}
	}

	if len(report.RequiresReview) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "NEEDS REVIEW\tREASON")
		_, _ = fmt.Fprintln(w, "------------\t------")
		for _, r := range report.RequiresReview {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", r.FieldName, reviewReason(r))
		}
	}
	_ = w.Flush()
}

// formatResolutionTable writes a single field resolution and its audit trail.
func formatResolutionTable(out io.Writer, fr fieldResolution) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	c, r := fr.Conflict, fr.Resolution
	_, _ = fmt.Fprintf(w, "Field:\t%s\n", c.FieldName)
	_, _ = fmt.Fprintf(w, "Conflict:\t%s (severity %.2f)\n", c.Kind, c.Severity)
	_, _ = fmt.Fprintf(w, "Strategy:\t%s\n", r.Strategy)
	_, _ = fmt.Fprintf(w, "Value:\t%s\n", displayValue(r.ResolvedValue))
	_, _ = fmt.Fprintf(w, "Confidence:\t%.2f\n", r.Confidence)
	_, _ = fmt.Fprintf(w, "Justification:\t%s\n", r.Justification)
	if r.RequiresReview {
		_, _ = fmt.Fprintf(w, "Review:\t%s\n", reviewReason(r))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "SOURCE\tTYPE\tVALUE\tCONFIDENCE\tEXTRACTED")
	_, _ = fmt.Fprintln(w, "------\t----\t-----\t----------\t---------")
	for _, o := range c.Observations {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n",
			o.SourceID, o.SourceType, displayValue(o.Value), o.Confidence, o.ExtractionTime.Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "AUDIT\tAT")
	_, _ = fmt.Fprintln(w, "-----\t--")
	for _, e := range r.AuditTrail {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Action, e.Timestamp.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tFIELDS\tCONFLICTS\tRESOLVED\tREVIEW\tSOURCES")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t---------\t--------\t------\t-------")

	for _, r := range runs {
		sources := strings.Join(r.Sources, ",")
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Summary.TotalFields,
			r.Summary.ConflictsDetected,
			r.Summary.ConflictsResolved,
			r.Summary.ManualReviewRequired,
			truncate(sources, 40),
		)
	}
	_ = w.Flush()
}

// formatResolutions writes stored resolution rows to w.
func formatResolutions(out io.Writer, recs []store.ResolutionRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tFIELD\tSTRATEGY\tVALUE\tCONFIDENCE\tREVIEW")
	_, _ = fmt.Fprintln(w, "---\t-----\t--------\t-----\t----------\t------")
	for _, r := range recs {
		review := ""
		if r.RequiresReview {
			review = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			truncateID(r.RunID), r.Field, r.Strategy, displayValue(r.ResolvedValue), r.Confidence, review)
	}
	_ = w.Flush()
}

// formatFields writes the latest reconciled field values to w.
func formatFields(out io.Writer, fields []store.FieldRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE\tCONFIDENCE\tSTRATEGY\tRUN\tUPDATED")
	_, _ = fmt.Fprintln(w, "-----\t-----\t----------\t--------\t---\t-------")
	for _, f := range fields {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			f.Field, displayValue(f.Value), f.Confidence, f.Strategy, truncateID(f.RunID), f.UpdatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

// reviewReason pulls the reason from the flagged_for_review audit entry.
func reviewReason(r model.Resolution) string {
	for _, e := range r.AuditTrail {
		if reason, ok := e.Details["reason"].(string); ok && reason != "" {
			return reason
		}
	}
	return r.Justification
}

func displayValue(v any) string {
	if v == nil {
		return "-"
	}
	if f, ok := v.(float64); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return fmt.Sprintf("%.0f", f)
		}
		return fmt.Sprintf("%.2f", f)
	}
	return truncate(fmt.Sprint(v), 40)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
