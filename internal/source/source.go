// Package source loads extracted field values from JSON, CSV and XLSX files
// into model.SourceRecord values for the reconciliation engine.
package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// Source types assigned to tabular files when the caller gives none.
const (
	TypeCSV   = "csv"
	TypeExcel = "excel"
)

// Options carries per-file provenance and parsing settings. Provenance
// fields only fill gaps: values present in the file always win.
type Options struct {
	SourceID       string
	SourceType     string
	Confidence     *float64
	ExtractionTime *time.Time

	HasHeader bool   // tabular files: first row names the columns
	Sheet     string // xlsx: sheet name, default first sheet
	Comment   rune   // csv/tsv: lines starting with this rune are skipped; 0 = none
}

// Load reads one source file, choosing the parser from its extension.
func Load(ctx context.Context, path string, opts Options) ([]model.SourceRecord, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		records []model.SourceRecord
		err     error
	)
	switch ext {
	case ".json":
		records, err = loadJSONFile(ctx, path)
	case ".csv", ".tsv":
		opts = withFileDefaults(path, TypeCSV, opts)
		delim := ','
		if ext == ".tsv" {
			delim = '\t'
		}
		records, err = loadCSVFile(ctx, path, delim, opts)
	case ".xlsx":
		opts = withFileDefaults(path, TypeExcel, opts)
		records, err = LoadXLSX(ctx, path, opts)
	default:
		return nil, eris.Errorf("source: unsupported file type %q for %s", ext, path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "source: load %s", path)
	}

	for i := range records {
		applyDefaults(&records[i], opts)
	}
	return records, nil
}

func loadJSONFile(ctx context.Context, path string) ([]model.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck
	return LoadJSON(ctx, f)
}

func loadCSVFile(ctx context.Context, path string, delim rune, opts Options) ([]model.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close() //nolint:errcheck
	return LoadCSV(ctx, f, delim, opts)
}

// withFileDefaults names tabular sources after their file.
func withFileDefaults(path, sourceType string, opts Options) Options {
	if opts.SourceID == "" {
		opts.SourceID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if opts.SourceType == "" {
		opts.SourceType = sourceType
	}
	return opts
}

func applyDefaults(rec *model.SourceRecord, opts Options) {
	if rec.SourceID == "" {
		rec.SourceID = opts.SourceID
	}
	if rec.SourceType == "" {
		rec.SourceType = opts.SourceType
	}
	if rec.Confidence == nil && opts.Confidence != nil {
		c := *opts.Confidence
		rec.Confidence = &c
	}
	if rec.ExtractionTime == nil && opts.ExtractionTime != nil {
		t := *opts.ExtractionTime
		rec.ExtractionTime = &t
	}
	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
}
