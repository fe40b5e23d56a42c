package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reconcile-cli/internal/conflict"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/source"
)

// addSourceFlags registers the flags shared by commands that load sources.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("source", "s", nil, "source file (.json, .csv, .tsv, .xlsx); repeatable")
	cmd.Flags().String("source-id", "", "source id for records that carry none (tabular files default to the file name)")
	cmd.Flags().String("source-type", "", "source type for records that carry none (e.g. excel, word, pdf)")
	cmd.Flags().Float64("confidence", 0, "confidence for records that carry none")
	cmd.Flags().String("extraction-time", "", "ISO-8601 extraction time for records that carry none")
	cmd.Flags().Bool("header", false, "tabular files start with a header row naming their columns")
	cmd.Flags().String("sheet", "", "xlsx sheet name (default first sheet)")
	cmd.Flags().String("comment", "", "csv/tsv comment character; lines starting with it are skipped (default none)")
	_ = cmd.MarkFlagRequired("source")
}

// sourceOptions reads the shared source flags.
func sourceOptions(cmd *cobra.Command) ([]string, source.Options, error) {
	paths, _ := cmd.Flags().GetStringArray("source")
	opts := source.Options{}
	opts.SourceID, _ = cmd.Flags().GetString("source-id")
	opts.SourceType, _ = cmd.Flags().GetString("source-type")
	opts.HasHeader, _ = cmd.Flags().GetBool("header")
	opts.Sheet, _ = cmd.Flags().GetString("sheet")

	if c, _ := cmd.Flags().GetString("comment"); c != "" {
		r := []rune(c)
		if len(r) != 1 {
			return nil, opts, eris.Errorf("--comment must be a single character, got %q", c)
		}
		opts.Comment = r[0]
	}
	if cmd.Flags().Changed("confidence") {
		c, _ := cmd.Flags().GetFloat64("confidence")
		opts.Confidence = &c
	}
	if s, _ := cmd.Flags().GetString("extraction-time"); s != "" {
		t, err := model.ParseTimestamp(s)
		if err != nil {
			return nil, opts, eris.Wrap(err, "--extraction-time")
		}
		opts.ExtractionTime = &t
	}
	if len(paths) == 0 {
		return nil, opts, eris.New("at least one --source is required")
	}
	return paths, opts, nil
}

// loadSources reads every source file using the configured concurrency.
func loadSources(ctx context.Context, paths []string, opts source.Options) ([]model.SourceRecord, error) {
	return source.LoadFiles(ctx, paths, opts, cfg.Source.MaxConcurrentLoads)
}

// newEngine builds a reconciliation engine from configuration.
func newEngine() *conflict.Engine {
	detector := conflict.NewDetector().WithTolerance(cfg.Detect.NumericTolerance)
	resolver := conflict.NewResolver().WithSourcePriorities(cfg.Resolve.SourcePriorities)
	return conflict.NewEngine(detector, resolver).WithDefaultConfidence(cfg.Source.DefaultConfidence)
}
