package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/resilience"
	"github.com/sells-group/reconcile-cli/internal/source"
)

var errReviewRequired = eris.New("manual review required")

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile field values across source files",
	Long:  "Loads every --source, detects conflicting values per field, resolves each conflict with its default strategy, and prints the reconciliation report.",
	Example: `  reconcile-cli reconcile -s financials.xlsx -s deck.json --source-type pdf
  reconcile-cli reconcile -s extracted.json --format table --save`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		paths, opts, err := sourceOptions(cmd)
		if err != nil {
			return err
		}

		ro := reconcileOptions{paths: paths, load: opts}
		ro.format, _ = cmd.Flags().GetString("format")
		ro.output, _ = cmd.Flags().GetString("output")
		ro.save, _ = cmd.Flags().GetBool("save")
		ro.failOnReview, _ = cmd.Flags().GetBool("fail-on-review")

		return runReconcile(cmd.Context(), cmd.OutOrStdout(), ro)
	},
}

type reconcileOptions struct {
	paths        []string
	load         source.Options
	format       string
	output       string
	save         bool
	failOnReview bool
}

func runReconcile(ctx context.Context, stdout io.Writer, ro reconcileOptions) error {
	records, err := loadSources(ctx, ro.paths, ro.load)
	if err != nil {
		return eris.Wrap(err, "reconcile")
	}

	report := newEngine().Process(records)

	if ro.save {
		st, err := initStore(ctx)
		if err != nil {
			return eris.Wrap(err, "reconcile: open store")
		}
		defer st.Close() //nolint:errcheck

		run := &model.Run{Sources: ro.paths, Report: report}
		err = resilience.Do(ctx, storeRetry("save run"), func(ctx context.Context) error {
			return st.SaveRun(ctx, run)
		})
		if err != nil {
			return eris.Wrap(err, "reconcile: save run")
		}
		zap.L().Info("reconcile: run saved", zap.String("run_id", run.ID))
	}

	out := stdout
	if ro.output != "" {
		f, err := os.Create(ro.output)
		if err != nil {
			return eris.Wrap(err, "reconcile: create output")
		}
		defer f.Close() //nolint:errcheck
		out = f
	}
	if err := writeReport(out, report, ro.format); err != nil {
		return err
	}

	if ro.failOnReview && len(report.RequiresReview) > 0 {
		return fmt.Errorf("%d conflict(s): %w", len(report.RequiresReview), errReviewRequired)
	}
	return nil
}

func init() {
	addSourceFlags(reconcileCmd)
	reconcileCmd.Flags().StringP("format", "f", formatJSON, "output format (json, yaml, table)")
	reconcileCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	reconcileCmd.Flags().Bool("save", false, "persist the run to the configured store")
	reconcileCmd.Flags().Bool("fail-on-review", false, "exit non-zero when any conflict needs manual review")

	rootCmd.AddCommand(reconcileCmd)
}
