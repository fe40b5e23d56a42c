package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reconcile-cli/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved reconciliation runs",
	Long:  "Commands for listing runs, viewing a run's report, the manual review queue, and the latest reconciled value of each field.",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		field, _ := cmd.Flags().GetString("field")
		review, _ := cmd.Flags().GetBool("review")
		limit, _ := cmd.Flags().GetInt("limit")

		return runHistoryList(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(),
			store.RunFilter{Field: field, ReviewOnly: review, Limit: limit})
	},
}

func runHistoryList(ctx context.Context, stdout, stderr io.Writer, filter store.RunFilter) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, filter)
	if err != nil {
		return eris.Wrap(err, "history list")
	}

	if len(runs) == 0 {
		fmt.Fprintln(stderr, "No runs found.")
		return nil
	}

	formatRunsList(stdout, runs)
	return nil
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full report of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return runHistoryShow(cmd.Context(), cmd.OutOrStdout(), args[0], format)
	},
}

func runHistoryShow(ctx context.Context, stdout io.Writer, runID, format string) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return eris.Wrap(err, "history show")
	}

	if run.Report == nil || format == formatJSON {
		return writeJSON(stdout, run)
	}
	return writeReport(stdout, run.Report, format)
}

// -- history review --

var historyReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List resolutions flagged for manual review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		runID, _ := cmd.Flags().GetString("run")
		field, _ := cmd.Flags().GetString("field")
		all, _ := cmd.Flags().GetBool("all")
		limit, _ := cmd.Flags().GetInt("limit")

		return runHistoryReview(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), store.ResolutionFilter{
			RunID:      runID,
			Field:      field,
			ReviewOnly: !all,
			Limit:      limit,
		})
	},
}

func runHistoryReview(ctx context.Context, stdout, stderr io.Writer, filter store.ResolutionFilter) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	recs, err := st.ListResolutions(ctx, filter)
	if err != nil {
		return eris.Wrap(err, "history review")
	}

	if len(recs) == 0 {
		fmt.Fprintln(stderr, "No resolutions found.")
		return nil
	}

	formatResolutions(stdout, recs)
	return nil
}

// -- history fields --

var historyFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Show the latest reconciled value of every field",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runHistoryFields(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func runHistoryFields(ctx context.Context, stdout, stderr io.Writer) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	fields, err := st.ListFields(ctx)
	if err != nil {
		return eris.Wrap(err, "history fields")
	}

	if len(fields) == 0 {
		fmt.Fprintln(stderr, "No reconciled fields found.")
		return nil
	}

	formatFields(stdout, fields)
	return nil
}

func init() {
	historyListCmd.Flags().String("field", "", "only runs that resolved this field")
	historyListCmd.Flags().Bool("review", false, "only runs with conflicts awaiting manual review")
	historyListCmd.Flags().Int("limit", 50, "max number of runs to display")

	historyShowCmd.Flags().StringP("format", "f", formatJSON, "output format (json, yaml, table)")

	historyReviewCmd.Flags().String("run", "", "only resolutions from this run")
	historyReviewCmd.Flags().String("field", "", "only resolutions of this field")
	historyReviewCmd.Flags().Bool("all", false, "include resolutions that did not need review")
	historyReviewCmd.Flags().Int("limit", 50, "max number of resolutions to display")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyReviewCmd)
	historyCmd.AddCommand(historyFieldsCmd)
	rootCmd.AddCommand(historyCmd)
}
