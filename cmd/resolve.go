package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/conflict"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/source"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one field with an explicit strategy",
	Long:  "Detects conflicts on a single --field and resolves it with --strategy, the policy file's strategy for that field, or the conflict kind's default.",
	Example: `  reconcile-cli resolve -s a.json -s b.csv --field Revenue --strategy median
  reconcile-cli resolve -s a.json --field Status --policy policy.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		paths, opts, err := sourceOptions(cmd)
		if err != nil {
			return err
		}

		ro := resolveOptions{paths: paths, load: opts}
		ro.field, _ = cmd.Flags().GetString("field")
		ro.format, _ = cmd.Flags().GetString("format")
		ro.policyPath, _ = cmd.Flags().GetString("policy")
		if ro.policyPath == "" {
			ro.policyPath = cfg.Resolve.PolicyPath
		}
		if s, _ := cmd.Flags().GetString("strategy"); s != "" {
			if ro.strategy, err = model.ParseStrategy(s); err != nil {
				return err
			}
		}

		return runResolve(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), ro)
	},
}

type resolveOptions struct {
	paths      []string
	load       source.Options
	field      string
	strategy   model.Strategy
	policyPath string
	format     string
}

// fieldResolution is the output of the resolve command.
type fieldResolution struct {
	Conflict   model.Conflict   `json:"conflict"`
	Resolution model.Resolution `json:"resolution"`
}

func runResolve(ctx context.Context, stdout, stderr io.Writer, ro resolveOptions) error {
	var policy *config.Policy
	if ro.policyPath != "" {
		p, err := config.LoadPolicy(ro.policyPath)
		if err != nil {
			return err
		}
		policy = p
	}

	fp := policy.ForField(ro.field)
	strategy := ro.strategy
	if strategy == "" {
		strategy = fp.Strategy
	}
	priorities := fp.SourcePriorities
	if len(priorities) == 0 {
		priorities = cfg.Resolve.SourcePriorities
	}

	records, err := loadSources(ctx, ro.paths, ro.load)
	if err != nil {
		return eris.Wrap(err, "resolve")
	}

	eng := newEngine()
	c, res, ok := eng.ResolveField(eng.GroupByField(records), ro.field, strategy, &conflict.ResolveConfig{SourcePriorities: priorities})
	if !ok {
		_, _ = fmt.Fprintf(stderr, "No conflict found for field %q.\n", ro.field)
		return nil
	}

	return writeFieldResolution(stdout, fieldResolution{Conflict: c, Resolution: res}, ro.format)
}

func init() {
	addSourceFlags(resolveCmd)
	resolveCmd.Flags().String("field", "", "field to resolve")
	resolveCmd.Flags().String("strategy", "", "resolution strategy (default: policy, then the conflict kind's default)")
	resolveCmd.Flags().String("policy", "", "YAML resolution policy (default resolve.policy_path)")
	resolveCmd.Flags().StringP("format", "f", formatJSON, "output format (json, yaml, table)")
	_ = resolveCmd.MarkFlagRequired("field")

	rootCmd.AddCommand(resolveCmd)
}
