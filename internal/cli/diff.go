// Package cli: diff.go implements the "allotment diff" command.
//
// The diff command allocates the same imported preferences under two
// capacity configurations, or compares a fresh allocation against a run
// saved in the history database, and prints a unified diff of the
// outcomes. Both allocations reuse one import: the second execution resets
// the run to the pristine preferences before applying its capacities.
package cli

import (
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/allotment/internal/engine"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/report"
)

// diffFlags holds the flag values for the diff command.
type diffFlags struct {
	preferences string // --preferences: preference file
	capacities  string // --capacities: baseline capacity config
	against     string // --against: second capacity config
	run         string // --run: saved run id (or prefix) to compare with
}

// NewDiffCommand creates the "diff" cobra command.
func NewDiffCommand() *cobra.Command {
	flags := &diffFlags{}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare allocations under different capacities",
		Long: `Allocate one preference file twice and print a unified diff of the outcomes.

Compare two capacity configurations with --against, or compare against a
previously saved run with --run. The comparison covers the tally, option
usage and every participant's allocation; run ids and timestamps are
ignored.

Examples:
  allotment diff -p prefs.csv -c term1.yaml --against term2.yaml
  allotment diff -p prefs.csv -c term1.yaml --run 3f2a`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.preferences, "preferences", "p", "", "Preference file (.csv, .yaml, .json)")
	cmd.Flags().StringVarP(&flags.capacities, "capacities", "c", "", "Baseline capacity config")
	cmd.Flags().StringVar(&flags.against, "against", "", "Capacity config to compare with")
	cmd.Flags().StringVar(&flags.run, "run", "", "Saved run id (or unique prefix) to compare with")
	cmd.MarkFlagsMutuallyExclusive("against", "run")
	cmd.MarkFlagsOneRequired("against", "run")

	return cmd
}

// runDiff is the main logic function for the diff command.
func runDiff(ctx context.Context, out io.Writer, flags *diffFlags) error {
	ctx = orBackground(ctx)

	// Step 1: Load the baseline config and import once.
	base, err := loadCapacityConfig(flags.capacities)
	if err != nil {
		return err
	}
	r, err := importRoster(flags.preferences, base.Aliases)
	if err != nil {
		return err
	}
	run := engine.NewRun(r.Table, r.Store)

	// Step 2: Allocate under the baseline capacities.
	baseCaps, err := resolveCapacities(base, r.Table)
	if err != nil {
		return err
	}
	before, err := run.Execute(ctx, baseCaps)
	if err != nil {
		return asCLIError(exitCodeFor(err), "baseline allocation failed", err)
	}

	// Step 3: Produce the comparison side.
	var after *report.Report
	labelA, labelB := flags.capacities, flags.against
	if flags.run != "" {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if after, err = store.Get(ctx, flags.run); err != nil {
			return historyError(err)
		}
		// The saved run is the older one, so it goes on the left.
		before, after = after, before
		labelA, labelB = "run "+before.RunID, flags.capacities
	} else {
		other, err := loadCapacityConfig(flags.against)
		if err != nil {
			return err
		}
		if !maps.Equal(other.Aliases, base.Aliases) {
			VerboseLog("Warning: aliases in %s are ignored; the import uses %s", flags.against, flags.capacities)
		}
		otherCaps, err := resolveCapacities(other, r.Table)
		if err != nil {
			return err
		}
		if after, err = run.Execute(ctx, otherCaps); err != nil {
			return asCLIError(exitCodeFor(err), "comparison allocation failed", err)
		}
	}

	// Step 4: Print the diff.
	diff, err := report.Diff(before, after, labelA, labelB)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to compute diff", err)
	}
	if diff == "" {
		fmt.Fprintln(out, "No differences.")
		return nil
	}
	fmt.Fprint(out, diff)
	fmt.Fprintf(out, "\n%s: %s\n%s: %s\n", labelA, before.SummaryLine(), labelB, after.SummaryLine())
	return nil
}
