// Package cli: allocate.go implements the "allotment allocate" command.
//
// The allocate command is the primary user-facing operation. It imports a
// preference file, applies a capacity configuration and runs the allocation
// engine once.
//
// Orchestration steps:
//  1. Load the capacity config (it may carry option aliases)
//  2. Import preferences (aliases, renames, violations, spelling merges)
//  3. Resolve capacities against the discovered options
//  4. Execute the allocation run
//  5. Output the report (stdout or --output file)
//  6. Optionally save the run and write metrics
//  7. Enforce --strict
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/allotment/internal/engine"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/report"
	"github.com/mmr-tortoise/allotment/internal/telemetry"
)

// allocateFlags holds the flag values for the allocate command.
type allocateFlags struct {
	preferences string // --preferences: preference file (.csv, .yaml, .json)
	capacities  string // --capacities: capacity config (.yaml, .json)
	output      string // --output: write the report to a file instead of stdout
	strict      bool   // --strict: exit 4 when someone is left unallocated
	save        bool   // --save: store the run in the history database
	metricsFile string // --metrics-file: Prometheus textfile output
}

// NewAllocateCommand creates the "allocate" cobra command.
func NewAllocateCommand() *cobra.Command {
	flags := &allocateFlags{}

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Allocate participants to options within capacity limits",
		Long: `Import a preference file, apply capacities and run the allocation.

The report lists every participant's allocation (or "Didn't Receive a
Choice"), the per-rank tally, option usage and the exchanges that rescued
participants left without a place by the greedy passes.

Examples:
  allotment allocate -p prefs.csv -c capacities.yaml
  allotment allocate -p prefs.csv -c capacities.yaml -o result.csv
  allotment allocate -p prefs.csv -c capacities.yaml --format json --save
  allotment allocate -p prefs.csv -c capacities.yaml --strict --metrics-file allotment.prom`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocate(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.preferences, "preferences", "p", "", "Preference file (.csv, .yaml, .json)")
	cmd.Flags().StringVarP(&flags.capacities, "capacities", "c", "", "Capacity config (.yaml, .json)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the report to a file (format from extension)")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Exit with code 4 if any participant is unallocated")
	cmd.Flags().BoolVar(&flags.save, "save", false, "Save the run to the history database")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")

	return cmd
}

// runAllocate is the main orchestration function for the allocate command.
func runAllocate(ctx context.Context, out io.Writer, flags *allocateFlags) error {
	ctx = orBackground(ctx)

	// Step 1: Load the capacity config first; its aliases shape the import.
	cfg, err := loadCapacityConfig(flags.capacities)
	if err != nil {
		return err
	}

	// Step 2: Import preferences.
	r, err := importRoster(flags.preferences, cfg.Aliases)
	if err != nil {
		return err
	}

	// Step 3: Resolve capacities against the discovered options.
	caps, err := resolveCapacities(cfg, r.Table)
	if err != nil {
		return err
	}

	// Step 4: Run the allocation.
	run := engine.NewRun(r.Table, r.Store)
	rep, err := run.Execute(ctx, caps)
	if err != nil {
		return asCLIError(exitCodeFor(err), "allocation failed", err)
	}
	VerboseLog("Run %s finished after phases %v", rep.RunID, rep.Phases)
	VerboseLog("%d participant(s) rescued by exchange", len(rep.Rescues))

	// Step 5: Output the report.
	if flags.output != "" {
		format, err := writeReport(flags.output, rep)
		if err != nil {
			return err
		}
		VerboseLog("Report written to %s (%s)", flags.output, format)
		fmt.Fprintln(out, rep.SummaryLine())
	} else if err := printReport(out, rep); err != nil {
		return err
	}

	// Step 6: Persist the run and metrics.
	if flags.save {
		if err := saveRun(ctx, rep, flags.preferences); err != nil {
			return err
		}
	}
	if flags.metricsFile != "" {
		metrics := telemetry.NewMetrics()
		metrics.Observe(rep)
		if err := metrics.WriteTextfile(flags.metricsFile); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to write metrics", err)
		}
		VerboseLog("Metrics written to %s", flags.metricsFile)
	}

	// Step 7: An incomplete allocation is only an error under --strict.
	if flags.strict && !rep.Complete() {
		return model.NewCLIError(model.ExitIncompleteAllocation, rep.SummaryLine())
	}
	return nil
}

// saveRun stores a report in the history database.
func saveRun(ctx context.Context, rep *report.Report, source string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Save(ctx, rep, source); err != nil {
		return model.WrapCLIError(model.ExitHistoryError, "failed to save run", err)
	}
	VerboseLog("Saved run %s", rep.RunID)
	return nil
}
