package cli

import (
	"errors"
	"io"
	"os"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/history"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/report"
	"github.com/mmr-tortoise/allotment/internal/roster"
)

// loadCapacityConfig reads a capacity file, reporting every failure with
// the capacity-config exit code.
func loadCapacityConfig(path string) (*roster.CapacityConfig, error) {
	if path == "" {
		return nil, model.NewCLIError(model.ExitCapacityConfig, "a capacity config is required (--capacities)")
	}
	cfg, err := roster.LoadCapacityConfig(path)
	if err != nil {
		return nil, asCLIError(model.ExitCapacityConfig, "invalid capacity config", err)
	}
	VerboseLog("Loaded capacity config %s (%d entries, %d aliases)", path, len(cfg.Capacities), len(cfg.Aliases))
	return cfg, nil
}

// importRoster reads a preference file and runs the import lifecycle.
func importRoster(path string, aliases map[string]string) (*roster.Roster, error) {
	if path == "" {
		return nil, model.NewCLIError(model.ExitInputFormat, "a preference file is required (--preferences)")
	}
	rows, err := roster.LoadPreferences(path)
	if err != nil {
		return nil, asCLIError(model.ExitInputFormat, "invalid preference file", err)
	}
	VerboseLog("Read %d preference rows from %s", len(rows), path)

	r, err := roster.Import(rows, aliases)
	if err != nil {
		return nil, asCLIError(model.ExitInputFormat, "failed to import preferences", err)
	}

	for _, rn := range r.Renames {
		VerboseLog("Renamed duplicate participant %q (line %d) to %q", rn.Original, rn.Line, rn.Assigned)
	}
	for _, m := range r.Merges {
		VerboseLog("Merged option spelling %q into %q", m.Dropped, m.Kept)
	}
	if r.Violations > 0 {
		VerboseLog("Marked repeated preferences of %d participant(s) as %s", r.Violations, model.ViolationOption)
	}
	VerboseLog("Discovered %d option(s) for %d participant(s)", r.Table.Len(), r.Store.Len())
	return r, nil
}

// resolveCapacities maps a capacity config onto an imported table.
func resolveCapacities(cfg *roster.CapacityConfig, table *capacity.Table) (map[string]int, error) {
	caps, err := cfg.Resolve(table)
	if err != nil {
		return nil, asCLIError(model.ExitCapacityConfig, "capacity config does not match the preferences", err)
	}
	return caps, nil
}

// openHistory opens the run history database named by --history.
func openHistory() (*history.Store, error) {
	store, err := history.Open(historyPath)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitHistoryError, "failed to open run history", err)
	}
	VerboseLog("Opened run history %s", store.Path())
	return store, nil
}

// historyError classifies a history lookup failure.
func historyError(err error) error {
	var ambiguous *history.AmbiguousIDError
	if errors.Is(err, history.ErrRunNotFound) || errors.As(err, &ambiguous) {
		return model.WrapCLIError(model.ExitRunNotFound, "run lookup failed", err)
	}
	return model.WrapCLIError(model.ExitHistoryError, "run history error", err)
}

// writeReport encodes a report to path, inferring the format from the
// extension and falling back to the --format value.
func writeReport(path string, rep *report.Report) (report.Format, error) {
	format := report.FormatForPath(path, outputFormat)
	f, err := os.Create(path)
	if err != nil {
		return format, model.WrapCLIError(model.ExitGeneralError, "failed to create output file", err)
	}
	if err := report.Encode(f, rep, format); err != nil {
		_ = f.Close()
		return format, model.WrapCLIError(model.ExitGeneralError, "failed to write report", err)
	}
	if err := f.Close(); err != nil {
		return format, model.WrapCLIError(model.ExitGeneralError, "failed to write report", err)
	}
	return format, nil
}

// printReport writes a report to w in the --format encoding.
func printReport(w io.Writer, rep *report.Report) error {
	if err := report.Encode(w, rep, outputFormat); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to print report", err)
	}
	return nil
}

// asCLIError wraps err with code unless it already carries one.
func asCLIError(code model.ExitCode, message string, err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	return model.WrapCLIError(code, message, err)
}
