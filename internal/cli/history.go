// Package cli: history.go implements the "allotment history" commands.
//
// Runs saved with "allocate --save" are kept in a SQLite database (see
// --history). The subcommands list them, print one of them in any report
// format, and remove them. Run ids may be abbreviated to any unique prefix.
//
// By default, remove prompts for confirmation before proceeding. The
// --force flag skips the prompt.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/allotment/internal/history"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/report"
)

// NewHistoryCommand creates the "history" cobra command and its
// subcommands.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage saved allocation runs",
		Long: `Inspect and manage allocation runs saved with "allocate --save".

Examples:
  allotment history list
  allotment history show 3f2a --format csv
  allotment history remove 3f2a --force`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryRemoveCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

// historyRemoveFlags holds the flag values for the history remove command.
type historyRemoveFlags struct {
	// force skips the interactive confirmation prompt when true.
	force bool
}

func newHistoryRemoveCommand() *cobra.Command {
	flags := &historyRemoveFlags{}

	cmd := &cobra.Command{
		Use:   "remove <run-id>",
		Short: "Remove a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryRemove(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove without confirmation")
	return cmd
}

// runHistoryList prints every saved run.
func runHistoryList(ctx context.Context, out io.Writer) error {
	ctx = orBackground(ctx)
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.List(ctx)
	if err != nil {
		return historyError(err)
	}
	VerboseLog("Found %d saved run(s)", len(entries))
	return printHistoryList(out, entries)
}

// runHistoryShow prints one saved run in the --format encoding.
func runHistoryShow(ctx context.Context, out io.Writer, id string) error {
	ctx = orBackground(ctx)
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rep, err := store.Get(ctx, id)
	if err != nil {
		return historyError(err)
	}
	return printReport(out, rep)
}

// runHistoryRemove deletes one saved run after confirmation.
func runHistoryRemove(ctx context.Context, in io.Reader, out io.Writer, id string, flags *historyRemoveFlags) error {
	ctx = orBackground(ctx)
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Step 1: Resolve the id so the prompt names the full run.
	runID, err := store.Resolve(ctx, id)
	if err != nil {
		return historyError(err)
	}

	// Step 2: Prompt for confirmation unless --force is specified.
	if !flags.force {
		confirmed, err := promptConfirmation(in, out, runID)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	// Step 3: Remove the run.
	if _, err := store.Delete(ctx, runID); err != nil {
		return historyError(err)
	}
	VerboseLog("Removed run %s from %s", runID, store.Path())

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"runId":  runID,
			"action": "removed",
		}, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintf(out, "Removed run %s\n", runID)
	return nil
}

// promptConfirmation asks the user to confirm removing a run.
// It reads a single line and checks for "y" or "yes".
func promptConfirmation(in io.Reader, out io.Writer, runID string) (bool, error) {
	fmt.Fprintf(out, "About to remove saved run %s\n", runID)
	fmt.Fprint(out, "\nContinue? [y/N] ")

	// bufio.Scanner handles both LF and CRLF line endings.
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// A closed stdin counts as "no".
	if err := scanner.Err(); err != nil {
		return false, err
	}
	return false, nil
}

// printHistoryList outputs saved runs in the --format encoding.
func printHistoryList(out io.Writer, entries []history.Entry) error {
	type resultJSON struct {
		Runs []history.Entry `json:"runs" yaml:"runs"`
	}
	// An empty slice renders as [] rather than null.
	result := resultJSON{Runs: make([]history.Entry, 0, len(entries))}
	result.Runs = append(result.Runs, entries...)

	switch outputFormat {
	case report.FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case report.FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No saved runs found.")
		return nil
	}

	// Fixed-width table:
	//
	//	RUN ID                                GENERATED             ALLOCATED  SOURCE
	//	3f2a9c1e-...                          2026-03-01 09:30:00   28/30      prefs.csv
	fmt.Fprintf(out, "%-38s %-20s %-10s %s\n", "RUN ID", "GENERATED", "ALLOCATED", "SOURCE")
	for _, e := range entries {
		fmt.Fprintf(out, "%-38s %-20s %-10s %s\n",
			e.RunID,
			e.GeneratedAt.Local().Format(time.DateTime),
			fmt.Sprintf("%d/%d", e.Allocated, e.Total),
			e.Source,
		)
	}
	return nil
}

// orBackground returns ctx, or a background context when ctx is nil.
func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
