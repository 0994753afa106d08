// Package cli implements the cobra-based CLI commands for allotment.
//
// Each subcommand (allocate, options, diff, history) is defined in its own
// file within this package. This file defines the root command that serves
// as the parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/allotment/internal/history"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/report"
	"github.com/mmr-tortoise/allotment/internal/telemetry"
)

// historyEnv names the environment variable that overrides the default
// history database path.
const historyEnv = "ALLOTMENT_HISTORY"

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// formatFlag is the raw --format value; outputFormat holds it parsed.
	formatFlag   string
	outputFormat report.Format

	// verbose enables detailed logging output for debugging.
	// When true, additional information about operations is printed to stderr.
	verbose bool

	// historyPath is the SQLite database that stores saved runs.
	historyPath string

	// traceFile receives OpenTelemetry spans when set.
	traceFile string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action; it provides help
// text, global flags and tracing setup. Actual functionality is provided by
// subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "allotment",
		Short: "Capacity-constrained allocation of ranked preferences",
		Long: `allotment assigns every participant one option out of their three ranked
preferences while respecting per-option capacity limits.

Greedy passes place as many participants as possible at their highest
available rank; a fixed catalogue of exchange rules then moves already
placed participants along their own preference lists to free a place for
someone left without one.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --format).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(formatFlag)
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "invalid --format", err)
			}
			outputFormat = f

			if traceFile != "" {
				VerboseLog("Writing trace spans to %s", traceFile)
				if err := telemetry.Init("allotment", Version, traceFile); err != nil {
					return model.WrapCLIError(model.ExitGeneralError, "failed to initialize tracing", err)
				}
			}
			return nil
		},
	}

	defaultHistory := history.DefaultPath
	if env := os.Getenv(historyEnv); env != "" {
		defaultHistory = env
	}

	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", string(report.FormatText),
		"Output format: text, json, yaml, csv")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", defaultHistory,
		"Run history database (env "+historyEnv+")")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "Write OpenTelemetry spans to this file")

	rootCmd.AddCommand(NewAllocateCommand())
	rootCmd.AddCommand(NewOptionsCommand())
	rootCmd.AddCommand(NewDiffCommand())
	rootCmd.AddCommand(NewHistoryCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// CLIError types carry their own exit codes; domain errors are classified
// by exitCodeFor; everything else exits with code 1.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()

	// Spans are flushed on failure too, so a trace shows where a run broke.
	if shutdownErr := telemetry.Shutdown(context.Background()); shutdownErr != nil {
		VerboseLog("Warning: failed to flush trace spans: %v", shutdownErr)
	}

	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(exitCodeFor(err)))
	}
}

// exitCodeFor maps a domain error that reached the CLI boundary unwrapped
// to its exit code.
func exitCodeFor(err error) model.ExitCode {
	var (
		formatErr    *model.InputFormatError
		duplicateErr *model.DuplicateParticipantError
		unknownErr   *model.UnknownOptionError
		ambiguousErr *history.AmbiguousIDError
	)
	switch {
	case errors.As(err, &formatErr), errors.As(err, &duplicateErr):
		return model.ExitInputFormat
	case errors.As(err, &unknownErr):
		return model.ExitCapacityConfig
	case errors.Is(err, history.ErrRunNotFound), errors.As(err, &ambiguousErr):
		return model.ExitRunNotFound
	}
	return model.ExitGeneralError
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --format global flag.
func printError(message string, underlying error) {
	if IsJSONOutput() {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
// This is used throughout the CLI for debug/trace output that helps
// users understand what operations are being performed.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput returns whether --format json is selected.
func IsJSONOutput() bool {
	return outputFormat == report.FormatJSON
}
