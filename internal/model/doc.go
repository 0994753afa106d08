// Package model defines the domain types and value objects for the
// allotment CLI.
//
// This package contains pure data structures with no external dependencies.
// Ranks, allocation tags, preference rows and the option/participant
// identifiers flow through every other package as the values defined here.
//
// The package also defines exit codes (ExitCode), a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling,
// and the typed errors raised while importing preference rows.
package model
