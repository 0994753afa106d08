// Package report turns a finished allocation run into a Report and
// serializes it.
//
// Summarize is a pure read of the run state: it tallies allocation tags by
// rank, lists unresolved participants and records option usage, the rescue
// log and the phase trail. Encode writes a Report as text, JSON, YAML or the
// CSV export layout (Name, Allocated Choice, 1st/2nd/3rd Choice). Diff
// compares two reports line by line as a unified diff.
package report
