package model

import "fmt"

// InputFormatError reports a malformed preference row. It is raised while
// importing, before the allocation engine is ever invoked.
type InputFormatError struct {
	// Line is the 1-based source line of the row, or 0 when unknown.
	Line int

	// Field names the offending column (e.g. "participant", "2nd choice").
	Field string

	// Message describes what is wrong with the field.
	Message string
}

// Error implements the error interface for InputFormatError.
func (e *InputFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// DuplicateParticipantError reports a participant identifier that cannot be
// disambiguated. Only two-way collisions are resolved (by suffixing the
// second occurrence); a third occurrence is flagged with this error rather
// than guessed at.
type DuplicateParticipantError struct {
	// Participant is the colliding identifier as it appeared in the input.
	Participant string

	// Occurrences is how many rows carried the identifier when the
	// collision was detected.
	Occurrences int
}

// Error implements the error interface for DuplicateParticipantError.
func (e *DuplicateParticipantError) Error() string {
	return fmt.Sprintf("participant %q appears %d times; only two-way name collisions are supported",
		e.Participant, e.Occurrences)
}

// UnknownOptionError reports an option that a participant references but
// that is not registered in the capacity table, or a capacity entry for an
// option no participant ranked. It aborts only the current run.
type UnknownOptionError struct {
	// Option is the unregistered option identifier.
	Option string

	// Participant is the participant that referenced it, if any.
	Participant string
}

// Error implements the error interface for UnknownOptionError.
func (e *UnknownOptionError) Error() string {
	if e.Participant != "" {
		return fmt.Sprintf("participant %q references unknown option %q", e.Participant, e.Option)
	}
	return fmt.Sprintf("unknown option %q", e.Option)
}
