package model

import (
	"fmt"
	"strings"
)

// ChoiceCount is the number of ranked preferences every participant submits.
const ChoiceCount = 3

// ViolationOption is the synthetic option substituted into a preference slot
// that repeats an earlier slot of the same participant. It is registered
// with capacity 0, so a slot holding it can never be satisfied.
const ViolationOption = "VIOLATION"

// NoChoice is the sentinel reported for a participant that ends a run
// without an allocation tag.
const NoChoice = "Didn't Receive a Choice"

// Rank identifies which of the three ranked preferences a participant
// received. The zero value is the first choice, so a Rank doubles as an
// index into Choices.
type Rank int

const (
	// RankFirst is the participant's most preferred option.
	RankFirst Rank = iota

	// RankSecond is the participant's second preference.
	RankSecond

	// RankThird is the participant's last preference.
	RankThird
)

// Ranks lists all valid ranks in preference order.
var Ranks = []Rank{RankFirst, RankSecond, RankThird}

// String returns the ordinal label used in tags and summaries
// ("1st", "2nd", "3rd").
func (r Rank) String() string {
	switch r {
	case RankFirst:
		return "1st"
	case RankSecond:
		return "2nd"
	case RankThird:
		return "3rd"
	default:
		return fmt.Sprintf("rank(%d)", int(r))
	}
}

// IsValid checks whether the Rank is one of the three defined ranks.
func (r Rank) IsValid() bool {
	return r >= RankFirst && r <= RankThird
}

// ParseRank converts an ordinal label ("1st", "2nd", "3rd") to a Rank.
// Matching is case-insensitive.
func ParseRank(s string) (Rank, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1st":
		return RankFirst, nil
	case "2nd":
		return RankSecond, nil
	case "3rd":
		return RankThird, nil
	}
	return 0, fmt.Errorf("invalid rank: %q (valid: 1st, 2nd, 3rd)", s)
}

// MarshalText encodes a Rank as its ordinal label so reports read "2nd"
// rather than 1.
func (r Rank) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes an ordinal label produced by MarshalText.
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Choices holds a participant's three ranked option identifiers.
// Choices[RankFirst] is the most preferred option.
//
// Choices is an array rather than a slice so that copying a value yields an
// independent snapshot: frozen copies taken for exchange matching can never
// alias a live record.
type Choices [ChoiceCount]string

// At returns the option identifier at the given rank.
func (c Choices) At(r Rank) string {
	return c[r]
}

// Tag is the rank-labeled record of which option a participant received.
// Its textual form is "<rank> CHOICE - <option>", e.g. "2nd CHOICE - Art".
type Tag struct {
	// Rank is the preference rank that was satisfied.
	Rank Rank `json:"rank" yaml:"rank"`

	// Option is the option identifier at that rank.
	Option string `json:"option" yaml:"option"`
}

// tagSeparator separates the rank label from the option in a Tag's text form.
const tagSeparator = " CHOICE - "

// String returns the canonical tag text, e.g. "1st CHOICE - Math".
func (t Tag) String() string {
	return t.Rank.String() + tagSeparator + t.Option
}

// ParseTag converts the canonical tag text back into a Tag.
func ParseTag(s string) (Tag, error) {
	label, option, ok := strings.Cut(s, tagSeparator)
	if !ok || option == "" {
		return Tag{}, fmt.Errorf("invalid allocation tag %q: expected \"<rank> CHOICE - <option>\"", s)
	}
	rank, err := ParseRank(label)
	if err != nil {
		return Tag{}, fmt.Errorf("invalid allocation tag %q: %w", s, err)
	}
	return Tag{Rank: rank, Option: option}, nil
}

// PreferenceRow is one cleaned input row: a participant identifier and its
// three ranked option identifiers.
type PreferenceRow struct {
	// Participant is the participant's display name or identifier.
	Participant string `json:"participant" yaml:"participant"`

	// Choices are the ranked option identifiers, most preferred first.
	Choices Choices `json:"choices" yaml:"choices"`

	// Line is the 1-based source line (or list index) the row came from.
	// It is informational only and used in error messages.
	Line int `json:"-" yaml:"-"`
}

// Validate checks that every field of the row is a non-empty string and
// that no choice spells the reserved ViolationOption.
// It returns an *InputFormatError describing the first offending field.
func (r *PreferenceRow) Validate() error {
	if strings.TrimSpace(r.Participant) == "" {
		return &InputFormatError{Line: r.Line, Field: "participant", Message: "must not be empty"}
	}
	for i, choice := range r.Choices {
		if strings.TrimSpace(choice) == "" {
			return &InputFormatError{
				Line:    r.Line,
				Field:   Rank(i).String() + " choice",
				Message: "must not be empty",
			}
		}
		if strings.TrimSpace(choice) == ViolationOption {
			return &InputFormatError{
				Line:    r.Line,
				Field:   Rank(i).String() + " choice",
				Message: fmt.Sprintf("%q is reserved for repeated preferences", ViolationOption),
			}
		}
	}
	return nil
}

// ValidateRows validates every row and returns all failures.
// An empty result means the rows can be handed to the allocation core.
func ValidateRows(rows []PreferenceRow) []error {
	var errs []error
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ExitCode defines standard CLI exit codes.
// These codes allow scripts and CI systems to programmatically determine
// the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInputFormat indicates the preference file could not be parsed
	// or contained malformed rows.
	ExitInputFormat ExitCode = 2

	// ExitCapacityConfig indicates the capacity configuration was missing,
	// malformed, or referenced options that were never discovered.
	ExitCapacityConfig ExitCode = 3

	// ExitIncompleteAllocation indicates at least one participant received
	// no choice. Only returned when --strict is set.
	ExitIncompleteAllocation ExitCode = 4

	// ExitHistoryError indicates the run history store could not be
	// opened, read, or written.
	ExitHistoryError ExitCode = 5

	// ExitRunNotFound indicates the requested run id does not exist in
	// the history store.
	ExitRunNotFound ExitCode = 6

	// ExitUserCancelled indicates the user cancelled an interactive prompt.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
