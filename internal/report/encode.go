package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/allotment/internal/model"
)

// Format selects a report encoding.
type Format string

const (
	// FormatText is the human-readable summary and table.
	FormatText Format = "text"

	// FormatJSON is the full report as indented JSON.
	FormatJSON Format = "json"

	// FormatYAML is the full report as YAML.
	FormatYAML Format = "yaml"

	// FormatCSV is the export sheet: one row per participant.
	FormatCSV Format = "csv"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatCSV}

// ParseFormat converts a flag value to a Format. Matching is
// case-insensitive.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format: %q (valid: text, json, yaml, csv)", s)
}

// FormatForPath infers a format from an output file extension, falling back
// to def when the extension is not recognized.
func FormatForPath(path string, def Format) Format {
	switch {
	case strings.HasSuffix(path, ".json"):
		return FormatJSON
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return FormatYAML
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV
	case strings.HasSuffix(path, ".txt"):
		return FormatText
	}
	return def
}

// ExportHeader is the column layout of the CSV export.
var ExportHeader = []string{"Name", "Allocated Choice", "1st Choice", "2nd Choice", "3rd Choice"}

// Encode writes the report to w in the given format.
func Encode(w io.Writer, rep *Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return encodeCSV(w, rep)
	case FormatText, "":
		return encodeText(w, rep)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

// Decode reads a report previously written with FormatJSON.
func Decode(r io.Reader) (*Report, error) {
	var rep Report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &rep, nil
}

func encodeCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, res := range rep.Participants {
		record := []string{res.Participant, res.Allocation}
		for _, r := range model.Ranks {
			record = append(record, res.Choices.At(r))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodeText writes the summary line, the rank tallies and a fixed-width
// table:
//
//	PARTICIPANT          ALLOCATION           RANK  CHOICES
//	Ada                  Math                 1st   Math / Art / Bio
//	Bo                   Didn't Receive a ... -     Math / Art / Bio
func encodeText(w io.Writer, rep *Report) error {
	var b strings.Builder

	fmt.Fprintln(&b, rep.SummaryLine())
	fmt.Fprintf(&b, "1st: %d  2nd: %d  3rd: %d  unresolved: %d\n",
		rep.Tally.First, rep.Tally.Second, rep.Tally.Third, rep.UnresolvedCount())
	if rep.RunID != "" {
		fmt.Fprintf(&b, "run: %s\n", rep.RunID)
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "%-20s %-20s %-5s %s\n", "PARTICIPANT", "ALLOCATION", "RANK", "CHOICES")
	for _, res := range rep.Participants {
		rank := res.Rank
		if rank == "" {
			rank = "-"
		}
		fmt.Fprintf(&b, "%-20s %-20s %-5s %s\n",
			res.Participant, truncate(res.Allocation, 20), rank, strings.Join(res.Choices[:], " / "))
	}

	if len(rep.Options) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "%-20s %-10s %s\n", "OPTION", "CAPACITY", "OCCUPANCY")
		for _, o := range rep.Options {
			fmt.Fprintf(&b, "%-20s %-10d %d\n", o.ID, o.Capacity, o.Occupancy)
		}
	}

	if len(rep.Rescues) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Rescued by exchange:")
		for _, e := range rep.Rescues {
			fmt.Fprintf(&b, "  %s (round %d): %s -> %s\n", e.Rule, e.Round, e.Recipient.Participant, e.Recipient.Rank)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
