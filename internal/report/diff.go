package report

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff returns a unified diff between the outcomes of two reports. Only
// run-independent content is compared (tallies, per-participant
// allocations and option usage), so two runs over the same input with the
// same capacities produce an empty diff.
func Diff(a, b *Report, labelA, labelB string) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(outcome(a)),
		B:        difflib.SplitLines(outcome(b)),
		FromFile: labelA,
		ToFile:   labelB,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("failed to diff reports: %w", err)
	}
	return text, nil
}

// outcome renders the comparable part of a report, one fact per line.
func outcome(rep *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "total: %d\n", rep.Total)
	fmt.Fprintf(&b, "tally: 1st=%d 2nd=%d 3rd=%d unresolved=%d\n",
		rep.Tally.First, rep.Tally.Second, rep.Tally.Third, rep.UnresolvedCount())
	for _, o := range rep.Options {
		fmt.Fprintf(&b, "option %s: %d/%d\n", o.ID, o.Occupancy, o.Capacity)
	}
	for _, res := range rep.Participants {
		if res.Allocated() {
			fmt.Fprintf(&b, "%s: %s (%s)\n", res.Participant, res.Allocation, res.Rank)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", res.Participant, res.Allocation)
		}
	}
	return b.String()
}
