// Package preference holds each participant's three ranked preferences and
// the allocation tag a run resolves for them.
//
// The Store keeps participants in input order; every allocation phase and
// every exchange rule scans them in that order. Before the first run a
// pristine deep copy of all preferences is taken, and ResetFromPristine
// restores it (dropping every tag) at the start of each run, which makes
// reruns with new capacities independent of one another.
//
// Cross-participant matching never reads a live record of an unresolved
// participant: Snapshot returns a frozen value copy that later mutation
// cannot reach.
package preference
