// Package capacity implements capacity bookkeeping for the allotment CLI.
//
// The Table tracks, for every option participants can rank, an
// admin-supplied capacity and the number of participants currently placed
// in it. The core operation is a check-and-increment:
//
//	if occupancy < capacity { occupancy++ ; return true }
//
// Every placement made by the allocation engine goes through TryAllocate,
// so the invariant occupancy <= capacity holds at all times.
//
// Option identifiers that differ only in surrounding whitespace or letter
// case are treated as the same option. NormalizeDuplicates merges them,
// keeping the first-seen spelling and recording the others as aliases.
package capacity
