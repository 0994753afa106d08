// Package engine runs the multi-phase allocation over a capacity table and
// a preference store.
//
// A Run owns the mutable state of one allocation: the capacity table, the
// preference store, the ordered set of unresolved participants and the log
// of applied exchange effects. Execute hard-resets that state and walks the
// phases in strict order:
//
//	INIT → FIRST_PASS → SECOND_PASS → OPTIMIZE_1 → THIRD_PASS → FINAL_OPTIMIZE → SUMMARIZED
//
// The only skip is the early exit to SUMMARIZED once no participant is
// unresolved. Every phase is traced as an OpenTelemetry span.
package engine
