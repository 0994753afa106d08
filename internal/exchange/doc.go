// Package exchange implements the local-exchange optimizer that rescues
// participants left without an allocation by the greedy passes.
//
// Each rule is an independent object that matches the frozen preferences of
// one unresolved participant against one or two already-placed "donor"
// participants and a spare-capacity check at a single option. A match
// yields an Effect: the donors are relabeled to a lower-ranked choice, the
// unresolved participant receives the slot they vacate, and occupancy grows
// by exactly one at the option that absorbs the single net-new occupant.
//
// Rules are grouped into an ordered rotation list (used once right after
// the second-choice pass) and five priority rounds. Lower rounds leave
// everyone better off:
//
//	round 1  algo 11, 3      nobody drops below a 2nd choice
//	round 2  algo 6, 7, 5    one donor accepts a 3rd choice
//	round 3  algo 12, 13, 4, 8
//	round 4  algo 10, 15
//	round 5  algo 9, 14      recipient and a donor both end at 3rd
//
// Each rule's Pattern lists the ranks held by its donors (in the order they
// move) and then the recipient, before and after the exchange, with 0 for
// nothing. "110→221" reads: two donors holding 1st choices and an
// unresolved recipient end with both donors at 2nd and the recipient at 1st.
package exchange
