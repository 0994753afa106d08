package exchange

import (
	"fmt"

	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/preference"
)

// Rule matches one unresolved participant against the current state.
type Rule interface {
	// Name identifies the rule, e.g. "algo-11".
	Name() string

	// Pattern is the rank shorthand of the exchange, e.g. "10→22".
	Pattern() string

	// TryMatch returns the effect of the first match found scanning donors
	// in store order, or false when the rule does not apply. It never
	// mutates state.
	TryMatch(u preference.Snapshot, st State) (Effect, bool)
}

// matchFunc scans donors for one rule.
type matchFunc func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool)

type rule struct {
	name    string
	pattern string
	match   matchFunc
}

func (r rule) Name() string    { return r.name }
func (r rule) Pattern() string { return r.pattern }

func (r rule) TryMatch(u preference.Snapshot, st State) (Effect, bool) {
	effect, ok := r.match(u, st.Participants.Participants(), st)
	if !ok {
		return Effect{}, false
	}
	effect.Rule = r.name
	return effect, true
}

func newRule(algo int, pattern string, match matchFunc) Rule {
	return rule{name: fmt.Sprintf("algo-%d", algo), pattern: pattern, match: match}
}

const (
	first  = model.RankFirst
	second = model.RankSecond
	third  = model.RankThird
)

// at is shorthand for the option a participant ranked at r.
func at(p preference.Participant, r model.Rank) string {
	return p.Choices[r]
}

func (st State) spare(option string) bool {
	return st.Options.HasSpare(option)
}

func single(occupy string, donor preference.Participant, donorRank model.Rank, u preference.Snapshot, rank model.Rank) Effect {
	return Effect{
		Occupy:    occupy,
		Donors:    []Move{{Participant: donor.ID, Rank: donorRank}},
		Recipient: Move{Participant: u.ID, Rank: rank},
	}
}

func double(occupy string, a preference.Participant, aRank model.Rank, b preference.Participant, bRank model.Rank, u preference.Snapshot, rank model.Rank) Effect {
	return Effect{
		Occupy: occupy,
		Donors: []Move{
			{Participant: a.ID, Rank: aRank},
			{Participant: b.ID, Rank: bRank},
		},
		Recipient: Move{Participant: u.ID, Rank: rank},
	}
}

// Algo1 demotes a donor holding the recipient's 1st choice to the donor's
// free 2nd choice; the recipient takes the 1st choice.
func Algo1() Rule {
	return newRule(1, "10→21", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(first) && at(d, first) == u.Choices[first] && st.spare(at(d, second)) {
				return single(at(d, second), d, second, u, first), true
			}
		}
		return Effect{}, false
	})
}

// Algo2 promotes a donor holding the recipient's 2nd choice back to the
// donor's 1st choice, which a second donor vacates by moving to a free 2nd
// choice; the recipient takes the 2nd choice.
func Algo2() Rule {
	return newRule(2, "210→122", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, a := range donors {
			if !a.Holds(second) || at(a, second) != u.Choices[second] {
				continue
			}
			for _, b := range donors {
				if b.Holds(first) && at(a, first) == at(b, first) && st.spare(at(b, second)) {
					return double(at(b, second), a, first, b, second, u, second), true
				}
			}
		}
		return Effect{}, false
	})
}

// Algo3 chains two 1st-choice donors: the second donor holds the
// recipient's 1st choice and moves to its own 2nd choice, which the first
// donor frees by moving to a free 2nd choice.
func Algo3() Rule {
	return newRule(3, "110→221", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, a := range donors {
			if !a.Holds(first) || !st.spare(at(a, second)) {
				continue
			}
			for _, b := range donors {
				if b.ID != a.ID && b.Holds(first) && at(b, first) == u.Choices[first] && at(a, first) == at(b, second) {
					return double(at(a, second), a, second, b, second, u, first), true
				}
			}
		}
		return Effect{}, false
	})
}

// Algo4 chains two 1st-choice donors: the first holds the recipient's 1st
// choice and moves to its 2nd, which the second donor frees by moving to a
// free 3rd choice.
func Algo4() Rule {
	return newRule(4, "110→321", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, a := range donors {
			if !a.Holds(first) || at(a, first) != u.Choices[first] {
				continue
			}
			for _, b := range donors {
				if b.ID != a.ID && b.Holds(first) && at(a, second) == at(b, first) && st.spare(at(b, third)) {
					return double(at(b, third), b, third, a, second, u, first), true
				}
			}
		}
		return Effect{}, false
	})
}

// Algo5 moves a donor holding the recipient's 1st choice to its 2nd, which
// a 2nd-choice donor frees by moving to a free 3rd choice.
func Algo5() Rule {
	return newRule(5, "210→321", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, a := range donors {
			if !a.Holds(first) || at(a, first) != u.Choices[first] {
				continue
			}
			for _, b := range donors {
				if b.Holds(second) && at(a, second) == at(b, second) && st.spare(at(b, third)) {
					return double(at(b, third), b, third, a, second, u, first), true
				}
			}
		}
		return Effect{}, false
	})
}

// Algo6 demotes a donor holding the recipient's 1st choice to the donor's
// free 3rd choice.
func Algo6() Rule {
	return newRule(6, "10→31", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(first) && at(d, first) == u.Choices[first] && st.spare(at(d, third)) {
				return single(at(d, third), d, third, u, first), true
			}
		}
		return Effect{}, false
	})
}

// Algo7 demotes a donor holding the recipient's 2nd choice (as the donor's
// own 2nd) to the donor's free 3rd choice.
func Algo7() Rule {
	return newRule(7, "20→32", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(second) && at(d, second) == u.Choices[second] && st.spare(at(d, third)) {
				return single(at(d, third), d, third, u, second), true
			}
		}
		return Effect{}, false
	})
}

// Algo8 chains two 1st-choice donors: the first holds the recipient's 1st
// choice and moves to its 3rd, which the second donor frees by moving to a
// free 2nd choice.
func Algo8() Rule {
	return newRule(8, "110→231", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, a := range donors {
			if !a.Holds(first) || at(a, first) != u.Choices[first] {
				continue
			}
			for _, b := range donors {
				if b.ID != a.ID && b.Holds(first) && at(a, third) == at(b, first) && st.spare(at(b, second)) {
					return double(at(b, second), b, second, a, third, u, first), true
				}
			}
		}
		return Effect{}, false
	})
}

// Algo9 chains two 1st-choice donors into their 3rd choices: the second
// donor holds the recipient's 1st choice and moves to its 3rd, which the
// first donor frees by moving to a free 3rd choice.
func Algo9() Rule {
	return newRule(9, "110→331", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, a := range donors {
			if !a.Holds(first) || !st.spare(at(a, third)) {
				continue
			}
			for _, b := range donors {
				if b.ID != a.ID && b.Holds(first) && at(b, first) == u.Choices[first] && at(a, first) == at(b, third) {
					return double(at(a, third), a, third, b, third, u, first), true
				}
			}
		}
		return Effect{}, false
	})
}

// Algo10 moves a 1st-choice donor holding the recipient's 1st choice to its
// 3rd choice, which a 2nd-choice donor frees by moving to a free 3rd choice.
func Algo10() Rule {
	return newRule(10, "210→331", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, a := range donors {
			if !a.Holds(second) || !st.spare(at(a, third)) {
				continue
			}
			for _, b := range donors {
				if b.Holds(first) && at(b, first) == u.Choices[first] && at(a, second) == at(b, third) {
					return double(at(a, third), a, third, b, third, u, first), true
				}
			}
		}
		return Effect{}, false
	})
}

// Algo11 demotes a donor whose 1st choice is the recipient's 2nd choice to
// the donor's free 2nd choice.
func Algo11() Rule {
	return newRule(11, "10→22", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(first) && st.spare(at(d, second)) && at(d, first) == u.Choices[second] {
				return single(at(d, second), d, second, u, second), true
			}
		}
		return Effect{}, false
	})
}

// Algo12 demotes a donor whose 1st choice is the recipient's 2nd choice to
// the donor's free 3rd choice.
func Algo12() Rule {
	return newRule(12, "10→32", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(first) && at(d, first) == u.Choices[second] && st.spare(at(d, third)) {
				return single(at(d, third), d, third, u, second), true
			}
		}
		return Effect{}, false
	})
}

// Algo13 demotes a donor whose 1st choice is the recipient's 3rd choice to
// the donor's free 2nd choice.
func Algo13() Rule {
	return newRule(13, "10→23", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(first) && at(d, first) == u.Choices[third] && st.spare(at(d, second)) {
				return single(at(d, second), d, second, u, third), true
			}
		}
		return Effect{}, false
	})
}

// Algo14 demotes a donor whose 1st choice is the recipient's 3rd choice to
// the donor's free 3rd choice.
func Algo14() Rule {
	return newRule(14, "10→33", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(first) && st.spare(at(d, third)) && at(d, first) == u.Choices[third] {
				return single(at(d, third), d, third, u, third), true
			}
		}
		return Effect{}, false
	})
}

// Algo15 demotes a donor whose 2nd choice is the recipient's 3rd choice to
// the donor's free 3rd choice.
func Algo15() Rule {
	return newRule(15, "20→33", func(u preference.Snapshot, donors []preference.Participant, st State) (Effect, bool) {
		for _, d := range donors {
			if d.Holds(second) && st.spare(at(d, third)) && at(d, second) == u.Choices[third] {
				return single(at(d, third), d, third, u, third), true
			}
		}
		return Effect{}, false
	})
}
