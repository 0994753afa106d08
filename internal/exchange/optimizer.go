package exchange

import (
	"fmt"

	"github.com/mmr-tortoise/allotment/internal/preference"
)

// RoundCount is the number of priority rounds tried by Rescue.
const RoundCount = 5

// Round is one priority group of rules, tried in order.
type Round struct {
	Number int
	Rules  []Rule
}

// Optimizer holds the rotation list and the priority rounds.
type Optimizer struct {
	rotation []Rule
	rounds   []Round
}

// NewOptimizer returns the optimizer with the standard rule battery.
func NewOptimizer() *Optimizer {
	return NewCustomOptimizer(
		[]Rule{Algo1(), Algo2()},
		[]Round{
			{Number: 1, Rules: []Rule{Algo11(), Algo3()}},
			{Number: 2, Rules: []Rule{Algo6(), Algo7(), Algo5()}},
			{Number: 3, Rules: []Rule{Algo12(), Algo13(), Algo4(), Algo8()}},
			{Number: 4, Rules: []Rule{Algo10(), Algo15()}},
			{Number: 5, Rules: []Rule{Algo9(), Algo14()}},
		},
	)
}

// NewCustomOptimizer builds an optimizer from an explicit rotation list and
// rounds. Rounds are tried in slice order by Rescue.
func NewCustomOptimizer(rotation []Rule, rounds []Round) *Optimizer {
	return &Optimizer{rotation: rotation, rounds: rounds}
}

// Rotation returns the rules of the rotation sweep.
func (o *Optimizer) Rotation() []Rule {
	return append([]Rule(nil), o.rotation...)
}

// Rounds returns the priority rounds.
func (o *Optimizer) Rounds() []Round {
	return append([]Round(nil), o.rounds...)
}

// Rotate tries the rotation list for one unresolved participant and applies
// the first match. The returned effect carries Round 0.
func (o *Optimizer) Rotate(u preference.Snapshot, st State) (Effect, bool, error) {
	return fire(o.rotation, 0, u, st)
}

// TryRound tries the rules of round n in order and applies the first match.
func (o *Optimizer) TryRound(n int, u preference.Snapshot, st State) (Effect, bool, error) {
	for _, round := range o.rounds {
		if round.Number == n {
			return fire(round.Rules, n, u, st)
		}
	}
	return Effect{}, false, fmt.Errorf("unknown optimization round %d", n)
}

// Rescue tries every round in order; the first round that matches wins.
func (o *Optimizer) Rescue(u preference.Snapshot, st State) (Effect, bool, error) {
	for _, round := range o.rounds {
		effect, ok, err := fire(round.Rules, round.Number, u, st)
		if err != nil || ok {
			return effect, ok, err
		}
	}
	return Effect{}, false, nil
}

func fire(rules []Rule, round int, u preference.Snapshot, st State) (Effect, bool, error) {
	for _, r := range rules {
		effect, ok := r.TryMatch(u, st)
		if !ok {
			continue
		}
		effect.Round = round
		if err := effect.Apply(st); err != nil {
			return Effect{}, false, err
		}
		return effect, true, nil
	}
	return Effect{}, false, nil
}
