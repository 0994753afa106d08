package exchange

import (
	"fmt"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/preference"
)

// State is the mutable allocation state a rule reads and an effect writes.
// It is borrowed from the running allocation for the duration of one
// match-and-apply step.
type State struct {
	Options      *capacity.Table
	Participants *preference.Store
}

// Move relabels one participant to the option at Rank of their own
// preference list.
type Move struct {
	Participant string     `json:"participant" yaml:"participant"`
	Rank        model.Rank `json:"rank" yaml:"rank"`
}

// Effect is the outcome of a matched rule.
type Effect struct {
	// Rule is the name of the rule that produced the effect.
	Rule string `json:"rule" yaml:"rule"`

	// Round is the priority round the rule fired in, or 0 for the
	// rotation sweep.
	Round int `json:"round" yaml:"round"`

	// Occupy is the option that absorbs the net-new occupant.
	Occupy string `json:"occupy" yaml:"occupy"`

	// Donors are the already-placed participants that move, in the order
	// they are relabeled.
	Donors []Move `json:"donors" yaml:"donors"`

	// Recipient is the previously unresolved participant and the rank
	// they receive.
	Recipient Move `json:"recipient" yaml:"recipient"`
}

// Apply mutates the live state: one place is taken at Occupy, every donor is
// relabeled and the recipient is tagged. The spare place was checked when
// the rule matched; finding it gone here is a structural error.
func (e Effect) Apply(st State) error {
	if !st.Options.TryAllocate(e.Occupy) {
		return fmt.Errorf("%s: no spare capacity at %q", e.Rule, e.Occupy)
	}
	for _, donor := range e.Donors {
		if err := st.Participants.Reassign(donor.Participant, donor.Rank); err != nil {
			return fmt.Errorf("%s: %w", e.Rule, err)
		}
	}
	if err := st.Participants.Assign(e.Recipient.Participant, e.Recipient.Rank); err != nil {
		return fmt.Errorf("%s: %w", e.Rule, err)
	}
	return nil
}
