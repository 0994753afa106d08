package report

import (
	"fmt"
	"time"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/exchange"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/preference"
)

// Tally counts allocated participants per rank.
type Tally struct {
	First  int `json:"first" yaml:"first"`
	Second int `json:"second" yaml:"second"`
	Third  int `json:"third" yaml:"third"`
}

// Sum returns the number of allocated participants.
func (t Tally) Sum() int {
	return t.First + t.Second + t.Third
}

// add counts one tag of the given rank.
func (t *Tally) add(r model.Rank) {
	switch r {
	case model.RankFirst:
		t.First++
	case model.RankSecond:
		t.Second++
	case model.RankThird:
		t.Third++
	}
}

// Resolution is the outcome for one participant.
type Resolution struct {
	// Participant is the (possibly suffixed) participant id.
	Participant string `json:"participant" yaml:"participant"`

	// Allocation is the allocated option, or model.NoChoice.
	Allocation string `json:"allocation" yaml:"allocation"`

	// Rank is the rank label of the allocation ("1st", "2nd", "3rd"), empty
	// when unresolved.
	Rank string `json:"rank,omitempty" yaml:"rank,omitempty"`

	// Choices are the participant's preferences after violation marking.
	Choices model.Choices `json:"choices" yaml:"choices"`
}

// Allocated reports whether the participant received an option.
func (r Resolution) Allocated() bool {
	return r.Rank != ""
}

// Report is the in-memory result of one allocation run.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string `json:"runId" yaml:"run_id"`

	// GeneratedAt is when the run was summarized.
	GeneratedAt time.Time `json:"generatedAt" yaml:"generated_at"`

	// Total is the number of participants.
	Total int `json:"total" yaml:"total"`

	// Tally counts allocations per rank.
	Tally Tally `json:"tally" yaml:"tally"`

	// Unresolved lists participants left without an allocation, in store
	// order.
	Unresolved []string `json:"unresolved" yaml:"unresolved"`

	// Participants holds one resolution per participant, in store order.
	Participants []Resolution `json:"participants" yaml:"participants"`

	// Options is the capacity and final occupancy of every option.
	Options []capacity.Option `json:"options" yaml:"options"`

	// Rescues lists the exchange effects applied during the run, in order.
	Rescues []exchange.Effect `json:"rescues" yaml:"rescues"`

	// Phases is the trail of phases the run passed through.
	Phases []string `json:"phases" yaml:"phases"`
}

// Input is the run state Summarize reads.
type Input struct {
	RunID        string
	GeneratedAt  time.Time
	Options      *capacity.Table
	Participants *preference.Store
	Rescues      []exchange.Effect
	Phases       []string
}

// Summarize builds a Report from the state of a finished run. It does not
// mutate the state.
func Summarize(in Input) *Report {
	participants := in.Participants.Participants()

	rep := &Report{
		RunID:        in.RunID,
		GeneratedAt:  in.GeneratedAt,
		Total:        len(participants),
		Unresolved:   make([]string, 0),
		Participants: make([]Resolution, 0, len(participants)),
		Options:      in.Options.Options(),
		Rescues:      append([]exchange.Effect{}, in.Rescues...),
		Phases:       append([]string{}, in.Phases...),
	}

	for _, p := range participants {
		res := Resolution{Participant: p.ID, Allocation: model.NoChoice, Choices: p.Choices}
		if p.Tagged() {
			res.Allocation = p.Tag.Option
			res.Rank = p.Tag.Rank.String()
			rep.Tally.add(p.Tag.Rank)
		} else {
			rep.Unresolved = append(rep.Unresolved, p.ID)
		}
		rep.Participants = append(rep.Participants, res)
	}
	return rep
}

// Allocated returns the number of participants holding an allocation.
func (r *Report) Allocated() int {
	return r.Tally.Sum()
}

// UnresolvedCount returns total minus the sum of the rank tallies.
func (r *Report) UnresolvedCount() int {
	return r.Total - r.Tally.Sum()
}

// Complete reports whether every participant was allocated.
func (r *Report) Complete() bool {
	return r.UnresolvedCount() == 0
}

// SummaryLine returns the one-line outcome shown after a run, e.g.
// "Allocation Complete: 12/12 participants allocated".
func (r *Report) SummaryLine() string {
	if r.Complete() {
		return fmt.Sprintf("Allocation Complete: %d/%d participants allocated", r.Total, r.Total)
	}
	return fmt.Sprintf("Allocation Incomplete: %d/%d participants allocated", r.Allocated(), r.Total)
}

// Resolution returns the outcome for one participant.
func (r *Report) Resolution(participant string) (Resolution, bool) {
	for _, res := range r.Participants {
		if res.Participant == participant {
			return res, true
		}
	}
	return Resolution{}, false
}
