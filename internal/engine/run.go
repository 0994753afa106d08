package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/exchange"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/preference"
	"github.com/mmr-tortoise/allotment/internal/report"
	"github.com/mmr-tortoise/allotment/internal/telemetry"
)

// Option configures a Run.
type Option func(r *Run)

// WithOptimizer replaces the standard exchange optimizer.
func WithOptimizer(o *exchange.Optimizer) Option {
	return func(r *Run) { r.optimizer = o }
}

// WithClock sets the clock used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(r *Run) { r.now = now }
}

// WithIDGenerator sets the function that names each execution.
func WithIDGenerator(newID func() string) Option {
	return func(r *Run) { r.newID = newID }
}

// Run is the context object of an allocation. It owns the capacity table,
// the preference store and the unresolved set for as long as it executes;
// nothing else may mutate them meanwhile. A Run is not safe for concurrent
// use but may be executed any number of times.
type Run struct {
	options      *capacity.Table
	participants *preference.Store
	optimizer    *exchange.Optimizer
	now          func() time.Time
	newID        func() string

	id         string
	phase      Phase
	trail      []Phase
	unresolved []preference.Snapshot
	rescues    []exchange.Effect
}

// NewRun creates a Run over an imported capacity table and preference
// store. The store must already hold its pristine snapshot.
func NewRun(options *capacity.Table, participants *preference.Store, opts ...Option) *Run {
	r := &Run{
		options:      options,
		participants: participants,
		optimizer:    exchange.NewOptimizer(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the identifier of the latest execution.
func (r *Run) ID() string {
	return r.id
}

// Phase returns the current phase.
func (r *Run) Phase() Phase {
	return r.phase
}

// Trail returns the phases the latest execution passed through.
func (r *Run) Trail() []Phase {
	return append([]Phase(nil), r.trail...)
}

// Unresolved returns the ids in the unresolved set, in entry order.
func (r *Run) Unresolved() []string {
	ids := make([]string, 0, len(r.unresolved))
	for _, u := range r.unresolved {
		ids = append(ids, u.ID)
	}
	return ids
}

// Execute runs every phase with the given capacities and returns the
// report. Options absent from capacities get capacity 0; keys that name no
// option and negative values are errors. The violation marker always keeps
// capacity 0.
//
// Execute first resets all state (occupancy to 0, preferences to the
// pristine snapshot), so repeated calls with identical capacities yield
// identical outcomes. A structural error aborts only this execution.
func (r *Run) Execute(ctx context.Context, capacities map[string]int) (rep *report.Report, err error) {
	ctx, span := telemetry.StartSpan(ctx, "allocation.run")
	defer func() { span.End(err) }()

	if err := r.reset(capacities); err != nil {
		return nil, err
	}
	span.WithAttributes(map[string]string{"run.id": r.id}).SetInt("participants", r.participants.Len())

	if err := r.checkReferences(); err != nil {
		return nil, err
	}

	steps := []struct {
		phase Phase
		run   func(context.Context, *telemetry.Span) error
	}{
		{PhaseFirstPass, r.firstPass},
		{PhaseSecondPass, r.secondPass},
		{PhaseOptimize1, r.optimizeOnce},
		{PhaseThirdPass, r.thirdPass},
		{PhaseFinalOptimize, r.finalOptimize},
	}
	for _, step := range steps {
		// Step 1: Skip straight to the summary once nobody is left.
		if r.phase >= PhaseSecondPass && len(r.unresolved) == 0 {
			break
		}
		if err := r.transition(step.phase); err != nil {
			return nil, err
		}

		// Step 2: Run the phase inside its own span.
		phaseCtx, phaseSpan := telemetry.StartSpan(ctx, step.phase.String())
		err := step.run(phaseCtx, phaseSpan)
		phaseSpan.SetInt("unresolved", len(r.unresolved))
		phaseSpan.End(err)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.phase, err)
		}
	}

	if err := r.transition(PhaseSummarized); err != nil {
		return nil, err
	}

	rep = report.Summarize(report.Input{
		RunID:        r.id,
		GeneratedAt:  r.now(),
		Options:      r.options,
		Participants: r.participants,
		Rescues:      r.rescues,
		Phases:       r.phaseNames(),
	})
	span.SetInt("unresolved", rep.UnresolvedCount())
	return rep, nil
}

// reset restores pristine preferences, applies capacities and clears the
// per-execution state.
func (r *Run) reset(capacities map[string]int) error {
	if err := r.participants.ResetFromPristine(); err != nil {
		return err
	}

	for _, o := range r.options.Options() {
		if err := r.options.SetCapacity(o.ID, 0); err != nil {
			return err
		}
	}

	// Sorted so the first reported error does not depend on map order.
	keys := make([]string, 0, len(capacities))
	for k := range capacities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.options.SetCapacity(k, capacities[k]); err != nil {
			return err
		}
	}
	if r.options.Has(model.ViolationOption) {
		if err := r.options.SetCapacity(model.ViolationOption, 0); err != nil {
			return err
		}
	}

	r.id = r.newID()
	r.phase = PhaseInit
	r.trail = []Phase{PhaseInit}
	r.unresolved = nil
	r.rescues = nil
	return nil
}

// checkReferences verifies that every preference names a registered option.
func (r *Run) checkReferences() error {
	for _, p := range r.participants.Participants() {
		for _, choice := range p.Choices {
			if !r.options.Has(choice) {
				return &model.UnknownOptionError{Option: choice, Participant: p.ID}
			}
		}
	}
	return nil
}

func (r *Run) transition(next Phase) error {
	if !r.phase.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.phase, next)
	}
	r.phase = next
	r.trail = append(r.trail, next)
	return nil
}

func (r *Run) phaseNames() []string {
	names := make([]string, 0, len(r.trail))
	for _, p := range r.trail {
		names = append(names, p.String())
	}
	return names
}

func (r *Run) state() exchange.State {
	return exchange.State{Options: r.options, Participants: r.participants}
}

// firstPass tries everyone's 1st choice in store order.
func (r *Run) firstPass(_ context.Context, span *telemetry.Span) error {
	placed := 0
	for _, p := range r.participants.Participants() {
		if !r.options.TryAllocate(p.Choices.At(model.RankFirst)) {
			continue
		}
		if err := r.participants.Assign(p.ID, model.RankFirst); err != nil {
			return err
		}
		placed++
	}
	span.SetInt("placed", placed)
	return nil
}

// secondPass tries the 2nd choice of everyone untagged. Failures enter the
// unresolved set as frozen snapshots.
func (r *Run) secondPass(_ context.Context, span *telemetry.Span) error {
	placed := 0
	for _, id := range r.participants.Untagged() {
		p, _ := r.participants.Participant(id)
		if r.options.TryAllocate(p.Choices.At(model.RankSecond)) {
			if err := r.participants.Assign(id, model.RankSecond); err != nil {
				return err
			}
			placed++
			continue
		}
		snap, _ := r.participants.Snapshot(id)
		r.unresolved = append(r.unresolved, snap)
	}
	span.SetInt("placed", placed)
	return nil
}

// optimizeOnce sweeps the rotation rules once over the unresolved set.
func (r *Run) optimizeOnce(_ context.Context, span *telemetry.Span) error {
	return r.sweep(span, r.optimizer.Rotate)
}

// thirdPass tries the 3rd choice of everyone still unresolved.
func (r *Run) thirdPass(_ context.Context, span *telemetry.Span) error {
	remaining := r.unresolved[:0]
	placed := 0
	for _, u := range r.unresolved {
		if !r.options.TryAllocate(u.Choices.At(model.RankThird)) {
			remaining = append(remaining, u)
			continue
		}
		if err := r.participants.Assign(u.ID, model.RankThird); err != nil {
			return err
		}
		placed++
	}
	r.unresolved = remaining
	span.SetInt("placed", placed)
	return nil
}

// finalOptimize tries rounds 1 through 5 for each unresolved participant.
func (r *Run) finalOptimize(_ context.Context, span *telemetry.Span) error {
	return r.sweep(span, r.optimizer.Rescue)
}

// sweep applies try to every unresolved participant once, in entry order,
// removing those it resolves.
func (r *Run) sweep(span *telemetry.Span, try func(preference.Snapshot, exchange.State) (exchange.Effect, bool, error)) error {
	remaining := r.unresolved[:0]
	for _, u := range r.unresolved {
		effect, ok, err := try(u, r.state())
		if err != nil {
			return err
		}
		if !ok {
			remaining = append(remaining, u)
			continue
		}
		r.rescues = append(r.rescues, effect)
		span.AddEvent("rescue", map[string]string{
			"rule":        effect.Rule,
			"round":       strconv.Itoa(effect.Round),
			"participant": u.ID,
		})
	}
	r.unresolved = remaining
	return nil
}
