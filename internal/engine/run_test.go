package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/preference"
	"github.com/mmr-tortoise/allotment/internal/report"
)

func row(name, first, second, third string) model.PreferenceRow {
	return model.PreferenceRow{Participant: name, Choices: model.Choices{first, second, third}}
}

// prepare imports rows the way the roster does: load, mark violations,
// register options, merge duplicates, canonicalize and snapshot.
func prepare(t *testing.T, rows ...model.PreferenceRow) (*capacity.Table, *preference.Store) {
	t.Helper()
	store := preference.NewStore()
	_, err := store.Load(rows)
	require.NoError(t, err)
	store.MarkViolations()

	table := capacity.NewTable()
	for _, choice := range store.Choices() {
		table.Register(choice)
	}
	table.NormalizeDuplicates()
	store.Canonicalize(table.Resolve)
	store.SnapshotPristine()
	return table, store
}

func execute(t *testing.T, caps map[string]int, rows ...model.PreferenceRow) (*Run, *report.Report) {
	t.Helper()
	run := NewRun(prepare(t, rows...))
	rep, err := run.Execute(context.Background(), caps)
	require.NoError(t, err)
	return run, rep
}

func allocation(t *testing.T, rep *report.Report, id string) report.Resolution {
	t.Helper()
	res, ok := rep.Resolution(id)
	require.True(t, ok, "no resolution for %s", id)
	return res
}

// assertInvariants checks conservation and occupancy against tags.
func assertInvariants(t *testing.T, rep *report.Report) {
	t.Helper()
	assert.Equal(t, rep.Total, rep.Tally.Sum()+len(rep.Unresolved), "conservation")

	held := make(map[string]int)
	for _, res := range rep.Participants {
		if res.Allocated() {
			held[res.Allocation]++
		}
	}
	for _, o := range rep.Options {
		assert.LessOrEqual(t, o.Occupancy, o.Capacity, "capacity of %s", o.ID)
		assert.Equal(t, held[o.ID], o.Occupancy, "occupancy of %s", o.ID)
	}
}

// TestExecute_SecondChoiceFallback: Math is full on P2's attempt, so P2
// falls back to its 2nd choice and the run exits early.
func TestExecute_SecondChoiceFallback(t *testing.T) {
	run, rep := execute(t, map[string]int{"Math": 1, "Art": 1, "Bio": 1},
		row("P1", "Math", "Art", "Bio"),
		row("P2", "Math", "Bio", "Art"),
	)

	assert.Equal(t, "Math", allocation(t, rep, "P1").Allocation)
	assert.Equal(t, "1st", allocation(t, rep, "P1").Rank)
	assert.Equal(t, "Bio", allocation(t, rep, "P2").Allocation)
	assert.Equal(t, "2nd", allocation(t, rep, "P2").Rank)
	assert.Empty(t, rep.Unresolved)
	assert.True(t, rep.Complete())

	assert.Equal(t, []string{"INIT", "FIRST_PASS", "SECOND_PASS", "SUMMARIZED"}, rep.Phases)
	assert.Equal(t, PhaseSummarized, run.Phase())
	assertInvariants(t, rep)
}

// TestExecute_TallyIsOrderIndependent: who gets the shared 1st choice
// depends on input order, the tally does not.
func TestExecute_TallyIsOrderIndependent(t *testing.T) {
	caps := map[string]int{"Math": 1, "Art": 1, "Bio": 1}
	a := row("A", "Math", "Art", "Chem")
	b := row("B", "Math", "Bio", "Chem")

	_, forward := execute(t, caps, a, b)
	_, backward := execute(t, caps, b, a)

	expected := report.Tally{First: 1, Second: 1}
	assert.Equal(t, expected, forward.Tally)
	assert.Equal(t, expected, backward.Tally)
	assert.Empty(t, forward.Unresolved)
	assert.Empty(t, backward.Unresolved)

	assert.Equal(t, "Math", allocation(t, forward, "A").Allocation)
	assert.Equal(t, "Math", allocation(t, backward, "B").Allocation)
}

// TestExecute_Idempotent: executing twice on the same import with the same
// capacities gives the same outcome under a fresh run id.
func TestExecute_Idempotent(t *testing.T) {
	table, store := prepare(t,
		row("U", "Math", "Art", "Chem"),
		row("D", "Art", "Bio", "Geo"),
		row("E", "Math", "Geo", "Bio"),
		row("F", "Art", "Math", "Chem"),
	)
	n := 0
	run := NewRun(table, store,
		WithIDGenerator(func() string { n++; return fmt.Sprintf("run-%d", n) }),
		WithClock(func() time.Time { return time.Unix(0, 0).UTC() }),
	)
	caps := map[string]int{"Math": 1, "Art": 1, "Bio": 1, "Geo": 1}

	first, err := run.Execute(context.Background(), caps)
	require.NoError(t, err)
	second, err := run.Execute(context.Background(), caps)
	require.NoError(t, err)

	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "run-2", second.RunID)
	second.RunID = first.RunID
	assert.Equal(t, first, second)
}

// TestExecute_CapacityChangeBetweenRuns: a second execution with other
// capacities starts from pristine state, not from the first outcome.
func TestExecute_CapacityChangeBetweenRuns(t *testing.T) {
	run := NewRun(prepare(t,
		row("P1", "Math", "Art", "Bio"),
		row("P2", "Math", "Art", "Bio"),
	))

	small, err := run.Execute(context.Background(), map[string]int{"Math": 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"P2"}, small.Unresolved)

	large, err := run.Execute(context.Background(), map[string]int{"Math": 2})
	require.NoError(t, err)
	assert.Equal(t, report.Tally{First: 2}, large.Tally)
	assertInvariants(t, large)
}

// TestExecute_RoundOnePreferred: the unresolved participant is eligible for
// algo 11 (round 1) and algo 12 (round 3); round 1 must resolve it.
func TestExecute_RoundOnePreferred(t *testing.T) {
	run, rep := execute(t, map[string]int{"Art": 1, "Bio": 1, "Geo": 1},
		row("D", "Art", "Bio", "Geo"),
		row("U", "Math", "Art", "Chem"),
	)

	require.Len(t, rep.Rescues, 1)
	assert.Equal(t, "algo-11", rep.Rescues[0].Rule)
	assert.Equal(t, 1, rep.Rescues[0].Round)
	assert.Equal(t, "Art", allocation(t, rep, "U").Allocation)
	assert.Equal(t, "2nd", allocation(t, rep, "U").Rank)
	assert.Equal(t, "Bio", allocation(t, rep, "D").Allocation)
	assert.Empty(t, run.Unresolved())

	assert.Equal(t, []string{
		"INIT", "FIRST_PASS", "SECOND_PASS", "OPTIMIZE_1", "THIRD_PASS", "FINAL_OPTIMIZE", "SUMMARIZED",
	}, rep.Phases)
	assertInvariants(t, rep)
}

// TestExecute_RotationRescue: OPTIMIZE_1 demotes a 1st-choice holder to
// free the slot before the third pass runs.
func TestExecute_RotationRescue(t *testing.T) {
	_, rep := execute(t, map[string]int{"Math": 1, "Art": 1},
		row("D", "Math", "Art", "Bio"),
		row("U", "Math", "Bio", "Art"),
	)

	require.Len(t, rep.Rescues, 1)
	assert.Equal(t, "algo-1", rep.Rescues[0].Rule)
	assert.Equal(t, 0, rep.Rescues[0].Round)
	assert.Equal(t, "Math", allocation(t, rep, "U").Allocation)
	assert.Equal(t, "Art", allocation(t, rep, "D").Allocation)
	assert.Equal(t, []string{"INIT", "FIRST_PASS", "SECOND_PASS", "OPTIMIZE_1", "SUMMARIZED"}, rep.Phases)
}

// TestExecute_ThirdChoiceBeforeExchange: a free 3rd choice is taken
// directly, without any exchange.
func TestExecute_ThirdChoiceBeforeExchange(t *testing.T) {
	_, rep := execute(t, map[string]int{"Math": 1, "Art": 1, "Bio": 1},
		row("D", "Math", "Art", "Geo"),
		row("E", "Art", "Math", "Geo"),
		row("U", "Math", "Art", "Bio"),
	)

	assert.Empty(t, rep.Rescues)
	assert.Equal(t, "3rd", allocation(t, rep, "U").Rank)
	assert.Equal(t, []string{"INIT", "FIRST_PASS", "SECOND_PASS", "OPTIMIZE_1", "THIRD_PASS", "SUMMARIZED"}, rep.Phases)
}

// TestExecute_AllSameChoices: [A, A, A] becomes [A, VIOLATION, VIOLATION]
// and can only ever receive A.
func TestExecute_AllSameChoices(t *testing.T) {
	t.Run("rescued into A", func(t *testing.T) {
		_, rep := execute(t, map[string]int{"A": 1, "B": 1, "C": 1},
			row("P1", "A", "B", "C"),
			row("P2", "A", "A", "A"),
		)
		p2 := allocation(t, rep, "P2")
		assert.Equal(t, model.Choices{"A", model.ViolationOption, model.ViolationOption}, p2.Choices)
		assert.Equal(t, "A", p2.Allocation)
		assertInvariants(t, rep)
	})

	t.Run("left unresolved", func(t *testing.T) {
		_, rep := execute(t, map[string]int{"A": 1, model.ViolationOption: 5},
			row("P1", "A", "B", "C"),
			row("P2", "A", "A", "A"),
		)
		assert.Equal(t, model.NoChoice, allocation(t, rep, "P2").Allocation)
		assert.Equal(t, []string{"P2"}, rep.Unresolved)
		assert.Len(t, rep.Phases, 7)

		for _, o := range rep.Options {
			if o.ID == model.ViolationOption {
				assert.Equal(t, 0, o.Capacity, "violation marker keeps capacity 0")
			}
		}
		assertInvariants(t, rep)
	})
}

// TestExecute_DuplicateOptionSpellings: "math " and "Math" are one option.
func TestExecute_DuplicateOptionSpellings(t *testing.T) {
	_, rep := execute(t, map[string]int{"Math": 2, "Art": 1},
		row("P1", "Math", "Art", "Bio"),
		row("P2", "math ", "Art", "Bio"),
	)
	assert.Equal(t, "Math", allocation(t, rep, "P2").Allocation)
	assert.Equal(t, report.Tally{First: 2}, rep.Tally)
}

// TestExecute_OptionNamedLikeViolationMarker: a real "Violation" option
// keeps its places and stays distinct from the marker in P2's repeated slot.
func TestExecute_OptionNamedLikeViolationMarker(t *testing.T) {
	run, rep := execute(t, map[string]int{"Violation": 3, "A": 1, "B": 1},
		row("P1", "Violation", "A", "B"),
		row("P2", "A", "A", "B"),
		row("P3", "Violation", "B", "A"),
	)

	p2 := allocation(t, rep, "P2")
	assert.Equal(t, model.Choices{"A", model.ViolationOption, "B"}, p2.Choices)
	assert.Equal(t, "A", p2.Allocation)
	assert.Equal(t, "Violation", allocation(t, rep, "P1").Allocation)
	assert.Equal(t, "Violation", allocation(t, rep, "P3").Allocation)
	assert.Equal(t, report.Tally{First: 3}, rep.Tally)
	assertInvariants(t, rep)

	violation, ok := run.options.Option("Violation")
	require.True(t, ok)
	assert.Equal(t, 3, violation.Capacity)
	marker, ok := run.options.Option(model.ViolationOption)
	require.True(t, ok)
	assert.Equal(t, 0, marker.Capacity)
}

// TestExecute_Conservation runs generated inputs and checks the
// invariants that must hold for every run.
func TestExecute_Conservation(t *testing.T) {
	options := []string{"Math", "Art", "Bio", "Chem", "Geo", "Music"}
	rng := rand.New(rand.NewPCG(7, 11))

	for seed := 0; seed < 25; seed++ {
		t.Run(fmt.Sprintf("case-%d", seed), func(t *testing.T) {
			var rows []model.PreferenceRow
			for i := 0; i < 30; i++ {
				rows = append(rows, row(fmt.Sprintf("P%02d", i),
					options[rng.IntN(len(options))],
					options[rng.IntN(len(options))],
					options[rng.IntN(len(options))],
				))
			}
			caps := make(map[string]int)
			for _, o := range options {
				caps[o] = rng.IntN(8)
			}
			table, store := prepare(t, rows...)
			for id := range caps {
				if !table.Has(id) {
					delete(caps, id)
				}
			}

			rep, err := NewRun(table, store).Execute(context.Background(), caps)
			require.NoError(t, err)
			assert.Equal(t, len(rows), rep.Total)
			assertInvariants(t, rep)
			for _, res := range rep.Participants {
				assert.NotEqual(t, model.ViolationOption, res.Allocation)
			}
		})
	}
}

// TestExecute_Errors covers the structural errors that abort a run.
func TestExecute_Errors(t *testing.T) {
	t.Run("unknown capacity key", func(t *testing.T) {
		run := NewRun(prepare(t, row("P1", "Math", "Art", "Bio")))
		_, err := run.Execute(context.Background(), map[string]int{"Drama": 1})
		var unknown *model.UnknownOptionError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "Drama", unknown.Option)
	})

	t.Run("negative capacity", func(t *testing.T) {
		run := NewRun(prepare(t, row("P1", "Math", "Art", "Bio")))
		_, err := run.Execute(context.Background(), map[string]int{"Math": -1})
		assert.ErrorIs(t, err, capacity.ErrNegativeCapacity)
	})

	t.Run("preference names an unregistered option", func(t *testing.T) {
		store := preference.NewStore()
		_, err := store.Load([]model.PreferenceRow{row("P1", "Math", "Art", "Bio")})
		require.NoError(t, err)
		store.SnapshotPristine()
		table := capacity.NewTable()
		table.Register("Math")
		table.Register("Art")

		_, err = NewRun(table, store).Execute(context.Background(), nil)
		var unknown *model.UnknownOptionError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "Bio", unknown.Option)
		assert.Equal(t, "P1", unknown.Participant)
	})

	t.Run("no pristine snapshot", func(t *testing.T) {
		store := preference.NewStore()
		_, err := NewRun(capacity.NewTable(), store).Execute(context.Background(), nil)
		assert.ErrorIs(t, err, preference.ErrNoPristineSnapshot)
	})
}
