package preference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/allotment/internal/model"
)

// row is a small constructor for PreferenceRow fixtures.
func row(name, first, second, third string) model.PreferenceRow {
	return model.PreferenceRow{Participant: name, Choices: model.Choices{first, second, third}}
}

// TestLoad_PreservesOrder verifies that participants are stored in input order.
func TestLoad_PreservesOrder(t *testing.T) {
	store := NewStore()
	renames, err := store.Load([]model.PreferenceRow{
		row("Cy", "Math", "Art", "Bio"),
		row("Ada", "Art", "Bio", "Math"),
		row("Bo", "Bio", "Math", "Art"),
	})
	require.NoError(t, err)
	assert.Empty(t, renames)
	assert.Equal(t, []string{"Cy", "Ada", "Bo"}, store.IDs())
	assert.Equal(t, 3, store.Len())
}

// TestLoad_TwoWayCollision verifies that a repeated participant id is
// disambiguated with the "_2" suffix and the rename is reported.
func TestLoad_TwoWayCollision(t *testing.T) {
	store := NewStore()
	rows := []model.PreferenceRow{
		row("Kim", "Math", "Art", "Bio"),
		row("Kim", "Art", "Bio", "Math"),
	}
	rows[1].Line = 3

	renames, err := store.Load(rows)
	require.NoError(t, err)
	assert.Equal(t, []Rename{{Original: "Kim", Assigned: "Kim_2", Line: 3}}, renames)

	p, ok := store.Participant("Kim_2")
	require.True(t, ok)
	assert.Equal(t, "Art", p.Choices.At(model.RankFirst))
}

// TestLoad_ThreeWayCollision verifies that three identical ids are flagged
// with DuplicateParticipantError instead of being resolved, and that the
// store is left untouched.
func TestLoad_ThreeWayCollision(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{
		row("Kim", "Math", "Art", "Bio"),
		row("Kim", "Art", "Bio", "Math"),
		row("Kim", "Bio", "Math", "Art"),
	})

	var dup *model.DuplicateParticipantError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "Kim", dup.Participant)
	assert.Equal(t, 3, dup.Occurrences)
	assert.Equal(t, 0, store.Len())
}

// TestMarkViolations covers each marking rule.
func TestMarkViolations(t *testing.T) {
	tests := []struct {
		name     string
		in       model.Choices
		expected model.Choices
	}{
		{"all three equal", model.Choices{"A", "A", "A"}, model.Choices{"A", model.ViolationOption, model.ViolationOption}},
		{"first equals second", model.Choices{"A", "A", "B"}, model.Choices{"A", model.ViolationOption, "B"}},
		{"first equals third", model.Choices{"A", "B", "A"}, model.Choices{"A", "B", model.ViolationOption}},
		{"second equals third", model.Choices{"A", "B", "B"}, model.Choices{"A", "B", model.ViolationOption}},
		{"case and space variants", model.Choices{"Math", " math", "Art"}, model.Choices{"Math", model.ViolationOption, "Art"}},
		{"distinct", model.Choices{"A", "B", "C"}, model.Choices{"A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			_, err := store.Load([]model.PreferenceRow{{Participant: "P", Choices: tt.in}})
			require.NoError(t, err)

			store.MarkViolations()
			p, _ := store.Participant("P")
			assert.Equal(t, tt.expected, p.Choices)
		})
	}
}

// TestMarkViolations_Count verifies the number of affected participants is reported.
func TestMarkViolations_Count(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{
		row("P1", "A", "A", "A"),
		row("P2", "A", "B", "C"),
		row("P3", "A", "B", "B"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, store.MarkViolations())
}

// TestChoices_DiscoveryOrder verifies options are discovered in first-reference order.
func TestChoices_DiscoveryOrder(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{
		row("P1", "Math", "Art", "Bio"),
		row("P2", "Chem", "Math", "Art"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Math", "Art", "Bio", "Chem"}, store.Choices())
}

// TestCanonicalize verifies that slots are rewritten to the resolved spelling.
func TestCanonicalize(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{row("P1", "math ", "Art", "Bio")})
	require.NoError(t, err)

	store.Canonicalize(func(id string) (string, bool) {
		if id == "math " {
			return "Math", true
		}
		return "", false
	})
	p, _ := store.Participant("P1")
	assert.Equal(t, model.Choices{"Math", "Art", "Bio"}, p.Choices)
}

// TestAssignAndReassign verifies the one-tag invariant: Assign refuses an
// already-tagged participant, Reassign refuses an untagged one.
func TestAssignAndReassign(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{row("P1", "Math", "Art", "Bio")})
	require.NoError(t, err)

	require.Error(t, store.Reassign("P1", model.RankSecond), "cannot reassign an untagged participant")

	require.NoError(t, store.Assign("P1", model.RankFirst))
	p, _ := store.Participant("P1")
	require.NotNil(t, p.Tag)
	assert.Equal(t, "1st CHOICE - Math", p.Tag.String())
	assert.True(t, p.Holds(model.RankFirst))

	assert.Error(t, store.Assign("P1", model.RankSecond), "second tag must be refused")

	require.NoError(t, store.Reassign("P1", model.RankThird))
	p, _ = store.Participant("P1")
	assert.Equal(t, "3rd CHOICE - Bio", p.Tag.String())

	assert.Error(t, store.Assign("nobody", model.RankFirst))
	assert.Error(t, store.Assign("P1", model.Rank(5)))
}

// TestParticipant_ReturnsCopy verifies that mutating a returned record does
// not reach the store.
func TestParticipant_ReturnsCopy(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{row("P1", "Math", "Art", "Bio")})
	require.NoError(t, err)
	require.NoError(t, store.Assign("P1", model.RankFirst))

	p, _ := store.Participant("P1")
	p.Choices[0] = "Chem"
	p.Tag.Rank = model.RankThird

	fresh, _ := store.Participant("P1")
	assert.Equal(t, "Math", fresh.Choices[0])
	assert.Equal(t, model.RankFirst, fresh.Tag.Rank)
}

// TestSnapshot_IsFrozen verifies that a snapshot taken before a reset keeps
// the values it was taken with.
func TestSnapshot_IsFrozen(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{row("P1", "Math", "Art", "Bio")})
	require.NoError(t, err)
	store.SnapshotPristine()

	snap, ok := store.Snapshot("P1")
	require.True(t, ok)

	store.Canonicalize(func(string) (string, bool) { return "Geo", true })
	assert.Equal(t, model.Choices{"Math", "Art", "Bio"}, snap.Choices)
}

// TestResetFromPristine verifies that reset restores preferences and drops tags.
func TestResetFromPristine(t *testing.T) {
	store := NewStore()
	_, err := store.Load([]model.PreferenceRow{
		row("P1", "Math", "Art", "Bio"),
		row("P2", "Art", "Math", "Bio"),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, store.ResetFromPristine(), ErrNoPristineSnapshot)

	store.SnapshotPristine()
	require.NoError(t, store.Assign("P1", model.RankFirst))
	store.Canonicalize(func(string) (string, bool) { return "Geo", true })

	require.NoError(t, store.ResetFromPristine())
	assert.Equal(t, []string{"P1", "P2"}, store.Untagged())
	p, _ := store.Participant("P1")
	assert.Equal(t, model.Choices{"Math", "Art", "Bio"}, p.Choices)
}
