package preference

import (
	"errors"
	"fmt"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/model"
)

// duplicateSuffix is appended to the second occurrence of a participant id.
const duplicateSuffix = "_2"

// ErrNoPristineSnapshot is returned by ResetFromPristine when
// SnapshotPristine has never been called.
var ErrNoPristineSnapshot = errors.New("no pristine preference snapshot taken")

// Participant is a copy of one participant's live record.
type Participant struct {
	// ID is the unique (possibly suffixed) participant identifier.
	ID string

	// Choices are the ranked option ids after violation marking.
	Choices model.Choices

	// Tag is the resolved allocation, or nil while unresolved.
	Tag *model.Tag
}

// Holds reports whether the participant is currently tagged with the given rank.
func (p Participant) Holds(rank model.Rank) bool {
	return p.Tag != nil && p.Tag.Rank == rank
}

// Tagged reports whether the participant has an allocation tag.
func (p Participant) Tagged() bool {
	return p.Tag != nil
}

// Snapshot is a frozen copy of a participant's preferences, taken when the
// participant enters the unresolved set.
type Snapshot struct {
	ID      string
	Choices model.Choices
}

// Rename records a participant id that was disambiguated on load.
type Rename struct {
	// Original is the id as it appeared in the input.
	Original string `json:"original" yaml:"original"`

	// Assigned is the id the store uses instead.
	Assigned string `json:"assigned" yaml:"assigned"`

	// Line is the source line of the renamed row.
	Line int `json:"line" yaml:"line"`
}

// record is the store's mutable per-participant state.
type record struct {
	choices model.Choices
	tag     *model.Tag
}

// Store maps participants to their preferences and tags.
// It is not safe for concurrent use.
type Store struct {
	order    []string
	records  map[string]*record
	pristine map[string]model.Choices
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]*record)}
}

// Load appends rows to the store in order.
//
// A participant id that repeats an earlier one is stored under the id with
// "_2" appended, and the rename is reported. A third occurrence, or a
// suffixed id that itself collides, is not resolved: Load returns a
// *model.DuplicateParticipantError and leaves the store unchanged.
func (s *Store) Load(rows []model.PreferenceRow) ([]Rename, error) {
	var renames []Rename
	pending := make(map[string]bool, len(rows))
	occurrences := make(map[string]int, len(rows))
	ids := make([]string, 0, len(rows))

	taken := func(id string) bool {
		_, exists := s.records[id]
		return exists || pending[id]
	}

	for _, row := range rows {
		occurrences[row.Participant]++
		id := row.Participant
		if taken(id) {
			id = row.Participant + duplicateSuffix
			if taken(id) {
				return nil, &model.DuplicateParticipantError{
					Participant: row.Participant,
					Occurrences: occurrences[row.Participant],
				}
			}
			renames = append(renames, Rename{Original: row.Participant, Assigned: id, Line: row.Line})
		}
		pending[id] = true
		ids = append(ids, id)
	}

	for i, row := range rows {
		s.records[ids[i]] = &record{choices: row.Choices}
		s.order = append(s.order, ids[i])
	}
	return renames, nil
}

// MarkViolations replaces preference slots that repeat an earlier slot of
// the same participant with model.ViolationOption:
//
//   - all three equal: 2nd and 3rd slots marked
//   - 1st == 2nd: 2nd slot marked
//   - 1st == 3rd or 2nd == 3rd: 3rd slot marked
//
// Slots are compared with the trim/case-fold key used for option merging.
// It returns the number of participants that had at least one slot marked.
func (s *Store) MarkViolations() int {
	marked := 0
	for _, id := range s.order {
		c := &s.records[id].choices
		a, b, d := capacity.NormalizeKey(c[0]), capacity.NormalizeKey(c[1]), capacity.NormalizeKey(c[2])
		switch {
		case a == b && a == d:
			c[1], c[2] = model.ViolationOption, model.ViolationOption
		case a == b:
			c[1] = model.ViolationOption
		case a == d || b == d:
			c[2] = model.ViolationOption
		default:
			continue
		}
		marked++
	}
	return marked
}

// Choices returns every distinct option id referenced by any participant,
// in first-reference order. This drives option discovery.
func (s *Store) Choices() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range s.order {
		for _, choice := range s.records[id].choices {
			if !seen[choice] {
				seen[choice] = true
				out = append(out, choice)
			}
		}
	}
	return out
}

// Canonicalize rewrites every preference slot through resolve. It is used
// after duplicate options are merged so every slot names the surviving
// spelling. Slots for which resolve reports false are left untouched.
func (s *Store) Canonicalize(resolve func(string) (string, bool)) {
	for _, id := range s.order {
		c := &s.records[id].choices
		for i, choice := range c {
			if canonical, ok := resolve(choice); ok {
				c[i] = canonical
			}
		}
	}
}

// SnapshotPristine deep-copies the current preferences. It must be called
// once after import, before any destructive run.
func (s *Store) SnapshotPristine() {
	s.pristine = make(map[string]model.Choices, len(s.order))
	for _, id := range s.order {
		s.pristine[id] = s.records[id].choices
	}
}

// ResetFromPristine restores every participant's preferences from the
// pristine snapshot and drops all tags.
func (s *Store) ResetFromPristine() error {
	if s.pristine == nil {
		return ErrNoPristineSnapshot
	}
	for _, id := range s.order {
		rec := s.records[id]
		rec.choices = s.pristine[id]
		rec.tag = nil
	}
	return nil
}

// Len returns the number of participants.
func (s *Store) Len() int {
	return len(s.order)
}

// IDs returns participant ids in store order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Participant returns a copy of one participant's record.
func (s *Store) Participant(id string) (Participant, bool) {
	rec, ok := s.records[id]
	if !ok {
		return Participant{}, false
	}
	return rec.view(id), true
}

// Participants returns copies of all records in store order.
func (s *Store) Participants() []Participant {
	out := make([]Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].view(id))
	}
	return out
}

// Snapshot returns a frozen copy of a participant's current preferences.
func (s *Store) Snapshot(id string) (Snapshot, bool) {
	rec, ok := s.records[id]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{ID: id, Choices: rec.choices}, true
}

// Assign tags an untagged participant with the option at the given rank.
// Tagging an already-tagged participant is refused, which keeps at most
// one tag per participant.
func (s *Store) Assign(id string, rank model.Rank) error {
	rec, err := s.get(id, rank)
	if err != nil {
		return err
	}
	if rec.tag != nil {
		return fmt.Errorf("participant %q already holds %s", id, rec.tag)
	}
	rec.tag = &model.Tag{Rank: rank, Option: rec.choices[rank]}
	return nil
}

// Reassign relabels a tagged participant to the option at the given rank.
func (s *Store) Reassign(id string, rank model.Rank) error {
	rec, err := s.get(id, rank)
	if err != nil {
		return err
	}
	if rec.tag == nil {
		return fmt.Errorf("participant %q holds no allocation to reassign", id)
	}
	rec.tag = &model.Tag{Rank: rank, Option: rec.choices[rank]}
	return nil
}

// Untagged returns the ids of participants without a tag, in store order.
func (s *Store) Untagged() []string {
	var out []string
	for _, id := range s.order {
		if s.records[id].tag == nil {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) get(id string, rank model.Rank) (*record, error) {
	if !rank.IsValid() {
		return nil, fmt.Errorf("participant %q: invalid rank %d", id, int(rank))
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("unknown participant %q", id)
	}
	return rec, nil
}

func (r *record) view(id string) Participant {
	p := Participant{ID: id, Choices: r.choices}
	if r.tag != nil {
		tag := *r.tag
		p.Tag = &tag
	}
	return p
}
