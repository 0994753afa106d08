package roster

import (
	"sort"
	"strings"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/preference"
)

// Roster is the result of importing preferences: the populated store and
// capacity table plus what the import changed along the way.
type Roster struct {
	Store *preference.Store
	Table *capacity.Table

	// Renames lists participant ids disambiguated with a "_2" suffix.
	Renames []preference.Rename

	// Merges lists option spellings folded into an earlier spelling.
	Merges []capacity.Merge

	// Violations is the number of participants with a repeated preference.
	Violations int
}

// Import runs the import lifecycle over validated rows. Aliases, when
// non-empty, shorten option names first (see ApplyAliases). The returned
// roster holds its pristine snapshot and is ready for engine.NewRun.
func Import(rows []model.PreferenceRow, aliases map[string]string) (*Roster, error) {
	if len(aliases) > 0 {
		rows = ApplyAliases(rows, aliases)
		// A short name may spell the reserved marker.
		if errs := model.ValidateRows(rows); len(errs) > 0 {
			return nil, errs[0]
		}
	}

	store := preference.NewStore()
	renames, err := store.Load(rows)
	if err != nil {
		return nil, err
	}
	violations := store.MarkViolations()

	table := capacity.NewTable()
	for _, choice := range store.Choices() {
		table.Register(choice)
	}
	merges := table.NormalizeDuplicates()
	store.Canonicalize(table.Resolve)
	store.SnapshotPristine()

	return &Roster{
		Store:      store,
		Table:      table,
		Renames:    renames,
		Merges:     merges,
		Violations: violations,
	}, nil
}

// ApplyAliases replaces every preference whose case-folded text contains an
// alias keyword with that keyword's short name. Longer keywords are tried
// first, ties broken alphabetically, so the mapping does not depend on map
// order. The input slice is not modified.
func ApplyAliases(rows []model.PreferenceRow, aliases map[string]string) []model.PreferenceRow {
	keywords := make([]string, 0, len(aliases))
	for k := range aliases {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if len(keywords[i]) != len(keywords[j]) {
			return len(keywords[i]) > len(keywords[j])
		}
		return keywords[i] < keywords[j]
	})

	out := make([]model.PreferenceRow, len(rows))
	for i, row := range rows {
		for slot, choice := range row.Choices {
			folded := strings.ToLower(strings.TrimSpace(choice))
			for _, keyword := range keywords {
				if strings.Contains(folded, strings.ToLower(strings.TrimSpace(keyword))) {
					row.Choices[slot] = aliases[keyword]
					break
				}
			}
		}
		out[i] = row
	}
	return out
}
