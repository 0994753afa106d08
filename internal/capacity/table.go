package capacity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmr-tortoise/allotment/internal/model"
)

// ErrNegativeCapacity is returned by SetCapacity for values below zero.
var ErrNegativeCapacity = errors.New("capacity must not be negative")

// Option is a read-only view of one capacity-limited option.
type Option struct {
	// ID is the display spelling of the option.
	ID string `json:"option" yaml:"option"`

	// Capacity is the admin-supplied number of places.
	Capacity int `json:"capacity" yaml:"capacity"`

	// Occupancy is the number of places taken in the current run.
	Occupancy int `json:"occupancy" yaml:"occupancy"`
}

// Spare returns the number of free places. It is always computed from the
// live counters, never cached.
func (o Option) Spare() int {
	return o.Capacity - o.Occupancy
}

// Merge records one spelling that NormalizeDuplicates folded into another.
type Merge struct {
	// Kept is the surviving (first-seen) spelling.
	Kept string `json:"kept" yaml:"kept"`

	// Dropped is the spelling that became an alias of Kept.
	Dropped string `json:"dropped" yaml:"dropped"`
}

// Table tracks per-option capacity and current occupancy.
//
// Options are kept in registration order so that listings and capacity
// templates are stable across runs. A Table is not safe for concurrent
// use; the allocation engine is single-threaded and owns its Table for the
// duration of a run.
type Table struct {
	// order holds option ids in the order they were first registered.
	order []string

	// options maps a registered id to its counters.
	options map[string]*Option

	// aliases maps a dropped spelling to the id it was merged into.
	// Lookups resolve through this map so either spelling works.
	aliases map[string]string
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		options: make(map[string]*Option),
		aliases: make(map[string]string),
	}
}

// NormalizeKey returns the comparison key for an option identifier:
// surrounding whitespace trimmed and letters case-folded.
func NormalizeKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Register adds an option with capacity 0 and occupancy 0 if it is not
// already known (directly or as an alias). It reports whether the option
// was added.
func (t *Table) Register(id string) bool {
	if _, ok := t.Resolve(id); ok {
		return false
	}
	t.options[id] = &Option{ID: id}
	t.order = append(t.order, id)
	return true
}

// Resolve maps an identifier (or a merged-away alias) to the registered id.
func (t *Table) Resolve(id string) (string, bool) {
	if _, ok := t.options[id]; ok {
		return id, true
	}
	if target, ok := t.aliases[id]; ok {
		return target, true
	}
	return "", false
}

// Has reports whether the identifier resolves to a registered option.
func (t *Table) Has(id string) bool {
	_, ok := t.Resolve(id)
	return ok
}

// SetCapacity overwrites the capacity of an option and resets its occupancy
// to 0. It is called once per option before each allocation run.
func (t *Table) SetCapacity(id string, value int) error {
	if value < 0 {
		return fmt.Errorf("option %q: %w (got %d)", id, ErrNegativeCapacity, value)
	}
	opt, ok := t.lookup(id)
	if !ok {
		return &model.UnknownOptionError{Option: id}
	}
	opt.Capacity = value
	opt.Occupancy = 0
	return nil
}

// TryAllocate takes one place in the option if any is free.
// It returns false when the option is full or unknown; a full option is the
// expected outcome of a "try", not an error.
func (t *Table) TryAllocate(id string) bool {
	opt, ok := t.lookup(id)
	if !ok || opt.Occupancy >= opt.Capacity {
		return false
	}
	opt.Occupancy++
	return true
}

// HasSpare reports whether capacity(id) - occupancy(id) > 0.
// Unknown options never have spare capacity.
func (t *Table) HasSpare(id string) bool {
	opt, ok := t.lookup(id)
	return ok && opt.Spare() > 0
}

// Option returns a copy of the counters for an option.
func (t *Table) Option(id string) (Option, bool) {
	opt, ok := t.lookup(id)
	if !ok {
		return Option{}, false
	}
	return *opt, true
}

// Options returns copies of all registered options in registration order.
// Aliases are not listed separately.
func (t *Table) Options() []Option {
	out := make([]Option, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.options[id])
	}
	return out
}

// Len returns the number of registered options.
func (t *Table) Len() int {
	return len(t.order)
}

// ResetOccupancy sets every option's occupancy back to 0 while keeping
// capacities.
func (t *Table) ResetOccupancy() {
	for _, opt := range t.options {
		opt.Occupancy = 0
	}
}

// NormalizeDuplicates merges options whose identifiers are equal after
// trimming and case-folding.
//
// The first-registered spelling survives, together with its capacity; every
// later spelling is removed from the table and recorded as an alias so
// existing references keep resolving. Merges are returned in registration
// order of the dropped spelling. model.ViolationOption never takes part in
// a merge, so an option such as "Violation" stays distinct from it.
func (t *Table) NormalizeDuplicates() []Merge {
	var merges []Merge
	firstByKey := make(map[string]string, len(t.order))
	kept := make([]string, 0, len(t.order))

	for _, id := range t.order {
		if id == model.ViolationOption {
			kept = append(kept, id)
			continue
		}
		key := NormalizeKey(id)
		survivor, seen := firstByKey[key]
		if !seen {
			firstByKey[key] = id
			kept = append(kept, id)
			continue
		}
		delete(t.options, id)
		t.aliases[id] = survivor
		merges = append(merges, Merge{Kept: survivor, Dropped: id})
	}

	t.order = kept
	return merges
}

// lookup resolves an identifier to its live counters.
func (t *Table) lookup(id string) (*Option, bool) {
	resolved, ok := t.Resolve(id)
	if !ok {
		return nil, false
	}
	return t.options[resolved], true
}
