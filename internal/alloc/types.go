// Package alloc implements the two-tier storage allocator: a peephole
// stack-coloring pass, then a dominance-ordered eager register
// allocator for whatever the stack pass left behind. It is grounded on
// go-code/regalloc.go and go-code/regalloc_scc.go — the desired-
// register hinting in particular is the direct model for this
// package's move-reducing hint.
package alloc

import (
	"github.com/pirlower/pirlower/internal/pir"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Slot is either the STACK sentinel or a positive local-slot number.
// Slot 0 is reserved as the "unassigned" sentinel and is never itself
// handed out by either allocator phase.
type Slot int

const (
	// Unassigned marks a Value the allocator has not yet placed. It is
	// never present in a finished Map.
	Unassigned Slot = 0
	// Stack is the sentinel meaning "lives on the evaluation stack".
	// Kept distinct from Unassigned — see SPEC_FULL.md §C.
	Stack Slot = -1
)

func (s Slot) IsStack() bool { return s == Stack }

// Map is the partial mapping Value → SlotNumber. Absence of a key
// means the Value is dead and its result is popped at emission time.
type Map struct {
	slots map[pir.ID]Slot
	// forced records Values the in-block stack window provisionally
	// pushed but later discarded. The window never colors such a Value
	// STACK, so register allocation gives it a local slot (if live) and
	// the emitter stores it at its producer like any other local;
	// neither pass reads this set.
	forced map[pir.ID]bool
}

func NewMap() *Map {
	return &Map{slots: make(map[pir.ID]Slot), forced: make(map[pir.ID]bool)}
}

func (m *Map) Set(v pir.Value, s Slot) { m.slots[v.ValueID()] = s }

// Get returns v's slot and whether it has one at all (false => dead).
func (m *Map) Get(v pir.Value) (Slot, bool) {
	s, ok := m.slots[v.ValueID()]
	return s, ok
}

func (m *Map) MarkForced(v pir.Value) { m.forced[v.ValueID()] = true }
func (m *Map) IsForced(v pir.Value) bool { return m.forced[v.ValueID()] }

// MaxSlot returns the highest local slot number assigned, or 0 if only
// STACK/no slots were assigned. localsCnt passed to CodeStream.finalize
// is MaxSlot()+1, to account for slot 0's reservation.
func (m *Map) MaxSlot() int {
	max := 0
	for _, s := range m.slots {
		if int(s) > max {
			max = int(s)
		}
	}
	return max
}

// Each calls f for every (id, slot) pair currently recorded.
func (m *Map) Each(f func(id pir.ID, s Slot)) {
	for id, s := range m.slots {
		f(id, s)
	}
}

// EachSorted is Each but visits ids in ascending order, for debug dumps
// that must be reproducible across runs (Go map iteration order isn't).
func (m *Map) EachSorted(f func(id pir.ID, s Slot)) {
	ids := maps.Keys(m.slots)
	slices.Sort(ids)
	for _, id := range ids {
		f(id, m.slots[id])
	}
}
