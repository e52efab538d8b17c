package alloc

import (
	"log"

	"github.com/pirlower/pirlower/internal/cfg"
	"github.com/pirlower/pirlower/internal/liveness"
	"github.com/pirlower/pirlower/internal/pir"
)

// state tracks, per non-stack slot, which Values currently occupy it —
// the bookkeeping the interference tests in both allocation phases
// consult before handing out a slot.
type state struct {
	lv     *liveness.Liveness
	m      *Map
	bySlot map[Slot][]pir.Value
}

func (s *state) usable(slot Slot, v pir.Value) bool {
	for _, occ := range s.bySlot[slot] {
		if occ.ValueID() == v.ValueID() {
			continue
		}
		if s.lv.Interferes(occ, v) {
			return false
		}
	}
	return true
}

func (s *state) assign(slot Slot, v pir.Value) {
	s.m.Set(v, slot)
	s.bySlot[slot] = append(s.bySlot[slot], v)
}

// firstAvailable scans local slots starting at 1 (slot 0 is the
// reserved unassigned sentinel) and returns the first usable for every value in vs.
func (s *state) firstAvailable(vs ...pir.Value) Slot {
	for cand := Slot(1); ; cand++ {
		ok := true
		for _, v := range vs {
			if !s.usable(cand, v) {
				ok = false
				break
			}
		}
		if ok {
			return cand
		}
	}
}

// RegisterAllocate runs both allocation phases over every Value the
// stack pass left unassigned. logger, if non-nil, receives a one-line
// summary with the highest slot assigned (internal/compile passes one
// under the DebugAllocator flag).
func RegisterAllocate(code *pir.Code, lv *liveness.Liveness, m *Map, logger *log.Logger) {
	s := &state{lv: lv, m: m, bySlot: make(map[Slot][]pir.Value)}

	// register already-STACK values in bySlot book-keeping is unnecessary
	// since Stack isn't a local slot; only local-slot assignments need
	// interference tracking.

	phiCoalesce(code, s)

	dom := cfg.ComputeDominators(code)
	for _, b := range dom.Preorder(code) {
		for _, instr := range b.Instrs {
			if instr.IsPhi() {
				continue // handled by phiCoalesce
			}
			allocateOne(instr, s)
			// also place any not-yet-placed argument that the stack
			// pass forced into a local but never actually colored
			// (producers of forced values are handled when we reach
			// their own definition below; uses here don't need a slot).
		}
	}

	// Any remaining forced-local or otherwise-live Value that never got
	// visited above (e.g. a CSSA copy whose producer position wasn't
	// walked because it sits only in a predecessor's tail) still needs a
	// slot; sweep once more defensively.
	for _, b := range code.Blocks {
		for _, instr := range b.Instrs {
			allocateOne(instr, s)
		}
	}

	if logger != nil {
		logger.Printf("register allocation complete: maxSlot=%d", m.MaxSlot())
	}
}

// allocateOne assigns instr a local slot if it is allocatable, live
// (has a liveness record), not already colored STACK, and not already
// assigned.
func allocateOne(instr *pir.Instruction, s *state) {
	if !instr.Allocatable() {
		return
	}
	if _, already := s.m.Get(instr); already {
		return
	}
	if !isLive(instr, s.lv) {
		return
	}
	hint, hasHint := hintFor(instr, s)
	if hasHint && s.usable(hint, instr) {
		s.assign(hint, instr)
		return
	}
	s.assign(s.firstAvailable(instr), instr)
}

// hintFor implements the move-reducing hint: if instr's first
// argument already has a non-stack slot, prefer it.
func hintFor(instr *pir.Instruction, s *state) (Slot, bool) {
	if instr.NArgs() == 0 {
		return 0, false
	}
	first := instr.Arg(0)
	slot, ok := s.m.Get(first)
	if !ok || slot.IsStack() || slot == Unassigned {
		return 0, false
	}
	return slot, true
}

// isLive reports whether v has any liveness record at all (is used or
// defined live somewhere) — the guard an unassigned Value must pass
// before the allocator will place it.
func isLive(v pir.Value, lv *liveness.Liveness) bool {
	return lv.HasAnyRecord(v)
}

// phiCoalesce coalesces phi inputs: for each phi not already colored
// STACK, find the smallest local slot free for the phi and every one
// of its (non-stack) inputs, and assign them all to it. CSSA guarantees
// these inputs do not interfere with each other at the phi's merge
// point, so only interference against already-occupied slots matters.
func phiCoalesce(code *pir.Code, s *state) {
	for _, b := range code.Blocks {
		for _, instr := range b.Instrs {
			if !instr.IsPhi() {
				continue
			}
			if _, already := s.m.Get(instr); already {
				continue
			}
			group := []pir.Value{instr}
			for _, in := range instr.Args {
				if in.Allocatable() {
					if slot, ok := s.m.Get(in); ok && slot.IsStack() {
						continue
					}
					group = append(group, in)
				}
			}
			slot := s.firstAvailable(group...)
			for _, v := range group {
				s.assign(slot, v)
			}
		}
	}
}
