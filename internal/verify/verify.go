// Package verify implements a symbolic simulator over the allocated
// IR: it walks every reachable (from,to) block edge at most once,
// tracking a register file and an evaluation stack, and asserts that
// every operand read observes the Value the emitter committed to that
// slot or stack position. There is no teacher analog for this
// component (the Go SSA backend targets a register machine, not a
// stack-plus-locals bytecode, so it never needs this post-allocation
// sanity pass); it follows go-code's general style of hard-failing
// on invariant violations (go-code/dom.go's Fatalf-on-bad-input
// pattern, generalized to this package's typed diagnostics).
package verify

import (
	"github.com/pirlower/pirlower/internal/alloc"
	"github.com/pirlower/pirlower/internal/diag"
	"github.com/pirlower/pirlower/internal/pir"
)

type simState struct {
	regs  map[alloc.Slot]pir.Value
	stack []pir.Value
}

func newSimState() simState {
	return simState{regs: make(map[alloc.Slot]pir.Value)}
}

func (s simState) clone() simState {
	regs := make(map[alloc.Slot]pir.Value, len(s.regs))
	for k, v := range s.regs {
		regs[k] = v
	}
	stack := make([]pir.Value, len(s.stack))
	copy(stack, s.stack)
	return simState{regs: regs, stack: stack}
}

// identical treats two Values as the same runtime identity if they are
// literally the same Value, or if both are coalesced onto the same
// non-stack slot — the latter is exactly what phi coalescing
// guarantees: distinct CSSA copies feeding the same phi are, by
// construction, the same value at runtime.
func identical(expected, actual pir.Value, m *alloc.Map) bool {
	if expected == actual {
		return true
	}
	se, oke := m.Get(expected)
	sa, oka := m.Get(actual)
	return oke && oka && !se.IsStack() && se == sa
}

// Run simulates every path through code given allocation map m and
// returns the first diagnostic produced, or nil if every path is
// consistent and every exit's stack is empty.
func Run(code *pir.Code, m *alloc.Map) error {
	visited := make(map[[2]pir.ID]bool)
	return walk(code.Entry, newSimState(), m, visited)
}

func walk(b *pir.BB, st simState, m *alloc.Map, visited map[[2]pir.ID]bool) error {
	for _, instr := range b.Instrs {
		if instr.IsPhi() {
			if err := simPhi(instr, &st, m); err != nil {
				return err
			}
			continue
		}
		if err := simArgs(instr, &st, m); err != nil {
			return err
		}
		simResult(instr, &st, m)
	}

	succs := b.Successors()
	if len(succs) == 0 {
		if len(st.stack) != 0 {
			return diag.StackDiscipline(int(b.ID), len(st.stack))
		}
		return nil
	}

	for _, s := range succs {
		key := [2]pir.ID{b.ID, s.ID}
		if visited[key] {
			continue
		}
		visited[key] = true
		if err := walk(s, st.clone(), m, visited); err != nil {
			return err
		}
	}
	return nil
}

func simPhi(instr *pir.Instruction, st *simState, m *alloc.Map) error {
	slot, ok := m.Get(instr)
	if !ok {
		return nil // dead phi, nothing produced
	}
	if !slot.IsStack() {
		// Non-stack phi: CSSA + coalescing guarantee the register file
		// already holds the merged value under this slot, written by
		// whichever predecessor copy ran; nothing further to simulate.
		return nil
	}
	if len(st.stack) == 0 {
		return diag.AllocationFault(int(instr.BB().ID), int(slot), instr.String(), "<empty stack>")
	}
	st.stack = st.stack[:len(st.stack)-1]
	st.stack = append(st.stack, instr)
	return nil
}

func simArgs(instr *pir.Instruction, st *simState, m *alloc.Map) error {
	var firstErr error
	instr.EachArgRev(func(v pir.Value) {
		if firstErr != nil || !v.Allocatable() {
			return
		}
		slot, ok := m.Get(v)
		if !ok {
			firstErr = diag.IRMalformed(int(v.ValueID()), "?", "argument has no allocation and is not a constant")
			return
		}
		if slot.IsStack() {
			if len(st.stack) == 0 {
				firstErr = diag.AllocationFault(int(instr.BB().ID), int(slot), v.String(), "<empty stack>")
				return
			}
			top := st.stack[len(st.stack)-1]
			st.stack = st.stack[:len(st.stack)-1]
			if !identical(v, top, m) {
				firstErr = diag.AllocationFault(int(instr.BB().ID), int(slot), v.String(), top.String())
			}
			return
		}
		actual, present := st.regs[slot]
		if !present || !identical(v, actual, m) {
			found := "<unset>"
			if present {
				found = actual.String()
			}
			firstErr = diag.AllocationFault(int(instr.BB().ID), int(slot), v.String(), found)
		}
	})
	return firstErr
}

func simResult(instr *pir.Instruction, st *simState, m *alloc.Map) {
	if instr.Typ == pir.RVoid {
		return
	}
	slot, ok := m.Get(instr)
	if !ok {
		return // dead result, popped at emission time
	}
	if slot.IsStack() {
		st.stack = append(st.stack, instr)
		return
	}
	st.regs[slot] = instr
}
