package cfg

import (
	"github.com/pirlower/pirlower/internal/pir"
	"golang.org/x/exp/slices"
)

// Loop is a single reducible loop: a header block plus every block in
// its body. Grounded on go-code/likelyadjust.go's loop/loopnest pair
// (Bourdoncle's algorithm), simplified to one Loop per looping SCC:
// Depth is always 1 and Parent is never set, so nested loops are not
// told apart from the loop that encloses them.
type Loop struct {
	Header *pir.BB
	Blocks []*pir.BB
	Depth  int
	Parent *Loop
}

// Loopnest is the per-function loop-nest summary: which loops exist,
// which loop owns each block, and whether an irreducible SCC was seen.
// Liveness analysis does not consult it.
type Loopnest struct {
	B2L            []*Loop // block id -> innermost containing loop, nil if none
	Loops          []*Loop
	HasIrreducible bool
}

// ComputeLoopnest partitions code's blocks into SCCs and turns every
// non-trivial, single-entry SCC into a Loop. An SCC with more than one
// block that has more than one block reachable directly from outside
// the SCC is treated as irreducible — the same conservative check
// go-code/likelyadjust.go's sccAlternatingOrders/IsReducible pairing
// makes before building a Loop for it.
func ComputeLoopnest(code *pir.Code) *Loopnest {
	b2l := make([]*Loop, code.NumBlocks())
	var loops []*Loop
	hasIrreducible := false

	for _, scc := range SCCs(code) {
		if !IsLoop(scc) {
			continue
		}
		header, ok := findHeader(scc)
		if !ok {
			hasIrreducible = true
			continue
		}
		// SCCs' returned slice is owned by its own internal queue backing
		// array; clone it the way go-code/regalloc.go clones its own
		// loop-block slices before handing them out, so later SCC calls
		// can't alias this Loop's Blocks.
		loop := &Loop{Header: header, Blocks: slices.Clone(scc), Depth: 1}
		loops = append(loops, loop)
		for _, b := range scc {
			b2l[b.ID] = loop
		}
	}
	return &Loopnest{B2L: b2l, Loops: loops, HasIrreducible: hasIrreducible}
}

// findHeader returns the single block in scc reached from outside scc,
// or ok=false if more than one such block exists (irreducible).
func findHeader(scc []*pir.BB) (*pir.BB, bool) {
	inSCC := make(map[pir.ID]bool, len(scc))
	for _, b := range scc {
		inSCC[b.ID] = true
	}
	var header *pir.BB
	for _, b := range scc {
		for _, p := range b.Preds {
			if !inSCC[p.ID] {
				if header != nil && header != b {
					return nil, false
				}
				header = b
			}
		}
	}
	if header == nil {
		// no external predecessor found (e.g. the scc containing only
		// the unreachable-from-outside header at function entry); take
		// the first block deterministically.
		header = scc[0]
	}
	return header, true
}
