package alloc

import "github.com/pirlower/pirlower/internal/pir"

// blockStack is the simulated evaluation-stack deque left at the end of
// a block by the in-block window pass, bottom-to-top (last element is
// top of stack). It is what the phi-at-entry rule inspects in each
// predecessor.
type blockStack struct {
	deque []pir.Value
}

// ColorStack runs both stack pre-coloring heuristics over every
// block and returns each block's end-of-block stack state, which the
// phi-at-entry rule needs from predecessors. Results are written into m.
func ColorStack(code *pir.Code, uc *pir.UseCounts, m *Map) map[pir.ID]*blockStack {
	ends := make(map[pir.ID]*blockStack, len(code.Blocks))
	for _, b := range code.Blocks {
		ends[b.ID] = colorInBlockWindow(b, uc, m)
	}
	for _, b := range code.Blocks {
		tryPhiAtEntry(b, ends, m)
	}
	return ends
}

func leadingPhis(b *pir.BB) []*pir.Instruction {
	var out []*pir.Instruction
	for _, instr := range b.Instrs {
		if !instr.IsPhi() {
			break
		}
		out = append(out, instr)
	}
	return out
}

// colorInBlockWindow: a local deque simulates the
// stack while walking the block. Every instruction first tries to match
// its argument sequence against the top of the deque (scanning
// downward, in reverse argument order); a full match marks every
// matched argument STACK and drops everything above the deepest match,
// forcing any entry in that span that wasn't itself matched into a
// local (see DESIGN.md). Then, if the instruction itself has a
// single-use result, it is pushed.
func colorInBlockWindow(b *pir.BB, uc *pir.UseCounts, m *Map) *blockStack {
	var deque []pir.Value

	for _, instr := range b.Instrs {
		if instr.IsPhi() {
			// Phis are colored by the entry rule, not the window pass.
			continue
		}

		n := instr.NArgs()
		if n >= 1 && len(deque) >= n {
			if matchedIdx, ok := matchFromTop(deque, instr, n); ok {
				deepest := matchedIdx[len(matchedIdx)-1]
				isMatch := make(map[int]bool, n)
				for _, idx := range matchedIdx {
					isMatch[idx] = true
				}
				for idx := deepest; idx < len(deque); idx++ {
					if !isMatch[idx] {
						m.MarkForced(deque[idx])
					} else {
						m.Set(deque[idx], Stack)
					}
				}
				deque = deque[:deepest]
			}
		}

		if instr.Typ != pir.RVoid && uc.HasSingleUse(instr) {
			deque = append(deque, instr)
		}
	}

	return &blockStack{deque: deque}
}

// matchFromTop scans deque from the top downward looking for instr's n
// arguments in reverse order (top must match the last argument, the
// next entry down the second-to-last, and so on). It returns the
// matched deque indices in the order found (decreasing) and true iff
// every argument was located.
func matchFromTop(deque []pir.Value, instr *pir.Instruction, n int) ([]int, bool) {
	matched := make([]int, 0, n)
	want := n - 1
	for i := len(deque) - 1; i >= 0 && want >= 0; i-- {
		if deque[i] == instr.Arg(want) {
			matched = append(matched, i)
			want--
		}
	}
	if want >= 0 {
		return nil, false
	}
	return matched, true
}

// tryPhiAtEntry colors a phi and its inputs all STACK when safe. Every
// predecessor must connect via its fallthrough (Next0) edge — the safe
// policy documented in DESIGN.md: any conditional-target predecessor
// disqualifies the whole block, falling back to local allocation.
func tryPhiAtEntry(b *pir.BB, ends map[pir.ID]*blockStack, m *Map) {
	phis := leadingPhis(b)
	if len(phis) == 0 || len(b.Preds) == 0 {
		return
	}
	for _, pred := range b.Preds {
		if pred.Next0 != b {
			return
		}
	}

	for j, phi := range phis {
		fromTop := j + 1 // phi at position j (0-based) checks the (j+1)-th-from-top slot
		ok := true
		for pi, pred := range b.Preds {
			st := ends[pred.ID]
			idx := len(st.deque) - fromTop
			if idx < 0 || pi >= len(phi.Args) || st.deque[idx] != phi.Args[pi] {
				ok = false
				break
			}
		}
		if !ok {
			break // first failing phi stops the sweep for this block
		}
		m.Set(phi, Stack)
		for _, in := range phi.Args {
			if in.Allocatable() {
				m.Set(in, Stack)
			}
		}
	}
}
