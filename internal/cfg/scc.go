package cfg

import "github.com/pirlower/pirlower/internal/pir"

// SCCs computes the strongly connected components of code's reachable
// blocks via Kosaraju-Sharir, exactly the two-pass construction in
// go-code/scc.go: a postorder DFS on forward edges, then a BFS over
// reversed edges in reverse postorder. go-code/scc.go expresses this as
// an iter.Seq (Go 1.23 range-over-func); this module targets go 1.22,
// so it is kept as a plain slice-returning function instead (see
// DESIGN.md).
//
// The first SCC contains only the entry block. Block order within an
// SCC is unspecified. A single-block SCC with no self-edge is a trivial
// (non-loop) component.
func SCCs(code *pir.Code) [][]*pir.BB {
	po := Postorder(code)

	reachable := make([]bool, code.NumBlocks())
	for _, b := range po {
		reachable[b.ID] = true
	}

	seen := make([]bool, code.NumBlocks())
	var result [][]*pir.BB
	queue := make([]*pir.BB, 0, len(po))

	for i := len(po) - 1; i >= 0; i-- {
		leader := po[i]
		if seen[leader.ID] {
			continue
		}
		scc := make([]*pir.BB, 0, 4)
		queue = append(queue[:0], leader)
		seen[leader.ID] = true
		for len(queue) > 0 {
			b := queue[0]
			queue = queue[1:]
			scc = append(scc, b)
			for _, pred := range b.Preds {
				if reachable[pred.ID] && !seen[pred.ID] {
					seen[pred.ID] = true
					queue = append(queue, pred)
				}
			}
		}
		result = append(result, scc)
	}
	return result
}

// IsLoop reports whether scc is a non-trivial loop: more than one
// block, or a single block with a self-edge.
func IsLoop(scc []*pir.BB) bool {
	if len(scc) > 1 {
		return true
	}
	if len(scc) == 1 {
		b := scc[0]
		for _, s := range b.Successors() {
			if s == b {
				return true
			}
		}
	}
	return false
}
