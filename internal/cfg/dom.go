// Package cfg provides predecessor/successor lookups, postorder,
// immediate-dominator computation, strongly-connected-component
// partitioning, and loop-nest discovery over a pir.Code graph. It is
// grounded on go-code/dom.go, scc.go, and likelyadjust.go: the same
// single-pass reverse-postorder construction and iterative dominator
// intersection, adapted from *ssa.Block to *pir.BB.
package cfg

import "github.com/pirlower/pirlower/internal/pir"

// Predecessors returns b's predecessor blocks.
func Predecessors(b *pir.BB) []*pir.BB { return b.Preds }

// Successors returns b's successor blocks (zero, one, or two).
func Successors(b *pir.BB) []*pir.BB { return b.Successors() }

// Exits returns code's blocks with no successor.
func Exits(code *pir.Code) []*pir.BB { return code.Exits() }

// Postorder computes a reverse-postorder-friendly DFS postordering of
// code's reachable blocks, matching go-code/dom.go's postorder.
func Postorder(code *pir.Code) []*pir.BB {
	return postorderFrom(code, code.Entry, nil)
}

type blockAndIndex struct {
	b     *pir.BB
	index int
}

// postorderFrom runs a DFS from entry, visiting successors in order,
// and returns blocks in postorder. If ponums is non-nil it is filled in
// with each visited block's postorder number, indexed by block id —
// this mirrors poWithNumberingForValidBlocks in go-code/dom.go.
func postorderFrom(code *pir.Code, entry *pir.BB, ponums []int) []*pir.BB {
	seen := make([]bool, code.NumBlocks())
	order := make([]*pir.BB, 0, len(code.Blocks))

	stack := make([]blockAndIndex, 0, 32)
	stack = append(stack, blockAndIndex{b: entry})
	seen[entry.ID] = true
	for len(stack) > 0 {
		tos := len(stack) - 1
		x := stack[tos]
		succs := x.b.Successors()
		if x.index < len(succs) {
			stack[tos].index++
			nb := succs[x.index]
			if !seen[nb.ID] {
				seen[nb.ID] = true
				stack = append(stack, blockAndIndex{b: nb})
			}
			continue
		}
		stack = stack[:tos]
		if ponums != nil {
			ponums[x.b.ID] = len(order)
		}
		order = append(order, x.b)
	}
	return order
}

// IsPredecessor reports whether a can reach b along forward edges — a
// transitive reachability test used by liveness to decide whether a
// phi-input accumulator should propagate to a given predecessor.
func IsPredecessor(a, b *pir.BB) bool {
	if a == b {
		return true
	}
	seen := map[pir.ID]bool{a.ID: true}
	stack := []*pir.BB{a}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range cur.Successors() {
			if s == b {
				return true
			}
			if !seen[s.ID] {
				seen[s.ID] = true
				stack = append(stack, s)
			}
		}
	}
	return false
}

// Dominators computes the immediate dominator of every reachable block
// in code, keyed by block id, using the standard iterative
// Cooper-Harvey-Kennedy algorithm over a reverse-postorder numbering —
// the same algorithm go-code/dom.go's intersect helper implements one
// step of.
type Dominators struct {
	idom    []*pir.BB // by block id; nil for entry and unreachable blocks
	postnum []int     // by block id
}

func ComputeDominators(code *pir.Code) *Dominators {
	ponums := make([]int, code.NumBlocks())
	po := postorderFrom(code, code.Entry, ponums)

	idom := make([]*pir.BB, code.NumBlocks())
	idom[code.Entry.ID] = code.Entry

	changed := true
	for changed {
		changed = false
		// reverse postorder: walk po backwards, skip entry.
		for i := len(po) - 1; i >= 0; i-- {
			b := po[i]
			if b == code.Entry {
				continue
			}
			var newIdom *pir.BB
			for _, p := range b.Preds {
				if idom[p.ID] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, ponums, idom)
			}
			if newIdom != nil && idom[b.ID] != newIdom {
				idom[b.ID] = newIdom
				changed = true
			}
		}
	}
	return &Dominators{idom: idom, postnum: ponums}
}

func intersect(b, c *pir.BB, postnum []int, idom []*pir.BB) *pir.BB {
	for b != c {
		for postnum[b.ID] < postnum[c.ID] {
			b = idom[b.ID]
		}
		for postnum[c.ID] < postnum[b.ID] {
			c = idom[c.ID]
		}
	}
	return b
}

// ImmediateDominator returns b's immediate dominator, or nil if b is
// unreachable or is the entry block.
func (d *Dominators) ImmediateDominator(b *pir.BB) *pir.BB {
	idom := d.idom[b.ID]
	if idom == b {
		return nil
	}
	return idom
}

// Preorder returns every reachable block in dominator-tree preorder —
// the visit order register allocation walks in.
func (d *Dominators) Preorder(code *pir.Code) []*pir.BB {
	children := make(map[pir.ID][]*pir.BB)
	for _, b := range code.Blocks {
		if b == code.Entry {
			continue
		}
		idom := d.idom[b.ID]
		if idom == nil {
			continue // unreachable
		}
		children[idom.ID] = append(children[idom.ID], b)
	}
	var out []*pir.BB
	var visit func(b *pir.BB)
	visit = func(b *pir.BB) {
		out = append(out, b)
		for _, c := range children[b.ID] {
			visit(c)
		}
	}
	visit(code.Entry)
	return out
}
