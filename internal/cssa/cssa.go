// Package cssa breaks phi semantics into explicit copies, placing the
// IR in Conventional SSA: every phi input becomes a freshly inserted
// single-use Copy in its predecessor, and every phi's result is
// immediately copied so the phi's own definition point is disjoint
// from its inputs. This is the enabling invariant that lets register
// allocation coalesce a phi and its inputs onto one slot safely.
package cssa

import (
	"github.com/pirlower/pirlower/internal/pir"
	"github.com/pkg/errors"
)

// Construct rewrites code in place. It must run exactly once, before
// liveness and allocation; nothing downstream mutates the IR again.
func Construct(code *pir.Code) error {
	for _, b := range code.Blocks {
		for _, instr := range leadingPhis(b) {
			if err := convertPhi(code, b, instr); err != nil {
				return errors.Wrapf(err, "cssa: block %d", b.ID)
			}
		}
	}
	return nil
}

// leadingPhis returns b's phi instructions; phis are always grouped at
// the head of a block by construction, matching the "first k
// Instructions of block B are phis" precondition stack pre-coloring's
// phi-at-entry rule relies on.

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

func convertPhi(code *pir.Code, b *pir.BB, phi *pir.Instruction) error {
	if len(phi.Args) != len(b.Preds) {
		return errors.Errorf("phi %d has %d inputs but block has %d predecessors", phi.ValueID(), len(phi.Args), len(b.Preds))
	}

	// Step 1 & 2: insert a Copy c_i := v_i in each predecessor, placed
	// before its terminator, and retarget the phi's i-th input to c_i.
	for i, pred := range b.Preds {
		v := phi.Args[i]
		if !v.Allocatable() {
			// Constants and env sentinels are materialized inline; no
			// copy is needed to keep them non-interfering.
			continue
		}
		if cp, already := v.(*pir.Instruction); already && cp.Tag == pir.OpCopy && cp.BB() == pred {
			// Idempotence: re-running CSSA on an already-conventional
			// phi must not insert a second layer of copies.
			continue
		}
		cp := pir.NewInstruction(code.NewValueID(), pir.OpCopy, phi.Typ, []pir.Value{v})
		pred.InsertBeforeTerminator(cp)
		phi.Args[i] = cp
	}

	// Step 3: insert p' := p immediately after p, and rewrite all other
	// uses of p to p'.
	if alreadyHasOutputCopy(b, phi) {
		return nil
	}
	out := pir.NewInstruction(code.NewValueID(), pir.OpCopy, phi.Typ, []pir.Value{phi})
	b.InsertAfter(phi, out)
	phi.ReplaceUsesWith(code, out)
	// ReplaceUsesWith just rewrote out's own argument (phi -> out); undo
	// that one self-reference.
	out.Args[0] = phi
	return nil
}

// alreadyHasOutputCopy reports whether phi's result is already copied
// by the very next instruction — the idempotence check for re-running
// CSSA on already-conventional IR: running Construct twice must be a no-op.
func alreadyHasOutputCopy(b *pir.BB, phi *pir.Instruction) bool {
	for n, instr := range b.Instrs {
		if instr == phi {
			if n+1 < len(b.Instrs) {
				next := b.Instrs[n+1]
				return next.Tag == pir.OpCopy && len(next.Args) == 1 && next.Args[0] == pir.Value(phi)
			}
			return false
		}
	}
	return false
}
