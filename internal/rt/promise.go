package rt

import "github.com/pirlower/pirlower/internal/pir"

// LowerFunc lowers one PIR Code body end-to-end (CSSA, liveness,
// allocation, verification, emission) and interns it through w,
// returning its code-object index. Supplied by internal/compile to
// avoid a cyclic import between rt and compile.
type LowerFunc func(code *pir.Code, w *Writer) (int, error)

// LowerNested walks code looking for nested closure/promise bodies
// (OpMkFunCls, OpMkArg) and lowers each exactly once, caching its index
// by IR-closure identity in done, then baking the returned index into
// the instruction's Imm operand so the emitter's MkFunCls/MakePromise
// bytecode references the right code object. Recursion
// through done is bounded the same way a dispatch-table check bounds
// self-recursive compilation: if tier is already installed for cl, the
// whole walk is skipped.
func LowerNested(code *pir.Code, w *Writer, lower LowerFunc, done map[*pir.Code]int, dt *DispatchTable, cl *Closure, tier Tier) error {
	if dt != nil && cl != nil && !dt.Available(cl, tier) {
		return nil
	}
	for _, b := range code.Blocks {
		for _, instr := range b.Instrs {
			if instr.Tag != pir.OpMkFunCls && instr.Tag != pir.OpMkArg {
				continue
			}
			if instr.Nested == nil {
				continue
			}
			if idx, ok := done[instr.Nested]; ok {
				instr.Imm = idx
				continue
			}
			idx, err := lower(instr.Nested, w)
			if err != nil {
				return err
			}
			done[instr.Nested] = idx
			instr.Imm = idx
		}
	}
	return nil
}
