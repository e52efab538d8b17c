// Package pirtest provides a fluent fixture builder for pir.Code
// graphs, generalized from go-code/scc_test.go's named-block DSL
// (c.Fun("entry", Bloc("entry", Valu(...), Goto("1")), ...)) to this
// package's Go-typed (not op-string) instruction constructors, so every
// other package's tests can build small functions by hand without
// repeating pir's low-level Append/InsertAfter bookkeeping.
package pirtest

import "github.com/pirlower/pirlower/internal/pir"

// Builder assembles a pir.Code one named block at a time. Block names
// exist only inside the builder — the finished pir.Code knows nothing
// about them, matching go-code/scc_test.go's Bloc/Goto DSL where block
// labels are a test-only convenience over the real *Block pointers.
type Builder struct {
	Code   *pir.Code
	blocks map[string]*pir.BB
}

func NewBuilder() *Builder {
	return &Builder{Code: pir.NewCode(), blocks: make(map[string]*pir.BB)}
}

// Bloc declares a new block named name. The first block declared
// becomes the function's entry, mirroring c.Fun's first-argument-is-
// entry-name convention.
func (b *Builder) Bloc(name string) *pir.BB {
	bb := b.Code.NewBB()
	b.blocks[name] = bb
	if b.Code.Entry == nil {
		b.Code.Entry = bb
	}
	return bb
}

// B looks up a previously declared block by name.
func (b *Builder) B(name string) *pir.BB { return b.blocks[name] }

// Val appends a non-terminator instruction to bb and returns it.
func (b *Builder) Val(bb *pir.BB, tag pir.Opcode, typ pir.RType, args ...pir.Value) *pir.Instruction {
	instr := pir.NewInstruction(b.Code.NewValueID(), tag, typ, args)
	bb.Append(instr)
	return instr
}

// ValEnv is Val for an instruction that reads the environment: envArg
// is recorded at EnvArgIdx 0 and prepended to args.
func (b *Builder) ValEnv(bb *pir.BB, tag pir.Opcode, typ pir.RType, env pir.Value, args ...pir.Value) *pir.Instruction {
	full := append([]pir.Value{env}, args...)
	instr := pir.NewInstruction(b.Code.NewValueID(), tag, typ, full)
	instr.EnvArgIdx = 0
	bb.Append(instr)
	return instr
}

// Imm appends an immediate-carrying instruction (LdArg/LdVar/StVar/
// MkFunCls/MkArg/CallBuiltin) with no Value arguments of its own beyond
// any env operand folded in separately by the caller.
func (b *Builder) Imm(bb *pir.BB, tag pir.Opcode, typ pir.RType, imm int, sym string, args ...pir.Value) *pir.Instruction {
	instr := pir.NewInstruction(b.Code.NewValueID(), tag, typ, args)
	instr.Imm = imm
	instr.Sym = sym
	bb.Append(instr)
	return instr
}

// Phi appends a phi to bb. args must be given in the same order as the
// block's eventual Preds (set later by Finish's ComputePreds call), per
// pir's "Args[i] along Preds[i]" convention.
func (b *Builder) Phi(bb *pir.BB, typ pir.RType, args ...pir.Value) *pir.Instruction {
	instr := pir.NewInstruction(b.Code.NewValueID(), pir.OpPhi, typ, args)
	bb.Append(instr)
	return instr
}

// Goto terminates bb with an unconditional edge to target.
func (b *Builder) Goto(bb *pir.BB, target string) {
	bb.Next0 = b.blocks[target]
	instr := pir.NewInstruction(b.Code.NewValueID(), pir.OpGoto, pir.RVoid, nil)
	bb.Append(instr)
}

// Branch terminates bb with a conditional edge: cond is the predicate
// Value, taken/notTaken name the Next1/Next0 targets respectively
// (Next0 is the fallthrough/false edge, the convention stack
// pre-coloring's phi-at-entry rule relies on).
func (b *Builder) Branch(bb *pir.BB, cond pir.Value, notTaken, taken string) {
	bb.Next0 = b.blocks[notTaken]
	bb.Next1 = b.blocks[taken]
	instr := pir.NewInstruction(b.Code.NewValueID(), pir.OpBranch, pir.RVoid, []pir.Value{cond})
	bb.Append(instr)
}

// Return terminates bb with a return of the given env/args.
func (b *Builder) Return(bb *pir.BB, env pir.Value, args ...pir.Value) {
	full := append([]pir.Value{env}, args...)
	instr := pir.NewInstruction(b.Code.NewValueID(), pir.OpReturn, pir.RVoid, full)
	instr.EnvArgIdx = 0
	bb.Append(instr)
}

// Deopt terminates bb with a deopt trap over the given operands.
func (b *Builder) Deopt(bb *pir.BB, args ...pir.Value) {
	instr := pir.NewInstruction(b.Code.NewValueID(), pir.OpDeopt, pir.RVoid, args)
	bb.Append(instr)
}

// Const returns a materialized constant Value, never itself allocated
// a slot.
func (b *Builder) Const(typ pir.RType, val any) *pir.Const {
	return pir.NewConst(b.Code.NewValueID(), typ, val)
}

// Env returns a fresh "not yet closed" environment sentinel.
func (b *Builder) Env() *pir.EnvSentinel {
	return pir.NewEnvSentinel(b.Code.NewValueID())
}

// Finish recomputes Preds from the wired Next0/Next1 edges and returns
// the finished graph, ready for cssa.Construct.
func (b *Builder) Finish() *pir.Code {
	b.Code.ComputePreds()
	return b.Code
}
