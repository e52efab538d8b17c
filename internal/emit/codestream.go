package emit

import "github.com/pkg/errors"

// Label is a jump target. It is created with MkLabel and bound to a
// position with PlaceLabel; finalize fails with an unresolved-target
// diagnostic if any referenced label was never placed — every bytecode
// jump target must resolve to a defined label.
type Label struct {
	pos     int
	defined bool
}

// Instr is one finalized bytecode instruction: an opcode plus an
// immediate operand list. A BrFalse/Br instruction's single operand is
// filled in at finalize time from its Label's resolved position.
type Instr struct {
	Op   BC
	Imm  []int
	Str  string // opcode-specific string payload (e.g. CallBuiltin's name)
	Targ *Label // jump target, nil for non-jump ops
}

// CodeStream is the bytecode sink: mkLabel(), one method per opcode,
// addSrcIdx(i), and finalize(isDefaultArg, localsCnt) -> index. It is
// bound to a Writer (internal/rt) by NewCodeStream and hands its
// finalized code object back to that writer on Finalize.
type CodeStream struct {
	w        Writer
	instrs   []*Instr
	srcSides map[int]int // instruction index -> source-pool index
}

// Writer is the subset of internal/rt.Writer a CodeStream needs
// to intern itself. Declared here (rather than importing internal/rt
// directly) to avoid a cyclic import between emit and rt.
type Writer interface {
	Intern(code *FinalizedCode) int
}

// FinalizedCode is one fully-resolved code stream: a function body or a
// promise body, ready for the Writer to patch into its final byte
// layout.
type FinalizedCode struct {
	Instrs       []*Instr
	LocalsCount  int
	IsDefaultArg bool
	SrcSidelist  map[int]int
}

func NewCodeStream(w Writer) *CodeStream {
	return &CodeStream{w: w, srcSides: make(map[int]int)}
}

func (cs *CodeStream) MkLabel() *Label { return &Label{} }

// PlaceLabel binds l to the current instruction position — called when
// the emitter starts a new (non-empty) basic block.
func (cs *CodeStream) PlaceLabel(l *Label) {
	l.pos = len(cs.instrs)
	l.defined = true
}

func (cs *CodeStream) emit(i *Instr) *CodeStream {
	cs.instrs = append(cs.instrs, i)
	return cs
}

func (cs *CodeStream) LoadLocal(slot int) *CodeStream  { return cs.emit(&Instr{Op: BCLoadLocal, Imm: []int{slot}}) }
func (cs *CodeStream) StoreLocal(slot int) *CodeStream { return cs.emit(&Instr{Op: BCStoreLocal, Imm: []int{slot}}) }
func (cs *CodeStream) Pop() *CodeStream                { return cs.emit(&Instr{Op: BCPop}) }
func (cs *CodeStream) PushConst(constIdx int) *CodeStream {
	return cs.emit(&Instr{Op: BCPushConst, Imm: []int{constIdx}})
}
func (cs *CodeStream) LdArg(idx int) *CodeStream   { return cs.emit(&Instr{Op: BCLdArg, Imm: []int{idx}}) }
func (cs *CodeStream) SetEnv() *CodeStream         { return cs.emit(&Instr{Op: BCSetEnv}) }
func (cs *CodeStream) ParentEnv() *CodeStream      { return cs.emit(&Instr{Op: BCParentEnv}) }
func (cs *CodeStream) Add() *CodeStream            { return cs.emit(&Instr{Op: BCAdd}) }
func (cs *CodeStream) Sub() *CodeStream            { return cs.emit(&Instr{Op: BCSub}) }
func (cs *CodeStream) Mul() *CodeStream            { return cs.emit(&Instr{Op: BCMul}) }
func (cs *CodeStream) Lt() *CodeStream             { return cs.emit(&Instr{Op: BCLt}) }
func (cs *CodeStream) Eq() *CodeStream             { return cs.emit(&Instr{Op: BCEq}) }
func (cs *CodeStream) Index() *CodeStream          { return cs.emit(&Instr{Op: BCIndex}) }
func (cs *CodeStream) StoreIndex() *CodeStream     { return cs.emit(&Instr{Op: BCStoreIndex}) }
func (cs *CodeStream) MkEnv() *CodeStream          { return cs.emit(&Instr{Op: BCMkEnv}) }
func (cs *CodeStream) MkFunCls(codeIdx int) *CodeStream {
	return cs.emit(&Instr{Op: BCMkFunCls, Imm: []int{codeIdx}})
}
func (cs *CodeStream) MakePromise(codeIdx int) *CodeStream {
	return cs.emit(&Instr{Op: BCMakePromise, Imm: []int{codeIdx}})
}
func (cs *CodeStream) CallBuiltin(name string) *CodeStream {
	return cs.emit(&Instr{Op: BCCallBuiltin, Str: name})
}
func (cs *CodeStream) BrFalse(target *Label) *CodeStream {
	return cs.emit(&Instr{Op: BCBrFalse, Targ: target})
}
func (cs *CodeStream) Br(target *Label) *CodeStream { return cs.emit(&Instr{Op: BCBr, Targ: target}) }
func (cs *CodeStream) Ret() *CodeStream             { return cs.emit(&Instr{Op: BCRet}) }
func (cs *CodeStream) Trap() *CodeStream            { return cs.emit(&Instr{Op: BCTrap}) }

// AddSrcIdx attaches the given source-pool index to the immediately
// preceding bytecode, attaching it via a source sidelist.
func (cs *CodeStream) AddSrcIdx(i int) {
	if len(cs.instrs) == 0 {
		return
	}
	cs.srcSides[len(cs.instrs)-1] = i
}

// Finalize resolves every jump target, checks every Label referenced
// was placed, and hands the finished stream to the owning Writer,
// returning its index.
func (cs *CodeStream) Finalize(isDefaultArg bool, localsCnt int) (int, error) {
	for n, instr := range cs.instrs {
		if instr.Targ == nil {
			continue
		}
		if !instr.Targ.defined {
			return 0, errors.Errorf("codestream: instruction %d (%s) targets an unresolved label", n, instr.Op)
		}
		instr.Imm = []int{instr.Targ.pos}
	}
	fc := &FinalizedCode{
		Instrs:       cs.instrs,
		LocalsCount:  localsCnt,
		IsDefaultArg: isDefaultArg,
		SrcSidelist:  cs.srcSides,
	}
	return cs.w.Intern(fc), nil
}
