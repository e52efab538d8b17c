package emit

import (
	"github.com/pirlower/pirlower/internal/alloc"
	"github.com/pirlower/pirlower/internal/diag"
	"github.com/pirlower/pirlower/internal/pir"
)

// opcodeTable maps every dispatchable PIR opcode to its bytecode
// equivalent. Phi and Copy are deliberately absent: a phi emits nothing
// (a phi-at-entry premise is that its value already flows through stack or
// register storage from its predecessors) and a Copy is realized purely
// by its argument-load/result-store steps, with no dispatched opcode in
// between.
var opcodeTable = map[pir.Opcode]BC{
	pir.OpAdd:        BCAdd,
	pir.OpSub:        BCSub,
	pir.OpMul:        BCMul,
	pir.OpLt:         BCLt,
	pir.OpEq:         BCEq,
	pir.OpIndex:      BCIndex,
	pir.OpStoreIndex: BCStoreIndex,
	pir.OpMkEnv:      BCMkEnv,
	pir.OpSetEnv:     BCSetEnv,
	pir.OpParentEnv:  BCParentEnv,
}

// emitImm emits the opcodes whose bytecode carries an immediate
// from Instruction.Imm/Sym rather than purely from loaded Values:
// LdArg's argument index, LdVar/StVar's source-variable slot,
// MkFunCls/MkArg's nested-code index (patched in by internal/rt after
// the nested body is lowered), and CallBuiltin's symbol name.
func (e *emitter) emitImm(instr *pir.Instruction) {
	switch instr.Tag {
	case pir.OpLdArg:
		e.cs.LdArg(instr.Imm)
	case pir.OpLdVar:
		e.cs.LoadLocal(instr.Imm)
	case pir.OpStVar:
		e.cs.StoreLocal(instr.Imm)
	case pir.OpMkFunCls:
		e.cs.MkFunCls(instr.Imm)
	case pir.OpMkArg:
		e.cs.MakePromise(instr.Imm)
	case pir.OpCallBuiltin:
		e.cs.CallBuiltin(instr.Sym)
	}
}

// sourceAttached is the set of opcodes whose emitted bytecode gets the
// instruction's source-pool index attached via AddSrcIdx
// ("For arithmetic and indexing opcodes, attach ... via a source
// sidelist").
var sourceAttached = map[pir.Opcode]bool{
	pir.OpAdd: true, pir.OpSub: true, pir.OpMul: true,
	pir.OpLt: true, pir.OpEq: true,
	pir.OpIndex: true, pir.OpStoreIndex: true,
}

// chaseEmpty follows Next0 through zero-instruction blocks until it
// finds a non-empty one, per the empty-block skip.
func chaseEmpty(b *pir.BB) *pir.BB {
	for len(b.Instrs) == 0 && b.Next0 != nil {
		b = b.Next0
	}
	return b
}

// bfsOrder returns code's reachable blocks in breadth-first order,
// starting from the entry block, the block order emission follows.
func bfsOrder(code *pir.Code) []*pir.BB {
	seen := make([]bool, code.NumBlocks())
	var order []*pir.BB
	queue := []*pir.BB{code.Entry}
	seen[code.Entry.ID] = true
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		order = append(order, b)
		for _, s := range b.Successors() {
			if !seen[s.ID] {
				seen[s.ID] = true
				queue = append(queue, s)
			}
		}
	}
	return order
}

type emitter struct {
	m      *alloc.Map
	cs     *CodeStream
	cp     *ConstPool
	labels map[pir.ID]*Label
}

// Emit walks code's blocks breadth-first and emits bytecode,
// finalizing the stream through w with isDefaultArg=false. EmitAs takes
// the flag from its caller; nested bodies lowered through internal/rt
// also reach emission through Emit, so they are finalized with
// isDefaultArg=false as well.
func Emit(code *pir.Code, m *alloc.Map, w Writer) (int, error) {
	return EmitAs(code, m, w, false)
}

func EmitAs(code *pir.Code, m *alloc.Map, w Writer, isDefaultArg bool) (int, error) {
	cs := NewCodeStream(w)
	e := &emitter{m: m, cs: cs, cp: NewConstPool(), labels: make(map[pir.ID]*Label)}

	order := bfsOrder(code)
	for _, b := range order {
		e.labels[b.ID] = cs.MkLabel()
	}

	var currentEnv pir.Value
	var err error
	for _, b := range order {
		if len(b.Instrs) == 0 {
			continue // label never placed or targeted, nothing emitted (empty-block skip)
		}
		cs.PlaceLabel(e.labels[b.ID])
		for _, instr := range b.Instrs {
			if currentEnv, err = e.emitInstr(instr, currentEnv); err != nil {
				return 0, err
			}
		}
	}

	return cs.Finalize(isDefaultArg, m.MaxSlot()+1)
}

func (e *emitter) labelFor(b *pir.BB) *Label {
	target := chaseEmpty(b)
	return e.labels[target.ID]
}

func (e *emitter) emitInstr(instr *pir.Instruction, currentEnv pir.Value) (pir.Value, error) {
	switch instr.Tag {
	case pir.OpPhi:
		return currentEnv, nil // nothing emitted; see opcodeTable doc comment
	case pir.OpGoto:
		e.cs.Br(e.labelFor(instr.BB().Next0))
		return currentEnv, nil
	case pir.OpBranch:
		e.cs.BrFalse(e.labelFor(instr.BB().Next0))
		e.cs.Br(e.labelFor(instr.BB().Next1))
		return currentEnv, nil
	case pir.OpReturn:
		currentEnv = e.loadEnvAndArgs(instr, currentEnv)
		e.cs.Ret()
		return currentEnv, nil
	case pir.OpDeopt:
		// Pop each operand in forward order, emit a
		// trap sequence, then ret.
		instr.EachArg(func(v pir.Value) {
			e.loadValue(v)
		})
		for range instr.Args {
			e.cs.Pop()
		}
		e.cs.Trap()
		e.cs.Ret()
		return currentEnv, nil
	}

	currentEnv = e.loadEnvAndArgs(instr, currentEnv)

	if instr.Tag != pir.OpCopy {
		switch instr.Tag {
		case pir.OpLdArg, pir.OpLdVar, pir.OpStVar, pir.OpMkFunCls, pir.OpMkArg, pir.OpCallBuiltin:
			e.emitImm(instr)
		default:
			bc, ok := opcodeTable[instr.Tag]
			if !ok {
				return currentEnv, diag.IRMalformed(int(instr.ValueID()), instr.Tag.String(), "no emission rule for this opcode")
			}
			e.cs.emit(&Instr{Op: bc})
		}
		if sourceAttached[instr.Tag] && instr.SrcIdx >= 0 {
			e.cs.AddSrcIdx(instr.SrcIdx)
		}
	}

	e.handleResult(instr)
	return currentEnv, nil
}

// loadEnvAndArgs implements the per-instruction argument-loading step.
func (e *emitter) loadEnvAndArgs(instr *pir.Instruction, currentEnv pir.Value) pir.Value {
	readsEnv := instr.HasEnv() && instr.Tag != pir.OpMkEnv && instr.Tag != pir.OpDeopt
	if readsEnv {
		envVal := instr.Env()
		if envVal != currentEnv {
			e.loadValue(envVal)
			e.cs.SetEnv()
			currentEnv = envVal
		} else if slot, ok := e.m.Get(envVal); ok && slot.IsStack() {
			e.cs.Pop()
		}
	}
	instr.EachArg(func(v pir.Value) {
		if readsEnv && v == instr.Env() {
			return
		}
		e.loadValue(v)
	})
	return currentEnv
}

func (e *emitter) loadValue(v pir.Value) {
	switch val := v.(type) {
	case *pir.Const:
		e.cs.PushConst(e.cp.Intern(val))
	case *pir.EnvSentinel:
		e.cs.ParentEnv()
	default:
		slot, ok := e.m.Get(v)
		if !ok || slot.IsStack() {
			return // dead (shouldn't be read) or already on the stack
		}
		e.cs.LoadLocal(int(slot))
	}
}

func (e *emitter) handleResult(instr *pir.Instruction) {
	if instr.Typ == pir.RVoid {
		return
	}
	slot, ok := e.m.Get(instr)
	if !ok {
		e.cs.Pop()
		return
	}
	if slot.IsStack() {
		return
	}
	e.cs.StoreLocal(int(slot))
}
