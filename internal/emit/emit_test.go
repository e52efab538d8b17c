package emit_test

import (
	"testing"

	"github.com/pirlower/pirlower/internal/alloc"
	"github.com/pirlower/pirlower/internal/emit"
	"github.com/pirlower/pirlower/internal/pir"
	"github.com/pirlower/pirlower/internal/pirtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter satisfies emit.Writer and just remembers what was interned.
type fakeWriter struct {
	codes []*emit.FinalizedCode
}

func (w *fakeWriter) Intern(fc *emit.FinalizedCode) int {
	idx := len(w.codes)
	w.codes = append(w.codes, fc)
	return idx
}

func TestEmitStraightLineArithmetic(t *testing.T) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	a := b.Imm(entry, pir.OpLdArg, pir.RInt, 0, "")
	one := b.Const(pir.RInt, 1)
	sum := b.Val(entry, pir.OpAdd, pir.RInt, a, one)
	env := b.Env()
	b.Return(entry, env, sum)
	code := b.Finish()

	m := alloc.NewMap()
	m.Set(a, alloc.Slot(1))
	m.Set(sum, alloc.Slot(2))

	w := &fakeWriter{}
	idx, err := emit.Emit(code, m, w)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	require.Len(t, w.codes, 1)

	fc := w.codes[0]
	var ops []emit.BC
	for _, instr := range fc.Instrs {
		ops = append(ops, instr.Op)
	}
	assert.Contains(t, ops, emit.BCLdArg)
	assert.Contains(t, ops, emit.BCStoreLocal)
	assert.Contains(t, ops, emit.BCLoadLocal)
	assert.Contains(t, ops, emit.BCPushConst)
	assert.Contains(t, ops, emit.BCAdd)
	assert.Contains(t, ops, emit.BCRet)
	assert.Equal(t, 3, fc.LocalsCount, "MaxSlot()+1 == 2+1")
	assert.False(t, fc.IsDefaultArg)
}

func TestEmitSkipsEmptyBlocksAndPatchesJumpsThroughThem(t *testing.T) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	empty := b.Bloc("empty")
	target := b.Bloc("target")

	b.Goto(entry, "empty")
	empty.Next0 = target // left truly empty: no instruction appended at all
	env := b.Env()
	b.Return(target, env)
	code := b.Finish()

	m := alloc.NewMap()
	w := &fakeWriter{}
	_, err := emit.Emit(code, m, w)
	require.NoError(t, err)

	fc := w.codes[0]
	// entry's Br must resolve to target's position, not empty's (whose
	// label is never placed, per the empty-block skip).
	var br *emit.Instr
	for _, instr := range fc.Instrs {
		if instr.Op == emit.BCBr {
			br = instr
			break
		}
	}
	require.NotNil(t, br)
	require.Len(t, br.Imm, 1)
	// target is the second label placed (entry occupies position 0, and
	// its Goto is the only instruction emitted before target's block).
	assert.Equal(t, 1, br.Imm[0])
}

func TestEmitAttachesSourceIndexToArithmetic(t *testing.T) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	a := b.Imm(entry, pir.OpLdArg, pir.RInt, 0, "")
	one := b.Const(pir.RInt, 1)
	sum := b.Val(entry, pir.OpAdd, pir.RInt, a, one)
	sum.SrcIdx = 7
	env := b.Env()
	b.Return(entry, env, sum)
	code := b.Finish()

	m := alloc.NewMap()
	m.Set(a, alloc.Slot(1))
	m.Set(sum, alloc.Slot(2))

	w := &fakeWriter{}
	_, err := emit.Emit(code, m, w)
	require.NoError(t, err)

	fc := w.codes[0]
	addPos := -1
	for n, instr := range fc.Instrs {
		if instr.Op == emit.BCAdd {
			addPos = n
		}
	}
	require.NotEqual(t, -1, addPos)
	assert.Equal(t, 7, fc.SrcSidelist[addPos])
}

func TestEmitRejectsUnknownOpcode(t *testing.T) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	bogus := pir.NewInstruction(b.Code.NewValueID(), pir.Opcode(999), pir.RInt, nil)
	entry.Append(bogus)
	env := b.Env()
	b.Return(entry, env)
	code := b.Finish()

	m := alloc.NewMap()
	w := &fakeWriter{}
	_, err := emit.Emit(code, m, w)
	assert.Error(t, err)
}
