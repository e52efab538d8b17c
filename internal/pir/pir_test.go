package pir_test

import (
	"testing"

	"github.com/pirlower/pirlower/internal/pir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePredsWiresBothEdges(t *testing.T) {
	code := pir.NewCode()
	entry := code.NewBB()
	left := code.NewBB()
	right := code.NewBB()
	join := code.NewBB()
	code.Entry = entry

	cond := pir.NewConst(code.NewValueID(), pir.RLogical, true)
	entry.Append(pir.NewInstruction(code.NewValueID(), pir.OpBranch, pir.RVoid, []pir.Value{cond}))
	entry.Next0, entry.Next1 = left, right

	left.Append(pir.NewInstruction(code.NewValueID(), pir.OpGoto, pir.RVoid, nil))
	left.Next0 = join
	right.Append(pir.NewInstruction(code.NewValueID(), pir.OpGoto, pir.RVoid, nil))
	right.Next0 = join

	code.ComputePreds()

	assert.ElementsMatch(t, []*pir.BB{left, right}, join.Preds)
	assert.Empty(t, entry.Preds)
	assert.Equal(t, []*pir.BB{entry}, left.Preds)
}

func TestAllocatable(t *testing.T) {
	code := pir.NewCode()
	c := pir.NewConst(code.NewValueID(), pir.RInt, 1)
	assert.False(t, c.Allocatable())

	env := pir.NewEnvSentinel(code.NewValueID())
	assert.False(t, env.Allocatable())

	add := pir.NewInstruction(code.NewValueID(), pir.OpAdd, pir.RInt, []pir.Value{c, c})
	assert.True(t, add.Allocatable())

	goTo := pir.NewInstruction(code.NewValueID(), pir.OpGoto, pir.RVoid, nil)
	assert.False(t, goTo.Allocatable())

	phi := pir.NewInstruction(code.NewValueID(), pir.OpPhi, pir.RVoid, nil)
	assert.True(t, phi.Allocatable(), "a void-typed phi (merging env values) is still allocatable")
}

func TestInsertBeforeTerminatorPlacesAheadOfTerminatorOnly(t *testing.T) {
	code := pir.NewCode()
	b := code.NewBB()
	term := pir.NewInstruction(code.NewValueID(), pir.OpGoto, pir.RVoid, nil)
	b.Append(term)

	cp := pir.NewInstruction(code.NewValueID(), pir.OpCopy, pir.RInt, nil)
	b.InsertBeforeTerminator(cp)

	require.Len(t, b.Instrs, 2)
	assert.Same(t, cp, b.Instrs[0])
	assert.Same(t, term, b.Instrs[1])
}

func TestInsertAfterPlacesImmediatelyFollowing(t *testing.T) {
	code := pir.NewCode()
	b := code.NewBB()
	phi := pir.NewInstruction(code.NewValueID(), pir.OpPhi, pir.RInt, nil)
	b.Append(phi)
	other := pir.NewInstruction(code.NewValueID(), pir.OpAdd, pir.RInt, nil)
	b.Append(other)

	out := pir.NewInstruction(code.NewValueID(), pir.OpCopy, pir.RInt, []pir.Value{phi})
	b.InsertAfter(phi, out)

	require.Len(t, b.Instrs, 3)
	assert.Same(t, phi, b.Instrs[0])
	assert.Same(t, out, b.Instrs[1])
	assert.Same(t, other, b.Instrs[2])
}

func TestReplaceUsesWith(t *testing.T) {
	code := pir.NewCode()
	b := code.NewBB()
	phi := pir.NewInstruction(code.NewValueID(), pir.OpPhi, pir.RInt, nil)
	b.Append(phi)
	use := pir.NewInstruction(code.NewValueID(), pir.OpAdd, pir.RInt, []pir.Value{phi, phi})
	b.Append(use)

	out := pir.NewInstruction(code.NewValueID(), pir.OpCopy, pir.RInt, []pir.Value{phi})
	phi.ReplaceUsesWith(code, out)

	assert.Same(t, out, use.Args[0])
	assert.Same(t, out, use.Args[1])
}

func TestUseCounts(t *testing.T) {
	code := pir.NewCode()
	b := code.NewBB()
	a := pir.NewInstruction(code.NewValueID(), pir.OpLdArg, pir.RInt, nil)
	b.Append(a)
	add1 := pir.NewInstruction(code.NewValueID(), pir.OpAdd, pir.RInt, []pir.Value{a, a})
	b.Append(add1)
	add2 := pir.NewInstruction(code.NewValueID(), pir.OpAdd, pir.RInt, []pir.Value{add1, a})
	b.Append(add2)

	uc := pir.ComputeUseCounts(code)
	assert.Equal(t, 3, uc.Count(a))
	assert.Equal(t, 1, uc.Count(add1))
	assert.True(t, uc.HasSingleUse(add1))
	assert.False(t, uc.HasSingleUse(a))
}
