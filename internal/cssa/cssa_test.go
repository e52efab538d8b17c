package cssa_test

import (
	"testing"

	"github.com/pirlower/pirlower/internal/cssa"
	"github.com/pirlower/pirlower/internal/pir"
	"github.com/pirlower/pirlower/internal/pirtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDiamondWithPhi builds:
//
//	entry: branch cond -> left, right
//	left:  v1 = 1 + 1; goto join
//	right: v2 = 2 + 2; goto join
//	join:  p = phi(v1, v2); use = p + p; return
func buildDiamondWithPhi(t *testing.T) (*pirtest.Builder, *pir.Code, *pir.Instruction) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	left := b.Bloc("left")
	right := b.Bloc("right")
	join := b.Bloc("join")

	cond := b.Const(pir.RLogical, true)
	b.Branch(entry, cond, "left", "right")

	v1 := b.Val(left, pir.OpAdd, pir.RInt, b.Const(pir.RInt, 1), b.Const(pir.RInt, 1))
	b.Goto(left, "join")

	v2 := b.Val(right, pir.OpAdd, pir.RInt, b.Const(pir.RInt, 2), b.Const(pir.RInt, 2))
	b.Goto(right, "join")

	code := b.Code
	phi := pir.NewInstruction(code.NewValueID(), pir.OpPhi, pir.RInt, []pir.Value{v1, v2})
	join.Append(phi)
	use := b.Val(join, pir.OpAdd, pir.RInt, phi, phi)
	_ = use
	env := b.Env()
	b.Return(join, env)

	return b, b.Finish(), phi
}

func TestConstructInsertsPredecessorCopies(t *testing.T) {
	b, code, phi := buildDiamondWithPhi(t)
	require.NoError(t, cssa.Construct(code))

	left := b.B("left")
	right := b.B("right")

	leftCopy := left.Instrs[len(left.Instrs)-2]
	assert.Equal(t, pir.OpCopy, leftCopy.Tag)

	rightCopy := right.Instrs[len(right.Instrs)-2]
	assert.Equal(t, pir.OpCopy, rightCopy.Tag)

	assert.Same(t, leftCopy, phi.Args[0])
	assert.Same(t, rightCopy, phi.Args[1])
}

func TestConstructInsertsOutputCopyAndRewritesUses(t *testing.T) {
	b, code, phi := buildDiamondWithPhi(t)
	require.NoError(t, cssa.Construct(code))

	join := b.B("join")
	var outCopy *pir.Instruction
	for n, instr := range join.Instrs {
		if instr == phi {
			outCopy = join.Instrs[n+1]
			break
		}
	}
	require.NotNil(t, outCopy)
	assert.Equal(t, pir.OpCopy, outCopy.Tag)
	assert.Same(t, phi, outCopy.Args[0])

	// The Add that originally read phi directly must now read the copy.
	var add *pir.Instruction
	for _, instr := range join.Instrs {
		if instr.Tag == pir.OpAdd {
			add = instr
		}
	}
	require.NotNil(t, add)
	assert.Same(t, outCopy, add.Args[0])
	assert.Same(t, outCopy, add.Args[1])
}

func TestConstructIsIdempotent(t *testing.T) {
	_, code, _ := buildDiamondWithPhi(t)
	require.NoError(t, cssa.Construct(code))

	before := countCopies(code)
	require.NoError(t, cssa.Construct(code))
	after := countCopies(code)

	assert.Equal(t, before, after, "re-running CSSA on already-conventional IR must not insert a second layer of copies")
}

func countCopies(code *pir.Code) int {
	n := 0
	for _, b := range code.Blocks {
		for _, instr := range b.Instrs {
			if instr.Tag == pir.OpCopy {
				n++
			}
		}
	}
	return n
}

func TestConstructRejectsArityMismatch(t *testing.T) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	left := b.Bloc("left")
	right := b.Bloc("right")
	join := b.Bloc("join")

	cond := b.Const(pir.RLogical, true)
	b.Branch(entry, cond, "left", "right")
	b.Goto(left, "join")
	b.Goto(right, "join")

	v1 := b.Const(pir.RInt, 1)
	code := b.Code
	phi := pir.NewInstruction(code.NewValueID(), pir.OpPhi, pir.RInt, []pir.Value{v1})
	join.Append(phi)
	env := b.Env()
	b.Return(join, env)

	require.Error(t, cssa.Construct(b.Finish()))
}
