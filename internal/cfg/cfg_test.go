package cfg_test

import (
	"testing"

	"github.com/pirlower/pirlower/internal/cfg"
	"github.com/pirlower/pirlower/internal/pir"
	"github.com/pirlower/pirlower/internal/pirtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds entry -> {left, right} -> join -> exit.
func diamond(t *testing.T) (*pirtest.Builder, *pir.Code) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	left := b.Bloc("left")
	right := b.Bloc("right")
	join := b.Bloc("join")
	exit := b.Bloc("exit")

	cond := b.Const(pir.RLogical, true)
	b.Branch(entry, cond, "left", "right")
	b.Goto(left, "join")
	b.Goto(right, "join")
	env := b.Env()
	b.Goto(join, "exit")
	b.Return(exit, env)

	return b, b.Finish()
}

func TestPredecessorsAndSuccessors(t *testing.T) {
	b, code := diamond(t)
	join := b.B("join")
	require.Len(t, cfg.Predecessors(join), 2)
	assert.ElementsMatch(t, []*pir.BB{b.B("left"), b.B("right")}, cfg.Predecessors(join))
	assert.ElementsMatch(t, []*pir.BB{b.B("left"), b.B("right")}, cfg.Successors(b.B("entry")))
	assert.Equal(t, []*pir.BB{b.B("exit")}, cfg.Exits(code))
}

func TestPostorderVisitsEveryReachableBlockOnce(t *testing.T) {
	_, code := diamond(t)
	po := cfg.Postorder(code)
	assert.Len(t, po, 5)
	assert.Equal(t, code.Entry, po[len(po)-1], "entry is visited last in postorder")
}

func TestDominators(t *testing.T) {
	b, code := diamond(t)
	dom := cfg.ComputeDominators(code)

	assert.Nil(t, dom.ImmediateDominator(code.Entry))
	assert.Equal(t, b.B("entry"), dom.ImmediateDominator(b.B("left")))
	assert.Equal(t, b.B("entry"), dom.ImmediateDominator(b.B("right")))
	assert.Equal(t, b.B("entry"), dom.ImmediateDominator(b.B("join")), "join is dominated only by entry, not left/right")
}

func TestPreorderStartsAtEntry(t *testing.T) {
	_, code := diamond(t)
	dom := cfg.ComputeDominators(code)
	pre := dom.Preorder(code)
	require.NotEmpty(t, pre)
	assert.Equal(t, code.Entry, pre[0])
	assert.Len(t, pre, 5)
}

func TestIsPredecessorReachability(t *testing.T) {
	b, _ := diamond(t)
	assert.True(t, cfg.IsPredecessor(b.B("entry"), b.B("join")))
	assert.False(t, cfg.IsPredecessor(b.B("left"), b.B("right")))
	assert.True(t, cfg.IsPredecessor(b.B("left"), b.B("left")))
}

func TestSCCsAcyclicAreAllTrivial(t *testing.T) {
	_, code := diamond(t)
	sccs := cfg.SCCs(code)
	assert.Len(t, sccs, 5)
	for _, scc := range sccs {
		assert.False(t, cfg.IsLoop(scc))
	}
}

func TestSCCsOneLoop(t *testing.T) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	header := b.Bloc("header")
	body := b.Bloc("body")
	exit := b.Bloc("exit")

	b.Goto(entry, "header")
	cond := b.Const(pir.RLogical, true)
	b.Branch(header, cond, "exit", "body")
	b.Goto(body, "header")
	env := b.Env()
	b.Return(exit, env)
	code := b.Finish()

	sccs := cfg.SCCs(code)
	var loopSCC []*pir.BB
	for _, scc := range sccs {
		if cfg.IsLoop(scc) {
			loopSCC = scc
		}
	}
	require.NotNil(t, loopSCC)
	assert.ElementsMatch(t, []*pir.BB{header, body}, loopSCC)
}

func TestComputeLoopnestFindsHeaderAndDepth(t *testing.T) {
	b := pirtest.NewBuilder()
	entry := b.Bloc("entry")
	header := b.Bloc("header")
	body := b.Bloc("body")
	exit := b.Bloc("exit")

	b.Goto(entry, "header")
	cond := b.Const(pir.RLogical, true)
	b.Branch(header, cond, "exit", "body")
	b.Goto(body, "header")
	env := b.Env()
	b.Return(exit, env)
	code := b.Finish()

	ln := cfg.ComputeLoopnest(code)
	require.Len(t, ln.Loops, 1)
	assert.Equal(t, header, ln.Loops[0].Header)
	assert.Equal(t, ln.Loops[0], ln.B2L[header.ID])
	assert.Equal(t, ln.Loops[0], ln.B2L[body.ID])
	assert.Nil(t, ln.B2L[entry.ID])
	assert.False(t, ln.HasIrreducible)
}
