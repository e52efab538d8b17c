// Package compile implements compile(code) → emitted_function, the
// orchestrator of lowering: a single-threaded, non-reentrant per-call
// context owning the code-stream stack (via rt.Writer), the promise
// index table, and the allocation map for exactly one compilation
// attempt. Grounded on go-code/func.go's Func struct, which plays the
// same role for the Go SSA backend (one struct owning every piece of
// derived state for one compilation).
package compile

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pirlower/pirlower/internal/alloc"
	"github.com/pirlower/pirlower/internal/config"
	"github.com/pirlower/pirlower/internal/cssa"
	"github.com/pirlower/pirlower/internal/diag"
	"github.com/pirlower/pirlower/internal/emit"
	"github.com/pirlower/pirlower/internal/liveness"
	"github.com/pirlower/pirlower/internal/pir"
	"github.com/pirlower/pirlower/internal/rt"
	"github.com/pirlower/pirlower/internal/verify"
)

// Context is the per-compilation owner. It must not be reused
// concurrently; callers serialize compilations of the same closure
// themselves.
type Context struct {
	Flags    config.Flags
	Log      *log.Logger
	Dispatch *rt.DispatchTable

	done map[*pir.Code]int // promise/closure cache for this one compilation
}

func NewContext(flags config.Flags) *Context {
	return &Context{
		Flags: flags,
		Log:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Compile lowers code end to end into w and returns the resulting code
// object's index. cl/tier identify the owning closure for dispatch-
// table tiering and the nested-closure self-recursion short-circuit; pass
// nil/rt.Tier0 for a standalone compilation with no dispatch table.
func (c *Context) Compile(code *pir.Code, w *rt.Writer, cl *rt.Closure, tier rt.Tier) (int, error) {
	if c.Dispatch != nil && cl != nil && !c.Dispatch.Available(cl, tier) {
		c.Log.Printf("closure %s: tier already installed, skipping recompilation", cl.Name)
		return 0, nil
	}

	c.done = make(map[*pir.Code]int)
	idx, err := c.lowerBody(code, w)
	if err != nil {
		return 0, err
	}

	if !c.Flags.DryRun && c.Dispatch != nil && cl != nil {
		c.Dispatch.Put(cl, tier, w.Function())
	}
	return idx, nil
}

// lowerBody runs CSSA, liveness, allocation, verification, nested-
// promise lowering, and emission over a single Code — either the
// top-level function body or one nested closure/promise body
// discovered along the way.
func (c *Context) lowerBody(code *pir.Code, w *rt.Writer) (int, error) {
	if err := cssa.Construct(code); err != nil {
		return 0, diag.Wrap(err, "cssa construction")
	}
	if c.Flags.PrintCSSA {
		c.Log.Print("pir after cssa:\n" + spew.Sdump(code))
	}

	uc := pir.ComputeUseCounts(code)

	var debugLog *log.Logger
	if c.Flags.DebugAllocator {
		debugLog = c.Log
	}

	lv := liveness.Analyze(code, debugLog)

	m := alloc.NewMap()
	alloc.ColorStack(code, uc, m)
	alloc.RegisterAllocate(code, lv, m, debugLog)

	if c.Flags.PrintLivenessIntervals {
		c.Log.Print("allocation map:\n" + dumpAllocMap(m))
	}

	if err := checkPhiCoalescing(code, m); err != nil {
		return 0, err
	}

	if err := verify.Run(code, m); err != nil {
		return 0, err
	}

	if c.Flags.PrintFinalPir {
		c.Log.Print("final pir before emission:\n" + spew.Sdump(code))
	}

	if err := rt.LowerNested(code, w, c.lowerBody, c.done, nil, nil, rt.Tier0); err != nil {
		return 0, err
	}

	idx, err := emit.Emit(code, m, w)
	if err != nil {
		return 0, err
	}

	if c.Flags.PrintFinalRir {
		c.Log.Printf("emitted bytecode: index=%d", idx)
	}
	return idx, nil
}

// dumpAllocMap renders m's (value id, slot) pairs in ascending id order
// so the PrintLivenessIntervals trace is reproducible across runs,
// unlike a direct spew.Sdump of the map's internal Go map.
func dumpAllocMap(m *alloc.Map) string {
	var sb strings.Builder
	m.EachSorted(func(id pir.ID, s alloc.Slot) {
		if s.IsStack() {
			fmt.Fprintf(&sb, "  v%d -> STACK\n", id)
		} else {
			fmt.Fprintf(&sb, "  v%d -> slot %d\n", id, s)
		}
	})
	return sb.String()
}

// checkPhiCoalescing asserts that for every Phi p, alloc(p) ==
// alloc(input) for each CSSA-inserted copy feeding p, or both are
// STACK — the "missing phi coalescing" diagnostic.
func checkPhiCoalescing(code *pir.Code, m *alloc.Map) error {
	for _, b := range code.Blocks {
		for _, instr := range b.Instrs {
			if !instr.IsPhi() {
				continue
			}
			pslot, pok := m.Get(instr)
			for _, in := range instr.Args {
				if !in.Allocatable() {
					continue
				}
				islot, iok := m.Get(in)
				if pok != iok || pslot != islot {
					return diag.MissingPhiCoalescing(int(instr.ValueID()), int(in.ValueID()))
				}
			}
		}
	}
	return nil
}
