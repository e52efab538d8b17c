// Package liveness computes a backward fixed-point live interval for
// every allocatable pir.Value: an array indexed by basic
// block id of {live, begin, end} records. It is grounded on
// go-code/regalloc.go's computeLive family, adapted from Go's
// per-register liveness to a simpler live-bit-plus-interval record.
// Every function goes through the same single worklist fixed point;
// there is no separate acyclic or loop-aware path.
package liveness

import (
	"log"

	"github.com/pirlower/pirlower/internal/cfg"
	"github.com/pirlower/pirlower/internal/pir"
)

// Record is one block's liveness entry for one Value.
type Record struct {
	Live  bool
	Begin int
	End   int
}

// Liveness holds, for every Value id that is live somewhere, one Record
// per block id.
type Liveness struct {
	numBlocks int
	recs      map[pir.ID][]Record
}

func newLiveness(numBlocks int) *Liveness {
	return &Liveness{numBlocks: numBlocks, recs: make(map[pir.ID][]Record)}
}

func (lv *Liveness) recFor(id pir.ID) []Record {
	r, ok := lv.recs[id]
	if !ok {
		r = make([]Record, lv.numBlocks)
		lv.recs[id] = r
	}
	return r
}

// RecordIn returns v's liveness record in block b. The zero Record
// (Live=false) is returned if v is never live in b.
func (lv *Liveness) RecordIn(v pir.Value, b *pir.BB) Record {
	r, ok := lv.recs[v.ValueID()]
	if !ok {
		return Record{}
	}
	return r[b.ID]
}

// HasAnyRecord reports whether v has a liveness record in any block at
// all — the guard the allocator applies before giving a Value a slot.
func (lv *Liveness) HasAnyRecord(v pir.Value) bool {
	_, ok := lv.recs[v.ValueID()]
	return ok
}

// Interferes reports whether a and b are simultaneously live in some
// block with overlapping [begin,end] ranges (equality at begin counts).
func (lv *Liveness) Interferes(a, b pir.Value) bool {
	ra, oka := lv.recs[a.ValueID()]
	rb, okb := lv.recs[b.ValueID()]
	if !oka || !okb {
		return false
	}
	for i := 0; i < lv.numBlocks; i++ {
		x, y := ra[i], rb[i]
		if !x.Live || !y.Live {
			continue
		}
		lo := x.Begin
		if y.Begin > lo {
			lo = y.Begin
		}
		hi := x.End
		if y.End < hi {
			hi = y.End
		}
		if lo <= hi {
			return true
		}
	}
	return false
}

// liveSet is a per-block accumulator: value id -> the Value itself, so
// callers never need to recover a pointer from a bare id.
type liveSet map[pir.ID]pir.Value

func (s liveSet) add(v pir.Value)    { s[v.ValueID()] = v }
func (s liveSet) has(v pir.Value) bool { _, ok := s[v.ValueID()]; return ok }

// Analyze runs a worklist-driven backward fixed point: seed the
// worklist with the exit blocks, walk each popped block in reverse
// recording def/use positions, and propagate whatever remains live-in
// into each predecessor (or, for phi inputs, into only the owning
// predecessor). A predecessor is enqueued the first time it is reached
// and again whenever its live-out grows. logger, if non-nil, receives
// a DebugAllocator-style trace, gated the way go-code/regalloc.go
// gates its debugPrintLive calls on f.pass.debug.
func Analyze(code *pir.Code, logger *log.Logger) *Liveness {
	lv := newLiveness(code.NumBlocks())

	liveOut := make([]liveSet, code.NumBlocks())
	for i := range liveOut {
		liveOut[i] = make(liveSet)
	}

	exits := cfg.Exits(code)
	worklist := append([]*pir.BB{}, exits...)
	onWorklist := make([]bool, code.NumBlocks())
	processed := make([]bool, code.NumBlocks())
	for _, b := range exits {
		onWorklist[b.ID] = true
	}

	rounds := 0
	for len(worklist) > 0 {
		rounds++
		b := worklist[0]
		worklist = worklist[1:]
		onWorklist[b.ID] = false
		processed[b.ID] = true

		accum := make(liveSet, len(liveOut[b.ID]))
		for id, v := range liveOut[b.ID] {
			accum[id] = v
			rec := lv.recFor(id)
			rec[b.ID] = Record{Live: true, End: len(b.Instrs)}
		}

		// phiAccum[predID] collects, for this block's leading phis, the
		// incoming value that must propagate only to that predecessor.
		phiAccum := make(map[pir.ID]liveSet)

		for pos := len(b.Instrs) - 1; pos >= 0; pos-- {
			instr := b.Instrs[pos]

			if instr.IsPhi() {
				for pi, pred := range b.Preds {
					if pi >= len(instr.Args) {
						continue
					}
					in := instr.Args[pi]
					if !in.Allocatable() {
						continue
					}
					if phiAccum[pred.ID] == nil {
						phiAccum[pred.ID] = make(liveSet)
					}
					phiAccum[pred.ID].add(in)
				}
			} else {
				instr.EachArg(func(v pir.Value) {
					if !v.Allocatable() {
						return
					}
					if !accum.has(v) {
						rec := lv.recFor(v.ValueID())
						r := rec[b.ID]
						if !r.Live {
							r.Live = true
							r.End = pos
						}
						rec[b.ID] = r
						accum.add(v)
					}
				})
			}

			if instr.Allocatable() && accum.has(instr) {
				rec := lv.recFor(instr.ValueID())
				r := rec[b.ID]
				r.Begin = pos
				rec[b.ID] = r
				delete(accum, instr.ValueID())
			}
		}

		for id := range accum {
			rec := lv.recFor(id)
			r := rec[b.ID]
			r.Begin = 0
			rec[b.ID] = r
		}

		for _, pred := range b.Preds {
			changed := false
			for id, v := range accum {
				if _, ok := liveOut[pred.ID][id]; !ok {
					liveOut[pred.ID][id] = v
					changed = true
				}
			}
			for id, v := range phiAccum[pred.ID] {
				if !cfg.IsPredecessor(pred, b) {
					continue
				}
				if _, ok := liveOut[pred.ID][id]; !ok {
					liveOut[pred.ID][id] = v
					changed = true
				}
			}
			if (changed || !processed[pred.ID]) && !onWorklist[pred.ID] {
				onWorklist[pred.ID] = true
				worklist = append(worklist, pred)
			}
		}
	}

	if logger != nil {
		logger.Printf("liveness analysis converged after %d rounds", rounds)
	}
	return lv
}
