// Package rt implements the runtime-facing collaborators that sit
// outside the lowering core's own scope but which the core drives
// directly: the Function Writer (bytecode interning + jump patching),
// the Dispatch Table (tier selection), and — since it threads through
// both — the recursive lowering of nested promise/closure bodies.
// Grounded on go-code/func.go's cached-derived-data-owned-by-one-struct
// pattern, reused here for "lower a promise once, cache its index".
package rt

import "github.com/pirlower/pirlower/internal/emit"

// CodeObject is the writer's compact, finalized representation of one
// code stream (a function body or a promise body).
type CodeObject struct {
	Instrs       []*emit.Instr
	LocalsCount  int
	IsDefaultArg bool
	SrcSidelist  map[int]int
}

// Function is the compact function object the writer hands back,
// holding every code object belonging to one top-level compilation (the
// outer body plus every promise/closure body lowered underneath it).
type Function struct {
	Codes []*CodeObject
}

// Writer accepts code streams and interns their finalized bytecode,
// implementing emit.Writer so a CodeStream can finalize directly into
// it.
type Writer struct {
	codes []*CodeObject
}

func NewWriter() *Writer { return &Writer{} }

// Intern stores a finalized code stream and returns its index — the
// index internal/rt's promise lowering caches and later bakes into the
// referencing MkFunCls/MkArg instruction's immediate operand.
func (w *Writer) Intern(fc *emit.FinalizedCode) int {
	idx := len(w.codes)
	w.codes = append(w.codes, &CodeObject{
		Instrs:       fc.Instrs,
		LocalsCount:  fc.LocalsCount,
		IsDefaultArg: fc.IsDefaultArg,
		SrcSidelist:  fc.SrcSidelist,
	})
	return idx
}

// Function returns the compact function object gathering every code
// object interned so far.
func (w *Writer) Function() *Function {
	return &Function{Codes: append([]*CodeObject(nil), w.codes...)}
}
