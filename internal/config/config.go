// Package config models the lowering core's debug-flag set: a fixed,
// independently-toggled set of flags recognized by the lowering core,
// populated either by the cmd/pirlowerc driver or directly by a
// library caller.
package config

// Flags is the recognized configuration set. Each field corresponds to
// exactly one recognized debug flag.
type Flags struct {
	PrintCSSA              bool
	DebugAllocator         bool
	PrintLivenessIntervals bool
	PrintFinalPir          bool
	PrintFinalRir          bool
	DryRun                 bool
}
