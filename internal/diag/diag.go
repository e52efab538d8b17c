// Package diag implements the lowering core's error taxonomy. The
// lowering core reports only compiler-bug-class failures; there is
// nothing recoverable, so every constructor here returns an error meant
// to propagate straight to the caller of compile() and be treated as
// fatal to that one compilation attempt.
package diag

import "github.com/pkg/errors"

// IRMalformed reports an unknown opcode tag or unresolvable operand.
func IRMalformed(valueID int, tag string, detail string) error {
	return errors.Errorf("ir malformed: value %d tag %s: %s", valueID, tag, detail)
}

// AllocationFault reports the verifier finding the wrong Value in a
// slot or on the stack.
func AllocationFault(blockID int, slot int, expected, found string) error {
	return errors.Errorf("allocation fault: block %d slot %d: expected %s, found %s", blockID, slot, expected, found)
}

// StackDiscipline reports a terminal block reached with a non-empty
// symbolic stack.
func StackDiscipline(blockID int, residual int) error {
	return errors.Errorf("stack-discipline fault: block %d: residual stack size %d", blockID, residual)
}

// MissingPhiCoalescing reports a phi and one of its CSSA-inserted
// copies landing on different slots.
func MissingPhiCoalescing(phiID int, inputID int) error {
	return errors.Errorf("missing phi coalescing: phi %d and input %d assigned different slots", phiID, inputID)
}

// Wrap attaches additional context (e.g. a block or function name) to
// an existing diagnostic without losing its stack trace.
func Wrap(err error, context string) error {
	return errors.Wrap(err, context)
}
