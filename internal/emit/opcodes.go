// Package emit implements the per-block code emitter and the bytecode
// sink (CodeStream). There is no teacher analog for a stack-plus-locals
// bytecode target (the Go SSA backend targets a register machine); the
// opcode set and emission order are modeled on a breadth-first,
// environment-tracking block walk and cross-checked against RIR's
// documented pir2rir emission order in original_source.
package emit

// BC is a bytecode opcode tag.
type BC int

const (
	BCLoadLocal BC = iota
	BCStoreLocal
	BCPop
	BCPushConst
	BCLdArg
	BCSetEnv
	BCParentEnv
	BCAdd
	BCSub
	BCMul
	BCLt
	BCEq
	BCIndex
	BCStoreIndex
	BCMkEnv
	BCMkFunCls
	BCMakePromise
	BCCallBuiltin
	BCBrFalse
	BCBr
	BCRet
	BCTrap
)

func (op BC) String() string {
	names := [...]string{
		"load-local", "store-local", "pop", "push-const", "ldarg",
		"set-env", "parent-env", "add", "sub", "mul", "lt", "eq", "index",
		"store-index", "mk-env", "mk-fun-cls", "make-promise",
		"call-builtin", "brfalse", "br", "ret", "trap",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}
