// Package pir defines the input data model the lowering core consumes:
// Values, Instructions, Phis, basic blocks, and the Code graph that holds
// them. After CSSA construction runs, the only change made to the graph
// is internal/rt writing nested-body indices into MkFunCls/MkArg
// immediates; the passes downstream (liveness, allocation, verification,
// emission) treat it as read-only and keep their own derived state in
// sidecar structures.
package pir

// ID identifies a Value within one compilation. IDs are dense and
// monotonically assigned by the arena that built the Code graph, so
// liveness and allocation sidecars can be plain slices indexed by ID
// rather than maps keyed by pointer.
type ID int

// Value is anything an Instruction argument can reference: another
// Instruction's result, a constant, or an environment sentinel.
// Constants and sentinels are Values but are never handed a slot by the
// allocator — they are materialized inline at every use site instead.
type Value interface {
	ValueID() ID
	// Allocatable reports whether the register allocator must give this
	// Value a home (stack slot or local slot). False for Const and
	// EnvSentinel.
	Allocatable() bool
	String() string
}

// RType is the result type of an Instruction (possibly void).
type RType int

const (
	RVoid RType = iota
	RInt
	RDouble
	RLogical
	RClosure
	RPromise
	REnv
	RAny
)

func (t RType) String() string {
	switch t {
	case RVoid:
		return "void"
	case RInt:
		return "int"
	case RDouble:
		return "double"
	case RLogical:
		return "logical"
	case RClosure:
		return "closure"
	case RPromise:
		return "promise"
	case REnv:
		return "env"
	default:
		return "any"
	}
}

// Const is a literal Value, materialized at every use site rather than
// allocated a slot.
type Const struct {
	id  ID
	Typ RType
	Val any
}

func NewConst(id ID, typ RType, val any) *Const { return &Const{id: id, Typ: typ, Val: val} }

func (c *Const) ValueID() ID       { return c.id }
func (c *Const) Allocatable() bool { return false }
func (c *Const) String() string    { return "const" }

// EnvSentinel denotes the "parent environment of a not-yet-closed
// function" sentinel referenced by MkEnv-family instructions (the
// emitter's parent-env opcode). Like Const, it is materialized inline.
type EnvSentinel struct{ id ID }

func NewEnvSentinel(id ID) *EnvSentinel { return &EnvSentinel{id: id} }

func (e *EnvSentinel) ValueID() ID       { return e.id }
func (e *EnvSentinel) Allocatable() bool { return false }
func (e *EnvSentinel) String() string    { return "<notClosed>" }

// Opcode tags every Instruction. The emitter (internal/emit) switches
// exhaustively over this set.
type Opcode int

const (
	OpLdArg Opcode = iota
	OpLdVar
	OpStVar
	OpAdd
	OpSub
	OpMul
	OpLt
	OpEq
	OpIndex
	OpStoreIndex
	OpMkEnv
	OpSetEnv
	OpParentEnv
	OpMkFunCls
	OpMkArg // creates a promise reference; lowered recursively
	OpCallBuiltin
	OpCopy // CSSA-inserted copy
	OpPhi
	OpBranch // conditional terminator
	OpGoto   // unconditional fallthrough terminator
	OpReturn // terminator
	OpDeopt  // terminator
)

func (op Opcode) String() string {
	names := [...]string{
		"LdArg", "LdVar", "StVar", "Add", "Sub", "Mul", "Lt", "Eq",
		"Index", "StoreIndex", "MkEnv", "SetEnv", "ParentEnv", "MkFunCls",
		"MkArg", "CallBuiltin", "Copy", "Phi", "Branch", "Goto", "Return", "Deopt",
	}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpBranch, OpGoto, OpReturn, OpDeopt:
		return true
	default:
		return false
	}
}

// Instruction is a Value produced by an opcode applied to an ordered
// argument list. Phis are Instructions tagged OpPhi whose Args are kept
// parallel to their owning block's Preds (Args[i] is the incoming value
// along Preds[i]), the same convention Go's SSA package uses for its own
// phis.
type Instruction struct {
	id  ID
	Tag Opcode
	Typ RType

	Args []Value
	// EnvArgIdx is the index into Args holding the environment operand,
	// or -1 if this instruction does not read the environment.
	EnvArgIdx int
	// SrcIdx is the source-pool index used for diagnostic attachment, or
	// -1 if none.
	SrcIdx int

	// Promise/closure payload for OpMkFunCls / OpMkArg; nil otherwise.
	Nested *Code

	// Imm carries a non-Value immediate operand for opcodes that need
	// one (LdArg's argument index, LdVar/StVar's source-variable slot).
	// Args still holds every operand that must be loaded as a Value.
	Imm int
	// Sym carries a symbolic payload (CallBuiltin's builtin name).
	Sym string

	block *BB
}

func NewInstruction(id ID, tag Opcode, typ RType, args []Value) *Instruction {
	return &Instruction{id: id, Tag: tag, Typ: typ, Args: args, EnvArgIdx: -1, SrcIdx: -1}
}

func (i *Instruction) ValueID() ID       { return i.id }
func (i *Instruction) Allocatable() bool { return i.Tag != OpGoto && i.Tag != OpBranch && i.Typ != RVoid || i.Tag == OpPhi }
func (i *Instruction) String() string    { return i.Tag.String() }

func (i *Instruction) NArgs() int     { return len(i.Args) }
func (i *Instruction) Arg(n int) Value { return i.Args[n] }

// EachArg walks arguments in definition order (the order the emitter
// loads non-stack operands in).
func (i *Instruction) EachArg(f func(Value)) {
	for _, a := range i.Args {
		f(a)
	}
}

// EachArgRev walks arguments in reverse order (the order the verifier
// pops operands in).
func (i *Instruction) EachArgRev(f func(Value)) {
	for n := len(i.Args) - 1; n >= 0; n-- {
		f(i.Args[n])
	}
}

func (i *Instruction) HasEnv() bool { return i.EnvArgIdx >= 0 }
func (i *Instruction) Env() Value {
	if i.EnvArgIdx < 0 {
		return nil
	}
	return i.Args[i.EnvArgIdx]
}
func (i *Instruction) EnvSlot() int { return i.EnvArgIdx }

func (i *Instruction) BB() *BB { return i.block }

// ReplaceUsesWith rewrites every use of i, across the whole function, to
// reference v instead. Used by CSSA construction to retarget phi uses to
// the freshly inserted output copy.
func (i *Instruction) ReplaceUsesWith(code *Code, v Value) {
	for _, b := range code.Blocks {
		for _, instr := range b.Instrs {
			for n, a := range instr.Args {
				if a == Value(i) {
					instr.Args[n] = v
				}
			}
		}
	}
}

// IsPhi reports whether this instruction is a Phi.
func (i *Instruction) IsPhi() bool { return i.Tag == OpPhi }

// BB is a basic block: an ordered instruction sequence with at most two
// successors.
type BB struct {
	ID     ID
	Instrs []*Instruction
	Preds  []*BB
	Next0  *BB // fallthrough / unconditional target
	Next1  *BB // conditional-taken target; nil unless terminator is OpBranch

	code *Code
}

func (b *BB) Successors() []*BB {
	if b.Next1 != nil {
		return []*BB{b.Next0, b.Next1}
	}
	if b.Next0 != nil {
		return []*BB{b.Next0}
	}
	return nil
}

// Terminator returns the block's last instruction, or nil for an empty
// block (see the emitter's empty-block chase).
func (b *BB) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

func (b *BB) Append(i *Instruction) {
	i.block = b
	b.Instrs = append(b.Instrs, i)
}

// InsertBeforeTerminator inserts i immediately before the block's
// terminator, or at the end if the block has none yet — the placement
// CSSA uses for predecessor-side copies.
func (b *BB) InsertBeforeTerminator(i *Instruction) {
	i.block = b
	if len(b.Instrs) == 0 || !b.Instrs[len(b.Instrs)-1].Tag.IsTerminator() {
		b.Instrs = append(b.Instrs, i)
		return
	}
	last := len(b.Instrs) - 1
	b.Instrs = append(b.Instrs, nil)
	copy(b.Instrs[last+1:], b.Instrs[last:])
	b.Instrs[last] = i
}

// InsertAfter inserts i immediately after instruction at, used for the
// phi-output copy in CSSA.
func (b *BB) InsertAfter(at *Instruction, i *Instruction) {
	i.block = b
	for n, instr := range b.Instrs {
		if instr == at {
			b.Instrs = append(b.Instrs, nil)
			copy(b.Instrs[n+2:], b.Instrs[n+1:])
			b.Instrs[n+1] = i
			return
		}
	}
	b.Instrs = append(b.Instrs, i)
}

// Code is a BB graph with a distinguished entry block.
type Code struct {
	Entry    *BB
	Blocks   []*BB // dense by ID
	NextBBID ID
	nextValID ID

	cachedPostorder []*BB
	cachedIdom      []*BB
	cachedSCCs      [][]*BB
}

func NewCode() *Code {
	return &Code{}
}

// NewBB allocates a fresh, empty block owned by code.
func (c *Code) NewBB() *BB {
	b := &BB{ID: c.NextBBID, code: c}
	c.NextBBID++
	c.Blocks = append(c.Blocks, b)
	c.InvalidateCFG()
	return b
}

// NewValueID hands out the next dense Value id.
func (c *Code) NewValueID() ID {
	id := c.nextValID
	c.nextValID++
	return id
}

// InvalidateCFG discards cached derived data; callers that mutate
// predecessor/successor edges must call this afterward. Mirrors
// go-code/func.go's Func.invalidateCFG.
func (c *Code) InvalidateCFG() {
	c.cachedPostorder = nil
	c.cachedIdom = nil
	c.cachedSCCs = nil
}

// Exits returns blocks with no successors (return or deopt terminated).
func (c *Code) Exits() []*BB {
	var out []*BB
	for _, b := range c.Blocks {
		if b.Next0 == nil && b.Next1 == nil {
			out = append(out, b)
		}
	}
	return out
}

// NumBlocks returns one past the maximum live block id.
func (c *Code) NumBlocks() int { return int(c.NextBBID) }

// NumValues returns one past the maximum value id handed out so far.
func (c *Code) NumValues() int { return int(c.nextValID) }

// ComputePreds rebuilds every block's Preds slice from the current
// Next0/Next1 edges. Most passes only ever read Preds, so nothing else
// in this package keeps it incrementally consistent; a builder that
// wires a CFG by hand (internal/pirtest's fixture builder is the only
// such caller) must call this once after every edge is set.
func (c *Code) ComputePreds() {
	for _, b := range c.Blocks {
		b.Preds = nil
	}
	for _, b := range c.Blocks {
		for _, s := range b.Successors() {
			s.Preds = append(s.Preds, b)
		}
	}
	c.InvalidateCFG()
}
