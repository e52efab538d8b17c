package pirparse

import (
	"io"
	"strconv"

	"github.com/pirlower/pirlower/internal/pir"
	"github.com/pkg/errors"
)

var opcodes = map[string]pir.Opcode{
	"add": pir.OpAdd,
	"sub": pir.OpSub,
	"mul": pir.OpMul,
	"lt":  pir.OpLt,
	"eq":  pir.OpEq,
}

type builder struct {
	code   *pir.Code
	blocks map[string]*pir.BB
	values map[string]pir.Value
	env    *pir.EnvSentinel
}

// Parse reads a textual PIR function body from r and returns the
// built graph, ready for cssa.Construct.
func Parse(r io.Reader) (*pir.Code, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "pirparse: reading input")
	}

	prog, err := pirParser.ParseBytes("", src)
	if err != nil {
		return nil, errors.Wrap(err, "pirparse: syntax error")
	}

	b := &builder{
		code:   pir.NewCode(),
		blocks: make(map[string]*pir.BB),
		values: make(map[string]pir.Value),
	}
	return b.build(prog)
}

func (b *builder) build(prog *Program) (*pir.Code, error) {
	if len(prog.Blocks) == 0 {
		return nil, errors.New("pirparse: no block declared")
	}

	// First pass: declare every block so forward-referencing
	// terminators (goto/branch to a not-yet-seen block) resolve.
	for _, blk := range prog.Blocks {
		b.declareBlock(blk.Name)
	}

	for _, blk := range prog.Blocks {
		bb := b.blocks[blk.Name]
		for _, ln := range blk.Lines {
			if err := b.line(bb, ln); err != nil {
				return nil, errors.Wrapf(err, "pirparse: line %d", ln.Pos.Line)
			}
		}
	}

	b.code.ComputePreds()
	return b.code, nil
}

func (b *builder) declareBlock(name string) {
	if _, ok := b.blocks[name]; ok {
		return
	}
	bb := b.code.NewBB()
	b.blocks[name] = bb
	if b.code.Entry == nil {
		b.code.Entry = bb
	}
}

func (b *builder) envSentinel() *pir.EnvSentinel {
	if b.env == nil {
		b.env = pir.NewEnvSentinel(b.code.NewValueID())
	}
	return b.env
}

func (b *builder) line(bb *pir.BB, ln *Line) error {
	switch {
	case ln.Goto != nil:
		target, ok := b.blocks[ln.Goto.Target]
		if !ok {
			return errors.Errorf("unknown block %q", ln.Goto.Target)
		}
		bb.Next0 = target
		bb.Append(pir.NewInstruction(b.code.NewValueID(), pir.OpGoto, pir.RVoid, nil))
		return nil

	case ln.Branch != nil:
		cond, err := b.resolve(ln.Branch.Cond)
		if err != nil {
			return err
		}
		notTaken, ok := b.blocks[ln.Branch.NotTaken]
		if !ok {
			return errors.Errorf("unknown block %q", ln.Branch.NotTaken)
		}
		taken, ok := b.blocks[ln.Branch.Taken]
		if !ok {
			return errors.Errorf("unknown block %q", ln.Branch.Taken)
		}
		bb.Next0, bb.Next1 = notTaken, taken
		bb.Append(pir.NewInstruction(b.code.NewValueID(), pir.OpBranch, pir.RVoid, []pir.Value{cond}))
		return nil

	case ln.Return != nil:
		args, err := b.resolveAll(ln.Return.Args)
		if err != nil {
			return err
		}
		full := append([]pir.Value{b.envSentinel()}, args...)
		instr := pir.NewInstruction(b.code.NewValueID(), pir.OpReturn, pir.RVoid, full)
		instr.EnvArgIdx = 0
		bb.Append(instr)
		return nil

	case ln.Deopt != nil:
		args, err := b.resolveAll(ln.Deopt.Args)
		if err != nil {
			return err
		}
		bb.Append(pir.NewInstruction(b.code.NewValueID(), pir.OpDeopt, pir.RVoid, args))
		return nil

	default:
		return b.assignment(bb, ln.Assign)
	}
}

// assignment handles "NAME = OPCODE ARG...": ldarg IDX, const TYPE
// LITERAL, phi v... (one per predecessor, in declaration order), copy
// v, or one of the binary arithmetic/comparison opcodes.
func (b *builder) assignment(bb *pir.BB, a *Assignment) error {
	switch a.Op {
	case "ldarg":
		if len(a.Args) != 1 {
			return errors.New("ldarg takes exactly one argument index")
		}
		idx, err := strconv.Atoi(a.Args[0])
		if err != nil {
			return errors.Wrap(err, "ldarg index")
		}
		instr := pir.NewInstruction(b.code.NewValueID(), pir.OpLdArg, pir.RAny, nil)
		instr.Imm = idx
		bb.Append(instr)
		b.values[a.Name] = instr
		return nil

	case "const":
		if len(a.Args) != 2 {
			return errors.New("const takes TYPE LITERAL")
		}
		typ, val, err := parseConst(a.Args[0], a.Args[1])
		if err != nil {
			return err
		}
		b.values[a.Name] = pir.NewConst(b.code.NewValueID(), typ, val)
		return nil

	case "phi":
		args, err := b.resolveAll(a.Args)
		if err != nil {
			return err
		}
		instr := pir.NewInstruction(b.code.NewValueID(), pir.OpPhi, pir.RAny, args)
		bb.Append(instr)
		b.values[a.Name] = instr
		return nil

	case "copy":
		if len(a.Args) != 1 {
			return errors.New("copy takes exactly one operand")
		}
		v, err := b.resolve(a.Args[0])
		if err != nil {
			return err
		}
		instr := pir.NewInstruction(b.code.NewValueID(), pir.OpCopy, pir.RAny, []pir.Value{v})
		bb.Append(instr)
		b.values[a.Name] = instr
		return nil
	}

	tag, ok := opcodes[a.Op]
	if !ok {
		return errors.Errorf("unknown opcode %q", a.Op)
	}
	args, err := b.resolveAll(a.Args)
	if err != nil {
		return err
	}
	typ := pir.RInt
	if tag == pir.OpLt || tag == pir.OpEq {
		typ = pir.RLogical
	}
	instr := pir.NewInstruction(b.code.NewValueID(), tag, typ, args)
	bb.Append(instr)
	b.values[a.Name] = instr
	return nil
}

func (b *builder) resolve(name string) (pir.Value, error) {
	if name == "env" {
		return b.envSentinel(), nil
	}
	v, ok := b.values[name]
	if !ok {
		return nil, errors.Errorf("undefined value %q", name)
	}
	return v, nil
}

func (b *builder) resolveAll(names []string) ([]pir.Value, error) {
	out := make([]pir.Value, 0, len(names))
	for _, n := range names {
		v, err := b.resolve(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseConst(typ, lit string) (pir.RType, any, error) {
	switch typ {
	case "int":
		n, err := strconv.Atoi(lit)
		if err != nil {
			return 0, nil, errors.Wrap(err, "int constant")
		}
		return pir.RInt, n, nil
	case "double":
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return 0, nil, errors.Wrap(err, "double constant")
		}
		return pir.RDouble, f, nil
	case "logical":
		v, err := strconv.ParseBool(lit)
		if err != nil {
			return 0, nil, errors.Wrap(err, "logical constant")
		}
		return pir.RLogical, v, nil
	default:
		return 0, nil, errors.Errorf("unsupported constant type %q", typ)
	}
}
