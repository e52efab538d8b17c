// Package pirparse reads the line-oriented textual PIR fixture format
// cmd/pirlowerc accepts: one function body per file, blocks introduced
// by "block NAME", one instruction per line, terminators naming their
// successor blocks by name. There is no teacher analog for a textual
// IR reader (go-code/func.go's tests build functions by Go API calls,
// never from text), so this format is this package's own invention,
// kept deliberately small: just enough surface to drive compile() from
// a file for cmd/pirlowerc, covering arithmetic, phis, and control
// flow. Closures/promises and the environment-opcode family are built
// only from Go fixtures (internal/pirtest), not from text — see
// DESIGN.md. The grammar and lexer are built the way kanso's
// grammar package builds Kanso's own parser: a stateless lexer.Simple
// token set feeding a participle.Build grammar over tagged structs.
package pirparse

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var pirLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Newline", Pattern: `\n`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
})

var pirParser = participle.MustBuild[Program](
	participle.Lexer(pirLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)

// Program is one parsed function body: a sequence of named blocks.
type Program struct {
	Pos    lexer.Position
	Blocks []*Block `Newline* @@*`
}

// Block is "block NAME" on its own line followed by its straight-line body.
type Block struct {
	Pos   lexer.Position
	Name  string  `"block" @Ident Newline+`
	Lines []*Line `@@*`
}

// Line is the union of every statement shape the format recognizes,
// ended by a line break (or the end of input). Assignment is tried
// last, after the keyword-led alternatives fail to match, since
// "goto"/"branch"/"return"/"deopt" are themselves valid Ident tokens
// and only distinguished from an assignment target by lookahead on the
// second token (an Equals, for Assignment).
type Line struct {
	Pos    lexer.Position
	Goto   *GotoStmt   `( @@`
	Branch *BranchStmt `| @@`
	Return *ReturnStmt `| @@`
	Deopt  *DeoptStmt  `| @@`
	Assign *Assignment `| @@ ) ( Newline+ | EOF )`
}

// GotoStmt is an unconditional jump to a named block.
type GotoStmt struct {
	Pos    lexer.Position
	Target string `"goto" @Ident`
}

// BranchStmt is a two-way conditional jump: the value named Cond picks
// NotTaken (its false arm) or Taken (its true arm).
type BranchStmt struct {
	Pos      lexer.Position
	Cond     string `"branch" @Ident`
	NotTaken string `@Ident`
	Taken    string `@Ident`
}

// ReturnStmt names the (possibly empty) list of values returned.
type ReturnStmt struct {
	Pos  lexer.Position
	Args []string `"return" @Ident*`
}

// DeoptStmt names the (possibly empty) list of values carried into the
// deoptimization bailout.
type DeoptStmt struct {
	Pos  lexer.Position
	Args []string `"deopt" @Ident*`
}

// Assignment is "NAME = OPCODE ARG...", covering every value-producing
// instruction: ldarg, const, phi, copy, and the binary arithmetic and
// comparison opcodes. Op and the raw Args are resolved against the
// target opcode's expected shape in parse.go, since the grammar
// itself can't tell a single int literal (ldarg's index) from a
// variable-arity operand list (phi's inputs) without knowing Op.
type Assignment struct {
	Pos  lexer.Position
	Name string   `@Ident Equals`
	Op   string   `@Ident`
	Args []string `@(Ident|Int|Float)*`
}
