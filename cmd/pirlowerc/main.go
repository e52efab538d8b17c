// Command pirlowerc is an external harness around internal/compile: it
// reads a textual PIR fixture, runs it through compile.Context.Compile,
// and prints the resulting bytecode (or writes it to a file with
// --out). It is not part of the lowering core itself — a thin driver
// for exercising the core against hand-written fixtures, built the way
// aclements-go-misc's small command tools are built: stdlib flag, no
// subcommands, one binary doing one thing.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"
	"github.com/pirlower/pirlower/internal/compile"
	"github.com/pirlower/pirlower/internal/config"
	"github.com/pirlower/pirlower/internal/pirparse"
	"github.com/pirlower/pirlower/internal/rt"
)

func main() {
	var flags config.Flags
	var outPath string

	flag.BoolVar(&flags.PrintCSSA, "print-cssa", false, "dump PIR after CSSA construction")
	flag.BoolVar(&flags.DebugAllocator, "debug-allocator", false, "trace liveness and register allocation")
	flag.BoolVar(&flags.PrintLivenessIntervals, "print-liveness", false, "dump the final allocation map")
	flag.BoolVar(&flags.PrintFinalPir, "print-final-pir", false, "dump PIR immediately before emission")
	flag.BoolVar(&flags.PrintFinalRir, "print-final-rir", false, "report the emitted code object's index")
	flag.BoolVar(&flags.DryRun, "dry-run", false, "lower without installing the result into a dispatch table")
	flag.StringVar(&outPath, "out", "", "write the emitted bytecode dump to this path instead of stdout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <fixture.pir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	path := flag.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read %s: %s", path, err)
		os.Exit(1)
	}

	f, err := os.Open(path)
	if err != nil {
		color.Red("failed to open %s: %s", path, err)
		os.Exit(1)
	}
	defer f.Close()

	code, err := pirparse.Parse(f)
	if err != nil {
		reportParseError(path, string(src), err)
		os.Exit(1)
	}

	ctx := compile.NewContext(flags)
	w := rt.NewWriter()
	if _, err := ctx.Compile(code, w, nil, rt.Tier0); err != nil {
		color.Red("compile failed: %s", err)
		os.Exit(1)
	}

	fn := w.Function()
	dump := dumpFunction(fn)
	if outPath == "" {
		fmt.Print(dump)
		color.Green("ok: %s", path)
		return
	}
	if err := os.WriteFile(outPath, []byte(dump), 0o644); err != nil {
		color.Red("failed to write %s: %s", outPath, err)
		os.Exit(1)
	}
	color.Green("ok: %s -> %s", path, outPath)
}

// dumpFunction renders every interned code object's instructions in
// emission order, one per line, for readable --out fixtures.
func dumpFunction(fn *rt.Function) string {
	var sb strings.Builder
	for i, co := range fn.Codes {
		fmt.Fprintf(&sb, "code %d (locals=%d)\n", i, co.LocalsCount)
		for _, instr := range co.Instrs {
			fmt.Fprintf(&sb, "  %s\n", instr.Op)
		}
	}
	return sb.String()
}

// reportParseError prints a caret-style parse error, grounded on
// kanso's own grammar-error reporter.
func reportParseError(path, src string, err error) {
	var pe participle.Error
	if !errors.As(err, &pe) {
		color.Red("%s: %s", path, err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("%s: syntax error at unknown location: %s", path, err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("%s:%d:%d: syntax error", path, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("%s\n", pe.Message())
}
