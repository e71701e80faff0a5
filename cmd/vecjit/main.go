// Command vecjit is a thin smoke-test driver for the execution engine: it
// threads a built-in hot loop prototype through the interpreter, records a
// trace once it qualifies, optimizes it and renders the LLVM module a real
// code generator backend would compile (§2 "smoke-test driver; the real
// CLI is out of scope" — there is no parser/compiler front end in this
// repo, so the driver builds its own Prototype by hand).
package main

import (
	"flag"
	"fmt"
	"os"

	"vecjit/internal/codegen"
	"vecjit/internal/config"
	"vecjit/internal/diag"
	"vecjit/internal/environment"
	"vecjit/internal/errors"
	"vecjit/internal/interp"
	"vecjit/internal/optimize"
	"vecjit/internal/proto"
	"vecjit/internal/trace"
	"vecjit/internal/value"

	"github.com/kr/pretty"
)

var (
	iterations = flag.Int("n", 64, "iteration count echoed in the resume diagnostic; the driver records one trace and does not run the loop this many times")
	dumpIR     = flag.Bool("dump-ir", false, "pretty-print the recorded trace's IR before compiling it")
)

func main() {
	flag.Parse()
	sess := diag.Stderr()
	defer sess.Flush()

	if err := run(sess); err != nil {
		fmt.Fprintln(os.Stderr, "vecjit:", err)
		os.Exit(1)
	}
}

// sumLoopProto is R1 = K0 (the constant 1.0); R2 = R2 + R1; forend loops
// back to 0, the same three-instruction shape the trace recorder's own
// tests drive, built here directly since this repo owns no front end to
// compile source text into a Prototype.
func sumLoopProto() *proto.Prototype {
	return &proto.Prototype{
		Name:      "sumloop",
		Constants: []value.Value{value.ScalarDouble(1)},
		Code: []proto.Instruction{
			{Op: proto.OpKGet, A: 1, B: 0},
			{Op: proto.OpAdd, A: 2, B: 2, C: 1},
			{Op: proto.OpForEnd, A: 3, B: -2},
		},
		NumRegisters: 4,
	}
}

func run(sess *diag.Session) error {
	cfg := config.Default()
	it := interp.New(cfg)
	p := sumLoopProto()
	env := environment.New(it.Globals)
	it.ResumeAt(p, env, false, 2)

	*it.Reg(2) = value.ScalarDouble(0)
	*it.Reg(3) = value.ScalarInt(0)

	rec := trace.New(cfg)
	var compiled *trace.Trace
	rec.Compiler = traceCapture(func(tr *trace.Trace) error {
		compiled = tr
		return nil
	})
	rec.OnAbort = func(reason errors.RecordAbortReason) {
		sess.Warn("trace aborted: %s", reason)
	}

	pc := rec.Record(it, 2)
	sess.Warn("interpreter resumed normal dispatch at pc=%d (-n=%d)", pc, *iterations)

	if compiled == nil {
		return fmt.Errorf("recorder never closed a trace for this prototype")
	}

	if *dumpIR {
		fmt.Fprintf(os.Stderr, "%# v\n", pretty.Formatter(compiled.IR))
	}

	plan := optimize.New(cfg).Run(compiled)
	sess.TraceEvent("optimize", compiled.ID.String(), len(compiled.IR.Nodes), 0)

	native, err := codegen.New(cfg).Compile(compiled, plan)
	if err != nil {
		return fmt.Errorf("codegen: %w", err)
	}
	sess.TraceEvent("codegen", compiled.ID.String(), len(compiled.IR.Nodes), len(native.Module.String()))

	ptr, err := codegen.NopLinker().Link(native)
	if err != nil {
		return fmt.Errorf("link: %w", err)
	}
	defer ptr.Close()

	fmt.Printf("compiled trace %s: entry=%s exits=%d registers=%d groups=%d\n",
		compiled.ID, native.EntrySymbol, len(native.ExitSymbols), plan.NumRegisters, len(plan.Groups))
	return nil
}

type traceCapture func(tr *trace.Trace) error

func (f traceCapture) Compile(tr *trace.Trace) error { return f(tr) }
