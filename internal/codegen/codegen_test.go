package codegen

import (
	"strings"
	"testing"

	"vecjit/internal/config"
	"vecjit/internal/ir"
	"vecjit/internal/optimize"
	"vecjit/internal/trace"
)

// fusableLoopTrace mirrors the shape optimize's own scenario B fixture: two
// sloads feeding a mul/add pair that share a length ref, closed by a
// loop/jmp back-edge with no guard.
func fusableLoopTrace() *trace.Trace {
	tr := trace.NewTrace(nil, 0)
	length := tr.IR.Append(ir.Node{Op: ir.OpSLoad, A: -1, B: -1, C: -1, Out: ir.NoShape})
	a := tr.IR.Append(ir.Node{Op: ir.OpSLoad, A: 0, B: -1, C: -1, Out: ir.Shape{Length: length, Levels: 1, Filter: -1, Split: -1, NAMask: -1}})
	b := tr.IR.Append(ir.Node{Op: ir.OpSLoad, A: 1, B: -1, C: -1, Out: ir.Shape{Length: length, Levels: 1, Filter: -1, Split: -1, NAMask: -1}})
	mul := tr.IR.Append(ir.Node{Op: ir.OpMul, A: a, B: b, C: -1, Group: ir.GroupMap, Out: ir.Shape{Length: length, Levels: 1, Filter: -1, Split: -1, NAMask: -1}})
	add := tr.IR.Append(ir.Node{Op: ir.OpAdd, A: mul, B: a, C: -1, Group: ir.GroupMap, Out: ir.Shape{Length: length, Levels: 1, Filter: -1, Split: -1, NAMask: -1}})
	tr.IR.Append(ir.Node{Op: ir.OpSStore, A: 2, B: add, C: -1, Out: ir.NoShape})
	loop := tr.IR.Append(ir.Node{Op: ir.OpLoop, A: -1, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl})
	tr.IR.Append(ir.Node{Op: ir.OpJmp, A: loop, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl})
	return tr
}

func TestCompileProducesOneEntryFunctionAndRendersCleanIR(t *testing.T) {
	cfg := config.Default()
	tr := fusableLoopTrace()
	plan := optimize.New(cfg).Run(tr)

	native, err := New(cfg).Compile(tr, plan)
	if err != nil {
		t.Fatalf("Compile returned %v", err)
	}
	if native.EntrySymbol == "" {
		t.Error("want a non-empty entry symbol")
	}
	if len(native.ExitSymbols) != 0 {
		t.Errorf("want no exit stubs for a guard-free loop, got %d", len(native.ExitSymbols))
	}

	text := native.Module.String()
	if !strings.Contains(text, native.EntrySymbol) {
		t.Errorf("want the rendered module to mention its own entry symbol %q", native.EntrySymbol)
	}
	if !strings.Contains(text, "fmul") {
		t.Error("want the fused mul lowered to an fmul instruction")
	}
}

func TestCompileEmitsOneExitStubPerTraceExit(t *testing.T) {
	cfg := config.Default()
	tr := trace.NewTrace(nil, 0)
	a := tr.IR.Append(ir.Node{Op: ir.OpSLoad, A: 0, B: -1, C: -1, Out: ir.NoShape})
	cond := tr.IR.Append(ir.Node{Op: ir.OpGt, A: a, B: -1, C: -1, Group: ir.GroupMap, Out: ir.NoShape})
	guard := tr.IR.Append(ir.Node{Op: ir.OpGTrue, A: cond, B: -1, C: -1, Group: ir.GroupControl})
	tr.IR.Append(ir.Node{Op: ir.OpExit, A: guard, B: -1, C: -1, Group: ir.GroupControl, Exit: guard})
	loop := tr.IR.Append(ir.Node{Op: ir.OpLoop, A: -1, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl})
	tr.IR.Append(ir.Node{Op: ir.OpJmp, A: loop, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl})
	tr.Exits = []trace.ExitStub{{GuardRef: guard, Snapshot: trace.Snapshot{Slots: map[int32]int{0: a}}}}

	plan := optimize.New(cfg).Run(tr)
	native, err := New(cfg).Compile(tr, plan)
	if err != nil {
		t.Fatalf("Compile returned %v", err)
	}
	if len(native.ExitSymbols) != 1 {
		t.Fatalf("want exactly one exit stub symbol, got %d", len(native.ExitSymbols))
	}
	if !strings.Contains(native.Module.String(), native.ExitSymbols[0]) {
		t.Error("want the rendered module to mention the exit stub's symbol")
	}
}

func TestNopLinkerRendersWithoutMappingMemory(t *testing.T) {
	cfg := config.Default()
	tr := fusableLoopTrace()
	plan := optimize.New(cfg).Run(tr)
	native, err := New(cfg).Compile(tr, plan)
	if err != nil {
		t.Fatalf("Compile returned %v", err)
	}

	ptr, err := NopLinker().Link(native)
	if err != nil {
		t.Fatalf("Link returned %v", err)
	}
	if ptr.Entry != 0 {
		t.Errorf("want NopLinker to return a zero-valued CodePointer, got entry=%v", ptr.Entry)
	}
	if err := ptr.Close(); err != nil {
		t.Errorf("want Close on an unmapped CodePointer to be a no-op, got %v", err)
	}
}
