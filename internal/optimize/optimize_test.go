package optimize

import (
	"testing"

	"vecjit/internal/config"
	"vecjit/internal/ir"
	"vecjit/internal/trace"
)

// scenarioBTrace builds the IR Scenario B's fusion would produce: two
// sloads, a mul, an add, and an sstore, all sharing the same length ref
// (node 0 stands in for "length 1024"), closed by a loop/jmp pair with no
// guard at all (§8 Scenario B: "a trace of IR length >= 3 ... exactly one
// compiled native function").
func scenarioBTrace() *trace.Trace {
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

func TestFusionGroupsEverythingSharingALengthRef(t *testing.T) {
	tr := scenarioBTrace()
	plan := New(config.Default()).Run(tr)

	if len(plan.Groups) != 1 {
		t.Fatalf("want exactly one fusion group (§8 Scenario B), got %d", len(plan.Groups))
	}
	// mul and add share the length ref and are both live map ops; the two
	// sloads feeding them are control/IO and stay out of GroupMap fusion.
	got := len(plan.Groups[0].Nodes)
	if got != 2 {
		t.Fatalf("want 2 fused map nodes (mul, add), got %d", got)
	}
}

func TestLivenessDropsDeadNodes(t *testing.T) {
	tr := trace.NewTrace(nil, 0)
	a := tr.IR.Append(ir.Node{Op: ir.OpConstant, A: 0, B: -1, C: -1, Out: ir.NoShape})
	_ = tr.IR.Append(ir.Node{Op: ir.OpConstant, A: 1, B: -1, C: -1, Out: ir.NoShape}) // dead: never stored
	tr.IR.Append(ir.Node{Op: ir.OpSStore, A: 0, B: a, C: -1, Out: ir.NoShape})

	New(config.Default()).Run(tr)

	if !tr.IR.Nodes[0].Live {
		t.Error("want node feeding the sstore to be live")
	}
	if tr.IR.Nodes[1].Live {
		t.Error("want the unreferenced constant to be dead")
	}
}

func TestSunkNodesAreOnlyReachableThroughAnExit(t *testing.T) {
	tr := trace.NewTrace(nil, 0)
	a := tr.IR.Append(ir.Node{Op: ir.OpSLoad, A: 0, B: -1, C: -1, Out: ir.NoShape})
	cond := tr.IR.Append(ir.Node{Op: ir.OpGt, A: a, B: -1, C: -1, Group: ir.GroupMap, Out: ir.NoShape})
	guard := tr.IR.Append(ir.Node{Op: ir.OpGTrue, A: cond, B: -1, C: -1, Group: ir.GroupControl})
	tr.IR.Append(ir.Node{Op: ir.OpExit, A: guard, B: -1, C: -1, Group: ir.GroupControl, Exit: guard})
	// b is used ONLY by the exit's snapshot, never by a main-path sstore.
	b := tr.IR.Append(ir.Node{Op: ir.OpSLoad, A: 1, B: -1, C: -1, Out: ir.NoShape})
	tr.Exits = []trace.ExitStub{{GuardRef: guard, Snapshot: trace.Snapshot{Slots: map[int32]int{1: b}}}}

	New(config.Default()).Run(tr)

	if !tr.IR.Nodes[b].Live {
		t.Error("want the exit-only node to still be live")
	}
	if !tr.IR.Nodes[b].Sunk {
		t.Error("want the exit-only node marked sunk")
	}
	if tr.IR.Nodes[guard].Sunk {
		t.Error("want the guard itself (a main-path node) not sunk")
	}
}
