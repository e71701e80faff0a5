// Package optimize implements the trace optimizer (§4.6): liveness,
// sinking of exit-only effects, fusion grouping by shape, and virtual
// register assignment, run as ordered passes over a recorded trace.Trace
// before code generation.
package optimize

import (
	"vecjit/internal/config"
	"vecjit/internal/ir"
	"vecjit/internal/trace"

	"golang.org/x/exp/slices"
)

// FusionGroup is a maximal run of live, non-sunk nodes sharing the same
// output length IR-ref (§4.6 pass 3): codegen compiles each group into one
// SIMD loop body.
type FusionGroup struct {
	LengthRef int
	Nodes     []int
}

// Plan is the optimizer's output: the fusion groups codegen compiles into
// loops, and the number of virtual registers assigned (one SIMD lane
// vector per live register, §4.6 pass 4).
type Plan struct {
	Groups       []FusionGroup
	NumRegisters int
}

// Optimizer runs the four passes described in §4.6.
type Optimizer struct {
	Cfg config.Config
}

func New(cfg config.Config) *Optimizer { return &Optimizer{Cfg: cfg} }

// Run executes liveness, sinking, fusion grouping and register assignment
// over tr.IR in place (setting Live/Sunk/Reg on each ir.Node) and returns
// the resulting Plan.
func (o *Optimizer) Run(tr *trace.Trace) *Plan {
	nodes := tr.IR.Nodes

	mainLive := closure(nodes, mainRoots(nodes))
	exitLive := closure(nodes, exitRoots(tr))

	for i := range nodes {
		live := mainLive[i] || exitLive[i]
		nodes[i].Live = live
		nodes[i].Sunk = live && !mainLive[i] && exitLive[i]
	}

	groups := fuse(nodes)
	numRegs := assignRegisters(nodes)

	return &Plan{Groups: groups, NumRegisters: numRegs}
}

// mainRoots are the nodes whose effect is visible regardless of any side
// exit: stores back to the interpreter's register/environment view, and
// the control nodes that keep the loop running (§4.6 pass 1 "mark nodes
// that contribute to an sstore, store, or live-out register").
func mainRoots(nodes []ir.Node) []int {
	var roots []int
	for i, n := range nodes {
		switch n.Op {
		case ir.OpSStore, ir.OpStore, ir.OpLoop, ir.OpJmp, ir.OpGTrue, ir.OpGFalse:
			roots = append(roots, i)
		}
	}
	return roots
}

// exitRoots are every IR ref named in any exit's snapshot: the values a
// side exit stub must materialize to resume interpretation (§4.6 pass 2,
// §3 Trace/Snapshot).
func exitRoots(tr *trace.Trace) []int {
	var roots []int
	for _, ex := range tr.Exits {
		for _, ref := range ex.Snapshot.Slots {
			roots = append(roots, ref)
		}
	}
	return roots
}

// closure computes the backward reachability set of roots through operand
// and shape back-references: the IR is a DAG of strictly-decreasing
// indices (ir.Trace.Append enforces this), so a simple worklist suffices.
//
// Not every non-negative A/B/C is a back-reference: OpConstant, OpSLoad
// and OpSStore repurpose A for a raw constant-table/register index
// (recorder.go's builder), never a trace ref, so it is excluded via
// operandRefs rather than walked blindly. The In shape is never
// populated by any producer in this codebase (only Out carries real
// shape back-references), so it is left out of the walk entirely —
// its zero value would otherwise read as "ref to node 0" on every node.
func closure(nodes []ir.Node, roots []int) []bool {
	live := make([]bool, len(nodes))
	stack := append([]int(nil), roots...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if i < 0 || i >= len(nodes) || live[i] {
			continue
		}
		live[i] = true
		n := nodes[i]
		for _, ref := range operandRefs(n) {
			if ref >= 0 {
				stack = append(stack, ref)
			}
		}
	}
	return live
}

// operandRefs returns the trace-ref-valued fields of n: its genuine
// operand refs (A/B/C, minus the raw-index exception below) plus its
// Out shape's back-references.
func operandRefs(n ir.Node) []int {
	refs := []int{n.B, n.C, n.Out.Length, n.Out.Filter, n.Out.Split, n.Out.NAMask}
	if !aIsRawIndex(n.Op) {
		refs = append(refs, n.A)
	}
	return refs
}

// aIsRawIndex reports whether op's A field addresses the constant
// table or register file directly rather than another trace node
// (§4.4 Constants & I/O; the only such ops recorder.go's builder
// actually emits are OpConstant, OpSLoad and OpSStore).
func aIsRawIndex(op ir.Op) bool {
	switch op {
	case ir.OpConstant, ir.OpSLoad, ir.OpSStore:
		return true
	default:
		return false
	}
}

// fuse partitions the live, non-sunk nodes into fusion groups (§4.6 pass
// 3). Candidate nodes are stably sorted by their output length IR-ref so
// that a length shared by nodes separated by unrelated control traffic
// still fuses into one loop, then split into runs of equal key; stability
// keeps each run in recording order, which is the order codegen must
// preserve inside the loop body.
func fuse(nodes []ir.Node) []FusionGroup {
	var candidates []int
	for i, n := range nodes {
		if n.Live && !n.Sunk && isFusable(n.Op) {
			candidates = append(candidates, i)
		}
	}
	slices.SortStableFunc(candidates, func(a, b int) int {
		return nodes[a].Out.Length - nodes[b].Out.Length
	})

	var groups []FusionGroup
	for _, idx := range candidates {
		key := nodes[idx].Out.Length
		if n := len(groups); n > 0 && groups[n-1].LengthRef == key {
			groups[n-1].Nodes = append(groups[n-1].Nodes, idx)
			continue
		}
		groups = append(groups, FusionGroup{LengthRef: key, Nodes: []int{idx}})
	}
	return groups
}

// isFusable reports whether op is a true element-wise/arithmetic/
// generator/fold/scan computation that a fusion loop body can lower
// directly (§4.4's "Arithmetic / logical / ordinal", "Generators",
// "Folds" and "Scans" groupings). Constants, loads/stores, shape/meta
// and control nodes carry no per-lane computation of their own — they
// stay out of a fusion group's node list even when they happen to
// share a length ref with one, since recorder.go never tags them with
// a non-zero-value Group the way it tags real GroupMap/GroupGenerator/
// GroupFold/GroupScan nodes.
func isFusable(op ir.Op) bool {
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpIDiv, ir.OpMod, ir.OpPow,
		ir.OpAtan2, ir.OpHypot, ir.OpPMin, ir.OpPMax,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe,
		ir.OpLAnd, ir.OpLOr, ir.OpLNot, ir.OpNeg, ir.OpPos, ir.OpAbs, ir.OpSign,
		ir.OpSqrt, ir.OpFloor, ir.OpCeiling, ir.OpTrunc,
		ir.OpExp, ir.OpLog, ir.OpCos, ir.OpSin, ir.OpTan, ir.OpAcos, ir.OpAsin, ir.OpAtan,
		ir.OpAsDouble, ir.OpAsInteger, ir.OpAsLogical, ir.OpIfElse,
		ir.OpSeq, ir.OpRep, ir.OpRandom,
		ir.OpSum, ir.OpProd, ir.OpFoldMin, ir.OpFoldMax, ir.OpAll, ir.OpAny, ir.OpMean, ir.OpCM2,
		ir.OpScanSum, ir.OpScanProd, ir.OpScanMin, ir.OpScanMax, ir.OpScanAll, ir.OpScanAny:
		return true
	default:
		return false
	}
}

// assignRegisters gives every live node (sunk or not — a sunk node still
// needs a register inside the exit stub that materializes it) a distinct
// virtual register in recording order, and returns the count codegen
// allocates lane-vector storage for.
func assignRegisters(nodes []ir.Node) int {
	next := 0
	for i := range nodes {
		if !nodes[i].Live {
			nodes[i].Reg = -1
			continue
		}
		nodes[i].Reg = next
		next++
	}
	return next
}
