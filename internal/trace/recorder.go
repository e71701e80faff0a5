package trace

import (
	"vecjit/internal/config"
	"vecjit/internal/errors"
	"vecjit/internal/interp"
	"vecjit/internal/ir"
	"vecjit/internal/proto"
)

// Compiler is the hand-off point to the optimizer/code generator: once a
// Trace closes (or never, if it aborts) Recorder calls Compile so that
// "the Optimizer+CodeGen lower the IR to native code, install it, and
// execution resumes at the loop head" (§2). Left nil in unit tests that
// only want to exercise recording.
type Compiler interface {
	Compile(tr *Trace) error
}

// Recorder implements interp.Tracer. One Recorder can be attached to
// many Interp instances; it holds no per-recording state between calls.
type Recorder struct {
	Cfg      config.Config
	Compiler Compiler

	// OnAbort, if set, observes every abort reason (diagnostics only;
	// RecordAbort never surfaces to user code, §7).
	OnAbort func(reason errors.RecordAbortReason)
}

func New(cfg config.Config) *Recorder { return &Recorder{Cfg: cfg} }

// Record implements interp.Tracer (§4.5 Start condition: called on a
// qualifying forend back-edge or hot arith op). It drives a shadow
// interpretation from startPC: every instruction is executed for real
// through it.Step while being mirrored into IR, until the loop closes,
// a guard can't be represented, a budget is exceeded, or the frame
// returns out from under the loop entirely.
func (r *Recorder) Record(it *interp.Interp, startPC int) int {
	if it.Recording() {
		r.abort(errors.NestedRecording)
		return startPC
	}

	frame := it.CurrentFrame()
	if frame == nil {
		return startPC
	}
	p := frame.Proto

	it.SetRecording(true)
	defer it.SetRecording(false)

	b := newBuilder(p, startPC)
	instrCount := 0

	for {
		pc := frame.PC()
		ins := p.Code[pc]

		if !b.mirror(pc, ins) {
			// (b) guard/opcode cannot be represented: let the real
			// interpreter finish this one instruction and stop
			// recording. The half-built IR is simply discarded. The
			// instruction itself may pop the frame we are tracing (a
			// bare ret inside the loop body), so PC is read back
			// through the interpreter rather than the now possibly
			// stale frame pointer.
			r.abort(errors.UnsupportedGuard)
			it.Step()
			return currentPC(it)
		}

		_, returned, err := it.Step()
		instrCount++
		if err != nil {
			// Errors propagate through the ordinary interpreter path;
			// recording contributes nothing further.
			return currentPC(it)
		}
		if returned {
			// The frame we were tracing returned out from under us
			// (e.g. the loop body itself executed a ret): nothing
			// sensible to compile.
			return currentPC(it)
		}
		if instrCount > r.Cfg.TraceInstrBudget || b.tr.Len() > r.Cfg.TraceNodeBudget {
			r.abort(errors.BudgetExceeded)
			return currentPC(it)
		}
		if b.closed {
			tr := b.finish()
			if r.Compiler != nil {
				_ = r.Compiler.Compile(tr) // failure is not user-visible (§7)
			}
			return currentPC(it)
		}
	}
}

// currentPC reads back the active frame's PC after a Step that may have
// popped the frame the recorder started at.
func currentPC(it *interp.Interp) int {
	if f := it.CurrentFrame(); f != nil {
		return f.PC()
	}
	return 0
}

func (r *Recorder) abort(reason errors.RecordAbortReason) {
	if r.OnAbort != nil {
		r.OnAbort(reason)
	}
}

// builder performs the bytecode-to-IR mirroring itself: an SSA-style
// value-numbering map from register index to the IR ref currently
// holding its value, built up one real instruction at a time.
type builder struct {
	tr      ir.Trace
	proto   *proto.Prototype
	startPC int

	regRef map[int32]int // register index -> defining IR node ref
	exits  []ExitStub
	closed bool
	steps  int // instructions mirrored so far, including the opening forend
}

func newBuilder(p *proto.Prototype, startPC int) *builder {
	return &builder{proto: p, startPC: startPC, regRef: make(map[int32]int)}
}

// ref returns the IR ref currently holding register i's value, emitting
// an sload the first time this trace reads it (§4.5 Protocol: "reads of
// environment/register locations become sload/load/unbox").
func (b *builder) ref(i int32) int {
	if ref, ok := b.regRef[i]; ok {
		return ref
	}
	ref := b.tr.Append(ir.Node{Op: ir.OpSLoad, A: int(i), B: -1, C: -1, Out: ir.NoShape})
	b.regRef[i] = ref
	return ref
}

func (b *builder) setRef(i int32, ref int) {
	b.regRef[i] = ref
	b.tr.Append(ir.Node{Op: ir.OpSStore, A: int(i), B: ref, C: -1, Out: ir.NoShape})
}

// mirror appends the IR mirroring the real bytecode executed this
// iteration, or reports false if pc/ins is not representable (§4.5
// Termination (b)). Covered: kget, the binary arithmetic/comparison
// opcodes, neg/pos/not, jt/jf as guards, and the forend back-edge that
// closes the loop. Other loads/stores (get, assign, iget, ...) and every
// other opcode are not mirrored and end the recording.
func (b *builder) mirror(pc int, ins proto.Instruction) bool {
	b.steps++
	switch proto.Opcode(ins.ThreadedTarget) {
	case proto.OpKGet:
		ref := b.tr.Append(ir.Node{Op: ir.OpConstant, A: int(ins.B), B: -1, C: -1, Out: ir.NoShape})
		b.regRef[ins.A] = ref

	case proto.OpAdd, proto.OpSub, proto.OpMul, proto.OpDiv, proto.OpIDiv, proto.OpMod, proto.OpPow,
		proto.OpEq, proto.OpNeq, proto.OpLt, proto.OpLe, proto.OpGt, proto.OpGe:
		a, bb := b.ref(ins.B), b.ref(ins.C)
		ref := b.tr.Append(ir.Node{Op: irOpFor(proto.Opcode(ins.ThreadedTarget)), A: a, B: bb, C: -1,
			Out: ir.Shape{Length: a, Levels: 1, Filter: -1, Split: -1, NAMask: -1}, Group: ir.GroupMap})
		b.setRef(ins.A, ref)

	case proto.OpNeg, proto.OpPos, proto.OpNot:
		a := b.ref(ins.B)
		ref := b.tr.Append(ir.Node{Op: irUnaryOpFor(proto.Opcode(ins.ThreadedTarget)), A: a, B: -1, C: -1,
			Out: ir.Shape{Length: a, Levels: 1, Filter: -1, Split: -1, NAMask: -1}, Group: ir.GroupMap})
		b.setRef(ins.A, ref)

	case proto.OpJt, proto.OpJf:
		// A branch becomes a guard: the "taken" direction continues the
		// trace, the other becomes a side exit carrying a snapshot of
		// every register this trace has touched so far (§4.5 Protocol).
		cond := b.ref(ins.A)
		op := ir.OpGTrue
		if proto.Opcode(ins.ThreadedTarget) == proto.OpJf {
			op = ir.OpGFalse
		}
		guardRef := b.tr.Append(ir.Node{Op: op, A: cond, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl})
		b.tr.Append(ir.Node{Op: ir.OpExit, A: guardRef, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl, Exit: guardRef})
		b.exits = append(b.exits, ExitStub{
			GuardRef: guardRef,
			Snapshot: Snapshot{PC: pc, Slots: cloneRegRefs(b.regRef)},
		})

	case proto.OpForEnd:
		if pc != b.startPC {
			return false
		}
		if b.steps == 1 {
			// This is the forend whose hot back-edge triggered recording
			// in the first place (§4.5 Start condition): it hasn't run
			// the loop body yet this trace, so there is nothing to close.
			// The real interpreter below steps it normally (incrementing
			// the counter and jumping to the body), and mirroring resumes
			// from there; the loop only actually closes the next time
			// this same pc is reached, after one full body has been
			// recorded.
			break
		}
		loopRef := b.tr.Append(ir.Node{Op: ir.OpLoop, A: -1, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl})
		b.tr.Append(ir.Node{Op: ir.OpJmp, A: loopRef, B: -1, C: -1, Out: ir.NoShape, Group: ir.GroupControl})
		b.closed = true

	default:
		return false
	}
	return true
}

// finish packages the built IR into a Trace with an entry snapshot
// covering every register the recording read or wrote.
func (b *builder) finish() *Trace {
	tr := NewTrace(b.proto, b.startPC)
	tr.IR = b.tr
	tr.Entry = Snapshot{PC: b.startPC, Slots: cloneRegRefs(b.regRef)}
	tr.Exits = b.exits
	return tr
}

func cloneRegRefs(m map[int32]int) map[int32]int {
	out := make(map[int32]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func irOpFor(op proto.Opcode) ir.Op {
	switch op {
	case proto.OpAdd:
		return ir.OpAdd
	case proto.OpSub:
		return ir.OpSub
	case proto.OpMul:
		return ir.OpMul
	case proto.OpDiv:
		return ir.OpDiv
	case proto.OpIDiv:
		return ir.OpIDiv
	case proto.OpMod:
		return ir.OpMod
	case proto.OpPow:
		return ir.OpPow
	case proto.OpEq:
		return ir.OpEq
	case proto.OpNeq:
		return ir.OpNeq
	case proto.OpLt:
		return ir.OpLt
	case proto.OpLe:
		return ir.OpLe
	case proto.OpGt:
		return ir.OpGt
	case proto.OpGe:
		return ir.OpGe
	}
	return ir.OpAdd
}

func irUnaryOpFor(op proto.Opcode) ir.Op {
	switch op {
	case proto.OpNeg:
		return ir.OpNeg
	case proto.OpPos:
		return ir.OpPos
	case proto.OpNot:
		return ir.OpLNot
	}
	return ir.OpPos
}
