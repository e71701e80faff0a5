package trace

import (
	"testing"

	"vecjit/internal/config"
	"vecjit/internal/environment"
	"vecjit/internal/errors"
	"vecjit/internal/interp"
	"vecjit/internal/proto"
	"vecjit/internal/value"
)

// loopProto is a three-instruction loop body closed by a forend back-edge
// at index 2: R1 = K0, R2 = R2 + R1, forend jumps back to index 0. It is
// never driven through Interp.Run (the back-edge never terminates on its
// own, by design: the test only ever steps it through a Recorder, which
// stops well before that matters).
func loopProto() *proto.Prototype {
	return &proto.Prototype{
		Name:      "loop",
		Constants: []value.Value{value.ScalarDouble(1)},
		Code: []proto.Instruction{
			{Op: proto.OpKGet, A: 1, B: 0},       // 0: R1 = K0
			{Op: proto.OpAdd, A: 2, B: 2, C: 1},  // 1: R2 = R2 + R1
			{Op: proto.OpForEnd, A: 3, B: -2},    // 2: R3++, jump to 0
		},
		NumRegisters: 4,
	}
}

type compilerFunc func(tr *Trace) error

func (f compilerFunc) Compile(tr *Trace) error { return f(tr) }

func TestRecordMirrorsLoopBodyAndClosesOnSecondBackEdge(t *testing.T) {
	it := interp.New(config.Default())
	p := loopProto()
	env := environment.New(it.Globals)
	it.ResumeAt(p, env, false, 2) // start right at the forend

	*it.Reg(2) = value.ScalarDouble(0)
	*it.Reg(3) = value.ScalarInt(0)

	var compiled *Trace
	r := New(config.Default())
	r.Compiler = compilerFunc(func(tr *Trace) error {
		compiled = tr
		return nil
	})

	nextPC := r.Record(it, 2)

	if compiled == nil {
		t.Fatal("want a compiled trace, got none")
	}
	if compiled.StartPC != 2 {
		t.Fatalf("want StartPC 2, got %d", compiled.StartPC)
	}
	var foundAdd, foundLoop bool
	for _, n := range compiled.IR.Nodes {
		switch n.Op.String() {
		case "add":
			foundAdd = true
		case "loop":
			foundLoop = true
		}
	}
	if !foundAdd {
		t.Error("want the mirrored add in the trace")
	}
	if !foundLoop {
		t.Error("want the trace to close with a loop node")
	}
	if nextPC != 0 {
		t.Fatalf("want the real interpreter to have jumped back to 0, got %d", nextPC)
	}
	if it.Recording() {
		t.Error("want recording flag cleared once Record returns")
	}
}

func TestRecordAbortsOnNestedRecording(t *testing.T) {
	it := interp.New(config.Default())
	p := loopProto()
	env := environment.New(it.Globals)
	it.ResumeAt(p, env, false, 2)

	it.SetRecording(true)
	var aborted errors.RecordAbortReason
	r := New(config.Default())
	r.OnAbort = func(reason errors.RecordAbortReason) { aborted = reason }

	nextPC := r.Record(it, 2)

	if aborted != errors.NestedRecording {
		t.Fatalf("want NestedRecording abort, got %v", aborted)
	}
	if nextPC != 2 {
		t.Fatalf("want startPC echoed back unchanged, got %d", nextPC)
	}
}

func TestRecordAbortsOnUnsupportedOpcode(t *testing.T) {
	it := interp.New(config.Default())
	p := &proto.Prototype{
		Constants: []value.Value{value.ScalarDouble(1)},
		Code: []proto.Instruction{
			{Op: proto.OpColon, A: 0, B: 0, C: 0}, // subset/colon is not mirrored
			{Op: proto.OpForEnd, A: 1, B: -1},
		},
		NumRegisters: 2,
	}
	env := environment.New(it.Globals)
	it.ResumeAt(p, env, false, 0)
	*it.Reg(0) = value.ScalarDouble(1)
	*it.Reg(1) = value.ScalarInt(0)

	var aborted errors.RecordAbortReason
	r := New(config.Default())
	r.OnAbort = func(reason errors.RecordAbortReason) { aborted = reason }

	r.Record(it, 0)

	if aborted != errors.UnsupportedGuard {
		t.Fatalf("want UnsupportedGuard abort, got %v", aborted)
	}
}
