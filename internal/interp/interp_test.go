package interp

import (
	"testing"

	"vecjit/internal/config"
	"vecjit/internal/environment"
	"vecjit/internal/proto"
	"vecjit/internal/value"
)

// callProto builds a two-prototype program: the outer calls the inner with
// one positional argument and returns whatever the inner returned. This
// exercises the re-entrant call-depth tracking in call/pushFrame/loop: the
// outer Run must not resume as soon as the inner frame pops, only once its
// own frame does.
func callProto() *proto.Prototype {
	inner := &proto.Prototype{
		Name:          "inner",
		ParamNames:    []string{"x"},
		ParamDefaults: []*proto.Prototype{nil},
		DotIndex:      1,
		Constants:     []value.Value{value.NewSymbol("x")},
		Code: []proto.Instruction{
			{Op: proto.OpGet, A: 0, B: 0}, // R0 = lookup "x"
			{Op: proto.OpRet, A: 0},
		},
		NumRegisters: 1,
	}

	fn := value.FromPtr(value.Function, &proto.Function{Proto: inner})

	outer := &proto.Prototype{
		Name:      "outer",
		Constants: []value.Value{value.ScalarDouble(42), fn},
		CallSites: []*proto.CompiledCall{
			{Args: []int32{0}, Names: []string{""}, DotPosition: -1},
		},
		Code: []proto.Instruction{
			{Op: proto.OpKGet, A: 0, B: 0}, // R0 = 42.0 (the argument)
			{Op: proto.OpKGet, A: 1, B: 1}, // R1 = closure over inner
			{Op: proto.OpCall, A: 2, B: 0, C: 1}, // R2 = call(R1, callsite 0)
			{Op: proto.OpRet, A: 2},
		},
		NumRegisters: 3,
	}
	return outer
}

func TestRunPropagatesNestedCallResult(t *testing.T) {
	it := New(config.Default())
	env := environment.New(it.Globals)

	result, err := it.Run(callProto(), env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.AsDoubleScalar(); got != 42 {
		t.Fatalf("want 42, got %v", got)
	}
	if it.frameTop != 0 {
		t.Fatalf("want frame stack empty after Run returns, got frameTop=%d", it.frameTop)
	}
	if it.base != 0 {
		t.Fatalf("want base restored to 0, got %d", it.base)
	}
}

func TestRunPropagatesNestedCallError(t *testing.T) {
	it := New(config.Default())
	env := environment.New(it.Globals)

	// Same shape as callProto, but the inner prototype looks up a name
	// that was never bound, so it.Run must see the error surface through
	// the nested call rather than hang or panic, and must leave the
	// frame stack clean for a subsequent Run on the same Interp.
	inner := &proto.Prototype{
		Name:      "inner",
		Constants: []value.Value{value.NewSymbol("undefined_name")},
		Code: []proto.Instruction{
			{Op: proto.OpGet, A: 0, B: 0},
			{Op: proto.OpRet, A: 0},
		},
		NumRegisters: 1,
	}
	fn := value.FromPtr(value.Function, &proto.Function{Proto: inner})
	outer := &proto.Prototype{
		Name:      "outer",
		Constants: []value.Value{fn},
		CallSites: []*proto.CompiledCall{
			{Args: nil, Names: nil, DotPosition: -1},
		},
		Code: []proto.Instruction{
			{Op: proto.OpKGet, A: 0, B: 0},
			{Op: proto.OpCall, A: 1, B: 0, C: 0},
			{Op: proto.OpRet, A: 1},
		},
		NumRegisters: 2,
	}

	_, err := it.Run(outer, env)
	if err == nil {
		t.Fatal("want an error from the unresolved symbol lookup")
	}
	if it.frameTop != 0 {
		t.Fatalf("want frame stack unwound after error, got frameTop=%d", it.frameTop)
	}
	if it.base != 0 {
		t.Fatalf("want base restored to 0 after unwind, got %d", it.base)
	}

	// The Interp must still be usable: run the happy-path program again.
	result, err := it.Run(callProto(), env)
	if err != nil {
		t.Fatalf("unexpected error on reuse: %v", err)
	}
	if got := result.AsDoubleScalar(); got != 42 {
		t.Fatalf("want 42, got %v", got)
	}
}
