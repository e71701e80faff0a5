package runtime

import (
	"math"

	"vecjit/internal/environment"
	"vecjit/internal/proto"
	"vecjit/internal/value"
)

// This file is the companion runtime-helper library §6 contracts: scalar
// math, value boxing/unboxing keyed by type name, environment operations
// and memory reallocation. internal/codegen's LLVM module declares only
// the scalar-math entries, as "vecjit_rt_<op>" externals (see its
// runtimeDecl); the other helpers here have no declaration there. A production build
// links the compiled form of this package in (the native-target backend
// shelled out to in internal/codegen/link.go is responsible for that
// link step, §4.7 [EXPANDED] Artifact lifecycle). Keeping the Go
// implementation here, rather than only a declaration, is what lets
// internal/codegen's nopLinker test double and internal/runtime's own
// tests exercise the real semantics without a native toolchain.

// Scalar math (§6 "scalar math (sin, cos, exp, log, pow, atan2, hypot,
// …)"): every helper propagates NA the way §8 invariant 5 requires of any
// vector op, at the scalar granularity codegen calls these at.
func Sin(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Sin(x)
}
func Cos(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Cos(x)
}
func Tan(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Tan(x)
}
func Asin(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Asin(x)
}
func Acos(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Acos(x)
}
func Atan(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Atan(x)
}
func Exp(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Exp(x)
}
func Log(x float64) float64 {
	if value.IsNADouble(x) {
		return x
	}
	return math.Log(x)
}
func Pow(x, y float64) float64 {
	if value.IsNADouble(x) || value.IsNADouble(y) {
		return value.NADouble()
	}
	return math.Pow(x, y)
}
func Atan2(y, x float64) float64 {
	if value.IsNADouble(x) || value.IsNADouble(y) {
		return value.NADouble()
	}
	return math.Atan2(y, x)
}
func Hypot(x, y float64) float64 {
	if value.IsNADouble(x) || value.IsNADouble(y) {
		return value.NADouble()
	}
	return math.Hypot(x, y)
}

// Boxing/unboxing (§6 "BOX_Double, UNBOX_Double, etc., keyed by type
// name"): unboxed forms are the raw Go scalar lane types; Unbox reports
// ok=false on a type mismatch, the "unbox returned null" guard §4.7
// describes for a promised value whose concrete type diverges from the
// recorded one.
func BoxDouble(f float64) value.Value    { return value.ScalarDouble(f) }
func BoxInteger(i int64) value.Value     { return value.ScalarInt(i) }
func BoxLogical(b byte) value.Value      { return value.ScalarLogical(b) }
func BoxCharacter(h uint64) value.Value  { return value.ScalarCharacter(h) }

func UnboxDouble(v value.Value) (float64, bool) {
	if v.Type() != value.Double {
		return 0, false
	}
	return v.AsDoubleScalar(), true
}
func UnboxInteger(v value.Value) (int64, bool) {
	if v.Type() != value.Integer {
		return 0, false
	}
	return v.AsIntScalar(), true
}
func UnboxLogical(v value.Value) (byte, bool) {
	if v.Type() != value.Logical {
		return 0, false
	}
	return v.AsLogicalScalar(), true
}
func UnboxCharacter(v value.Value) (uint64, bool) {
	if v.Type() != value.Character {
		return 0, false
	}
	return v.AsCharacterScalar(), true
}

// Environment operations (§6). SLoad/SStore address the flat register
// file an exit stub reconstructs; ELoad/EStore address a named binding.
func SLoad(regs []value.Value, base, i int) value.Value { return regs[base+i] }
func SStore(regs []value.Value, base, i int, v value.Value) { regs[base+i] = v }

func ELoad(env *environment.Environment, name string) (value.Value, error) {
	return env.FindInChain(name)
}
func EStore(env *environment.Environment, name string, v value.Value) { env.Assign(name, v) }

func NewEnvironment(lexical *environment.Environment) *environment.Environment {
	return environment.New(lexical)
}

// Length, ALength, OLength (§6): the element count, the attribute-vector
// length ("length of names/dim/etc., for objects"), and the length used
// by reshape/scatter sizing respectively. For the homogeneous vectors
// this engine models they coincide; Object's attribute dictionary is
// where ALength diverges.
func Length(v value.Value) int64 {
	if v.Vec != nil {
		return int64(v.Vec.Len())
	}
	return v.Length
}
func ALength(v value.Value) int64 {
	if o := value.AsObjectPtr(v); o != nil && o.Names != nil {
		return int64(o.Names.Len())
	}
	return Length(v)
}
func OLength(v value.Value) int64 { return Length(v) }

func GetPrototype(fn *proto.Function) *proto.Prototype          { return fn.Proto }
func GetEnvironment(fn *proto.Function) *environment.Environment { return fn.Env }

func GetAttr(v value.Value, name string) value.Value {
	o := value.AsObjectPtr(v)
	if o == nil || o.Attrs == nil {
		return value.NullValue()
	}
	return o.Attrs[name]
}

// GetStrip returns the base value stripped of its Object wrapper, the
// unboxing step before a fused loop reads an Object's numeric payload.
func GetStrip(v value.Value) value.Value {
	if o := value.AsObjectPtr(v); o != nil {
		return o.Base
	}
	return v
}

// Push/Pop materialize the synthetic call frames the push/pop IR opcodes
// need when a trace crosses a call boundary (§4.7 "Call/return through
// the trace").
func Push(stack []value.Value, v value.Value) []value.Value { return append(stack, v) }
func Pop(stack []value.Value) (value.Value, []value.Value) {
	n := len(stack)
	if n == 0 {
		return value.NullValue(), stack
	}
	return stack[n-1], stack[:n-1]
}

// Memory reallocation (§6 "REALLOC_Double, REALLOC_Integer, …"): grow a
// lane-backed buffer to at least n elements, used when reshape resizes a
// scatter target mid-trace.
func ReallocDouble(buf []float64, n int) []float64 {
	if cap(buf) >= n {
		return buf[:n]
	}
	grown := make([]float64, n)
	copy(grown, buf)
	return grown
}
func ReallocInteger(buf []int64, n int) []int64 {
	if cap(buf) >= n {
		return buf[:n]
	}
	grown := make([]int64, n)
	copy(grown, buf)
	return grown
}
func ReallocLogical(buf []byte, n int) []byte {
	if cap(buf) >= n {
		return buf[:n]
	}
	grown := make([]byte, n)
	copy(grown, buf)
	return grown
}
func ReallocCharacter(buf []uint64, n int) []uint64 {
	if cap(buf) >= n {
		return buf[:n]
	}
	grown := make([]uint64, n)
	copy(grown, buf)
	return grown
}
