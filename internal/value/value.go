// Package value implements the tagged dynamic value model shared by the
// interpreter, the trace recorder and the generated native code: a scalar
// is packed inline, anything longer points at a homogeneous heap buffer.
package value

import (
	"math"
)

// Tag is the 4-bit type discriminant of a Value.
type Tag uint8

const (
	Null Tag = iota
	Logical
	Integer
	Double
	Character
	List
	Symbol
	Promise
	Function
	Environment
	Object
	Future
)

func (t Tag) String() string {
	switch t {
	case Null:
		return "null"
	case Logical:
		return "logical"
	case Integer:
		return "integer"
	case Double:
		return "double"
	case Character:
		return "character"
	case List:
		return "list"
	case Symbol:
		return "symbol"
	case Promise:
		return "promise"
	case Function:
		return "function"
	case Environment:
		return "environment"
	case Object:
		return "object"
	case Future:
		return "future"
	default:
		return "unknown"
	}
}

// NA sentinels, one per element type. Equality of two values is shallow by
// contract (§3): NA-ness is a bit pattern test, never a deep comparison.
const (
	NALogical byte    = 255
	NAInt     int64   = math.MinInt64
	NACharacter uint64 = ^uint64(0) // reserved interned-string handle
)

var naDoubleBits uint64 = 0x7FF80000000007A2 // a specific quiet-NaN payload

// NADouble is the double NA sentinel: a quiet NaN with a reserved payload so
// it is distinguishable from a NaN produced by e.g. 0.0/0.0.
func NADouble() float64 { return math.Float64frombits(naDoubleBits) }

// IsNADouble reports whether f is exactly the NA double bit pattern.
func IsNADouble(f float64) bool { return math.Float64bits(f) == naDoubleBits }

// Value is a 128-bit logical cell: tag + length + payload. Length==1 values
// are packed (the element lives in Scalar); longer values own a Vector
// through Vec. Packing is an invariant, not an optimization left to the
// caller: constructors enforce it.
type Value struct {
	Tag    Tag
	Length int64
	Scalar uint64 // inline payload when Length == 1
	Vec    *Vector

	// Ptr carries the "opaque pointer / future reference" payload union
	// member (§3) for the handle classes that are not homogeneous
	// vectors: Symbol, Promise, Function, Environment, Object, Future.
	// Go's GC makes an interface{} pointer the idiomatic stand-in for the
	// reference-counted heap pointer the spec describes.
	Ptr any
}

// IsScalar reports whether v is packed inline.
func (v Value) IsScalar() bool { return v.Length == 1 }

// NullValue returns the canonical null value (length 0).
func NullValue() Value { return Value{Tag: Null} }

// scalar packs x as the payload of a length-1 value of tag t.
func scalar(t Tag, bits uint64) Value {
	return Value{Tag: t, Length: 1, Scalar: bits}
}

func ScalarLogical(b byte) Value { return scalar(Logical, uint64(b)) }
func ScalarInt(i int64) Value    { return scalar(Integer, uint64(i)) }
func ScalarDouble(f float64) Value {
	return scalar(Double, math.Float64bits(f))
}
func ScalarCharacter(handle uint64) Value { return scalar(Character, handle) }

func (v Value) AsLogicalScalar() byte    { return byte(v.Scalar) }
func (v Value) AsIntScalar() int64       { return int64(v.Scalar) }
func (v Value) AsDoubleScalar() float64  { return math.Float64frombits(v.Scalar) }
func (v Value) AsCharacterScalar() uint64 { return v.Scalar }

// Type returns the VectorType of the handle backing v; for a scalar this is
// Tag itself, for a vector it must equal Vec.Type (type punning between
// handle classes is illegal per the invariant in §4.1).
func (v Value) Type() Tag {
	if v.Vec != nil {
		return v.Vec.Type
	}
	return v.Tag
}

func (v Value) IsNull() bool { return v.Tag == Null && v.Vec == nil }

// FromPtr boxes an opaque heap reference (a *proto.Function, a *Promise, an
// *environment.Environment, an *Object, ...) as a length-1 Value of tag t.
func FromPtr(t Tag, ptr any) Value {
	return Value{Tag: t, Length: 1, Ptr: ptr}
}

// AsPtr unboxes the opaque reference stored by FromPtr.
func (v Value) AsPtr() any { return v.Ptr }

// NewSymbol boxes a name as a Value of tag Symbol. The real engine resolves
// Character handles through an external string-interning table (out of
// scope, §1); symbol names used for environment lookups are carried here
// as plain Go strings, since that table's implementation is a contracted
// external collaborator, not something this engine owns.
func NewSymbol(name string) Value { return FromPtr(Symbol, name) }

func (v Value) AsSymbolName() string {
	s, _ := v.Ptr.(string)
	return s
}
