package value

import (
	"math"

	"vecjit/internal/errors"
)

// BinOp names the element-wise binary operations the interpreter and the
// code generator both need to agree on bit-for-bit.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	IDiv
	Mod
	Pow
	Eq
	Neq
	Lt
	Le
	Gt
	Ge
	And
	Or
)

// Arith applies op element-wise over a and b, broadcasting the shorter
// operand (recycling, §3) and producing double results unless both operands
// are integer, in which case overflow yields NA rather than trapping
// (§4.1). Comparisons always produce Logical.
func Arith(op BinOp, a, b Value) (Value, error) {
	switch op {
	case Eq, Neq, Lt, Le, Gt, Ge:
		return compare(op, a, b)
	case And, Or:
		return boolOp(op, a, b)
	}

	if a.Type() == Integer && b.Type() == Integer && op != Div && op != Pow {
		return intArith(op, a, b)
	}

	da, err := As(Double, a)
	if err != nil {
		return Value{}, err
	}
	db, err := As(Double, b)
	if err != nil {
		return Value{}, err
	}
	na, nb := length(da), length(db)
	n := na
	if nb > n {
		n = nb
	}
	if na == 0 || nb == 0 {
		return WithCapacity(Double, 0), nil
	}
	sa, sb := da.AsSliceDouble(), db.AsSliceDouble()
	f := doubleOp(op)
	if n == 1 {
		return ScalarDouble(f(sa[0], sb[0])), nil
	}
	out := WithCapacity(Double, n)
	dst := out.Vec.Doubles
	for i := 0; i < n; i++ {
		x, y := sa[recycleIndex(i, na)], sb[recycleIndex(i, nb)]
		dst[i] = f(x, y)
	}
	return out, nil
}

func doubleOp(op BinOp) func(x, y float64) float64 {
	switch op {
	case Add:
		return func(x, y float64) float64 {
			if IsNADouble(x) || IsNADouble(y) {
				return NADouble()
			}
			return x + y
		}
	case Sub:
		return func(x, y float64) float64 {
			if IsNADouble(x) || IsNADouble(y) {
				return NADouble()
			}
			return x - y
		}
	case Mul:
		return func(x, y float64) float64 {
			if IsNADouble(x) || IsNADouble(y) {
				return NADouble()
			}
			return x * y
		}
	case Div:
		return func(x, y float64) float64 {
			if IsNADouble(x) || IsNADouble(y) {
				return NADouble()
			}
			return x / y
		}
	case IDiv:
		return func(x, y float64) float64 {
			if IsNADouble(x) || IsNADouble(y) {
				return NADouble()
			}
			return math.Floor(x / y)
		}
	case Mod:
		return func(x, y float64) float64 {
			if IsNADouble(x) || IsNADouble(y) {
				return NADouble()
			}
			return math.Mod(x, y)
		}
	case Pow:
		return func(x, y float64) float64 {
			if IsNADouble(x) || IsNADouble(y) {
				return NADouble()
			}
			return math.Pow(x, y)
		}
	}
	return func(x, y float64) float64 { return NADouble() }
}

// intArith implements integer arithmetic where overflow yields NA (§4.1,
// §7 Overflow) instead of trapping or silently truncating.
func intArith(op BinOp, a, b Value) (Value, error) {
	na, nb := length(a), length(b)
	n := na
	if nb > n {
		n = nb
	}
	if na == 0 || nb == 0 {
		return WithCapacity(Integer, 0), nil
	}
	sa, sb := a.AsSliceInteger(), b.AsSliceInteger()
	compute := func(x, y int64) int64 {
		if x == NAInt || y == NAInt {
			return NAInt
		}
		switch op {
		case Add:
			r := x + y
			if (y > 0 && r < x) || (y < 0 && r > x) {
				return NAInt
			}
			return r
		case Sub:
			r := x - y
			if (y < 0 && r < x) || (y > 0 && r > x) {
				return NAInt
			}
			return r
		case Mul:
			if x == 0 || y == 0 {
				return 0
			}
			r := x * y
			if r/y != x {
				return NAInt
			}
			return r
		case Mod:
			if y == 0 {
				return NAInt
			}
			return x % y
		case IDiv:
			if y == 0 {
				return NAInt
			}
			return int64(math.Floor(float64(x) / float64(y)))
		}
		return NAInt
	}
	if n == 1 {
		return ScalarInt(compute(sa[0], sb[0])), nil
	}
	out := WithCapacity(Integer, n)
	dst := out.Vec.Integers
	for i := 0; i < n; i++ {
		dst[i] = compute(sa[recycleIndex(i, na)], sb[recycleIndex(i, nb)])
	}
	return out, nil
}

func compare(op BinOp, a, b Value) (Value, error) {
	da, db := a, b
	var err error
	if a.Type() != b.Type() {
		da, err = As(Double, a)
		if err != nil {
			return Value{}, err
		}
		db, err = As(Double, b)
		if err != nil {
			return Value{}, err
		}
	}
	na, nb := length(da), length(db)
	n := na
	if nb > n {
		n = nb
	}
	if na == 0 || nb == 0 {
		return WithCapacity(Logical, 0), nil
	}
	cmp := cmpFunc(op, da.Type())
	if n == 1 {
		return ScalarLogical(cmp(da, db, 0, 0)), nil
	}
	out := WithCapacity(Logical, n)
	dst := out.Vec.Logicals
	for i := 0; i < n; i++ {
		dst[i] = cmp(da, db, recycleIndex(i, na), recycleIndex(i, nb))
	}
	return out, nil
}

func cmpFunc(op BinOp, t Tag) func(a, b Value, i, j int) byte {
	lt := func(a, b Value, i, j int) (byte, bool) {
		switch t {
		case Double:
			x, y := a.AsSliceDouble()[i], b.AsSliceDouble()[j]
			if IsNADouble(x) || IsNADouble(y) {
				return NALogical, false
			}
			return boolByte(evalOp(op, cmp3(x < y, x == y))), true
		case Integer:
			x, y := a.AsSliceInteger()[i], b.AsSliceInteger()[j]
			if x == NAInt || y == NAInt {
				return NALogical, false
			}
			return boolByte(evalOp(op, cmp3(x < y, x == y))), true
		default:
			return NALogical, false
		}
	}
	return func(a, b Value, i, j int) byte {
		r, _ := lt(a, b, i, j)
		return r
	}
}

type trichotomy struct{ less, eq bool }

func cmp3(less, eq bool) trichotomy { return trichotomy{less, eq} }

func evalOp(op BinOp, t trichotomy) bool {
	switch op {
	case Lt:
		return t.less
	case Le:
		return t.less || t.eq
	case Gt:
		return !t.less && !t.eq
	case Ge:
		return !t.less || t.eq
	case Eq:
		return t.eq
	case Neq:
		return !t.eq
	}
	return false
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// boolOp implements && / || with R's short-circuit-masks-NA rule (§8
// invariant 5): if one operand already determines the result, an NA on the
// other side does not propagate.
func boolOp(op BinOp, a, b Value) (Value, error) {
	la, err := As(Logical, a)
	if err != nil {
		return Value{}, err
	}
	lb, err := As(Logical, b)
	if err != nil {
		return Value{}, err
	}
	if length(la) == 0 || length(lb) == 0 {
		return Value{}, errors.NewLengthError(op2name(op), length(la), length(lb))
	}
	x, y := la.AsSliceLogical()[0], lb.AsSliceLogical()[0]
	switch op {
	case And:
		if x == 0 || y == 0 {
			return ScalarLogical(0), nil
		}
		if x == NALogical || y == NALogical {
			return ScalarLogical(NALogical), nil
		}
		return ScalarLogical(1), nil
	case Or:
		if x == 1 || y == 1 {
			return ScalarLogical(1), nil
		}
		if x == NALogical || y == NALogical {
			return ScalarLogical(NALogical), nil
		}
		return ScalarLogical(0), nil
	}
	return Value{}, errors.NewTypeError("logical", "unknown boolop")
}

func op2name(op BinOp) string {
	switch op {
	case And:
		return "&&"
	case Or:
		return "||"
	default:
		return "?"
	}
}

// Neg negates a numeric value element-wise, preserving NA.
func Neg(v Value) (Value, error) {
	switch v.Type() {
	case Integer:
		n := length(v)
		src := v.AsSliceInteger()
		if n == 1 {
			if src[0] == NAInt {
				return ScalarInt(NAInt), nil
			}
			return ScalarInt(-src[0]), nil
		}
		out := WithCapacity(Integer, n)
		for i, x := range src {
			if x == NAInt {
				out.Vec.Integers[i] = NAInt
			} else {
				out.Vec.Integers[i] = -x
			}
		}
		return out, nil
	case Double:
		n := length(v)
		src := v.AsSliceDouble()
		if n == 1 {
			if IsNADouble(src[0]) {
				return ScalarDouble(NADouble()), nil
			}
			return ScalarDouble(-src[0]), nil
		}
		out := WithCapacity(Double, n)
		for i, x := range src {
			if IsNADouble(x) {
				out.Vec.Doubles[i] = NADouble()
			} else {
				out.Vec.Doubles[i] = -x
			}
		}
		return out, nil
	}
	return Value{}, errors.NewTypeError("numeric", v.Type().String())
}
