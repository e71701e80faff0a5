package value

import "vecjit/internal/errors"

// As coerces v to the element type t. integer<->double<->logical are total
// and NA-preserving; character->numeric is a typed error (§4.1).
func As(t Tag, v Value) (Value, error) {
	if v.Type() == t {
		return v, nil
	}
	switch t {
	case Double:
		return asDouble(v)
	case Integer:
		return asInteger(v)
	case Logical:
		return asLogical(v)
	case Character:
		return Value{}, errors.NewTypeError("character", v.Type().String())
	}
	return Value{}, errors.NewTypeError(t.String(), v.Type().String())
}

func length(v Value) int {
	if v.Vec != nil {
		return v.Vec.Len()
	}
	return int(v.Length)
}

func asDouble(v Value) (Value, error) {
	n := length(v)
	conv := func(i int) float64 {
		switch v.Type() {
		case Integer:
			x := v.AsSliceInteger()[i]
			if x == NAInt {
				return NADouble()
			}
			return float64(x)
		case Logical:
			x := v.AsSliceLogical()[i]
			if x == NALogical {
				return NADouble()
			}
			return float64(x)
		default:
			return NADouble()
		}
	}
	switch v.Type() {
	case Integer, Logical:
	default:
		return Value{}, errors.NewTypeError("double", v.Type().String())
	}
	if n == 1 {
		return ScalarDouble(conv(0)), nil
	}
	out := WithCapacity(Double, n)
	dst := out.Vec.Doubles
	for i := 0; i < n; i++ {
		dst[i] = conv(i)
	}
	return out, nil
}

func asInteger(v Value) (Value, error) {
	n := length(v)
	conv := func(i int) int64 {
		switch v.Type() {
		case Double:
			x := v.AsSliceDouble()[i]
			if IsNADouble(x) {
				return NAInt
			}
			return int64(x)
		case Logical:
			x := v.AsSliceLogical()[i]
			if x == NALogical {
				return NAInt
			}
			return int64(x)
		default:
			return NAInt
		}
	}
	switch v.Type() {
	case Double, Logical:
	default:
		return Value{}, errors.NewTypeError("integer", v.Type().String())
	}
	if n == 1 {
		return ScalarInt(conv(0)), nil
	}
	out := WithCapacity(Integer, n)
	dst := out.Vec.Integers
	for i := 0; i < n; i++ {
		dst[i] = conv(i)
	}
	return out, nil
}

func asLogical(v Value) (Value, error) {
	n := length(v)
	conv := func(i int) byte {
		switch v.Type() {
		case Integer:
			x := v.AsSliceInteger()[i]
			if x == NAInt {
				return NALogical
			}
			if x != 0 {
				return 1
			}
			return 0
		case Double:
			x := v.AsSliceDouble()[i]
			if IsNADouble(x) {
				return NALogical
			}
			if x != 0 {
				return 1
			}
			return 0
		default:
			return NALogical
		}
	}
	switch v.Type() {
	case Integer, Double:
	default:
		return Value{}, errors.NewTypeError("logical", v.Type().String())
	}
	if n == 1 {
		return ScalarLogical(conv(0)), nil
	}
	out := WithCapacity(Logical, n)
	dst := out.Vec.Logicals
	for i := 0; i < n; i++ {
		dst[i] = conv(i)
	}
	return out, nil
}
