package interp

import (
	"math"

	"vecjit/internal/errors"
	"vecjit/internal/proto"
	"vecjit/internal/value"
)

// step executes one instruction of frame and reports whether that
// instruction returned from the current frame; loop compares the frame
// depth against its own target to decide whether its Run has finished.
func (it *Interp) step(frame *Frame, ins proto.Instruction) (value.Value, bool, error) {
	p := frame.Proto
	advance := true

	switch proto.Opcode(ins.ThreadedTarget) {
	case proto.OpKGet:
		*it.Reg(ins.A) = p.Constants[ins.B]

	case proto.OpIGet:
		name := p.Constants[ins.B].AsSymbolName()
		v, _ := it.Globals.Get(name)
		*it.Reg(ins.A) = v

	case proto.OpIAssign:
		name := p.Constants[ins.B].AsSymbolName()
		it.Globals.Assign(name, *it.Reg(ins.A))

	case proto.OpGet:
		name := p.Constants[ins.B].AsSymbolName()
		v, err := frame.Env.FindInChain(name)
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = it.force(v)

	case proto.OpAssign:
		name := p.Constants[ins.B].AsSymbolName()
		frame.Env.Assign(name, *it.Reg(ins.A))

	case proto.OpEAssign:
		target := it.Reg(ins.A)
		idx := it.Reg(ins.B)
		*target = assignIndexed(*target, *idx, *it.Reg(ins.C))

	case proto.OpJmp:
		frame.pcIdx += int(ins.B)
		advance = false

	case proto.OpJt:
		truthy, err := isTruthy(*it.Reg(ins.A))
		if err != nil {
			return value.Value{}, false, err
		}
		if truthy {
			frame.pcIdx += int(ins.B)
			advance = false
		}

	case proto.OpJf:
		truthy, err := isTruthy(*it.Reg(ins.A))
		if err != nil {
			return value.Value{}, false, err
		}
		if !truthy {
			frame.pcIdx += int(ins.B)
			advance = false
		}

	case proto.OpForBegin:
		// R(A) = loop counter register, R(B) = limit register; C is the
		// relative jump taken to skip the body once the counter is past
		// the limit. The counter always advances by 1 (see stepCounter).
		counter := it.Reg(ins.A)
		limit := it.Reg(ins.B)
		if forDone(*counter, *limit) {
			frame.pcIdx += int(ins.C)
			advance = false
		}

	case proto.OpForEnd:
		it.hotCounts[frame.pcIdx]++
		if it.Tracer != nil && !it.recording && it.Cfg.HotPathQualifies(it.hotCounts[frame.pcIdx]) {
			frame.pcIdx = it.Tracer.Record(it, frame.pcIdx)
			advance = false
			break
		}
		counter := it.Reg(ins.A)
		*counter = stepCounter(*counter)
		frame.pcIdx += int(ins.B)
		advance = false

	case proto.OpRet:
		result := *it.Reg(ins.A)
		return it.doReturn(result), true, nil

	case proto.OpDone:
		return it.doReturn(value.NullValue()), true, nil

	case proto.OpAdd, proto.OpSub, proto.OpMul, proto.OpDiv, proto.OpIDiv, proto.OpMod, proto.OpPow,
		proto.OpEq, proto.OpNeq, proto.OpLt, proto.OpLe, proto.OpGt, proto.OpGe, proto.OpAnd, proto.OpOr:
		a, b := *it.Reg(ins.B), *it.Reg(ins.C)
		if it.maybeRecordHotArith(frame, ins, a, b) {
			advance = false
			break
		}
		r, err := value.Arith(opFor(proto.Opcode(ins.ThreadedTarget)), a, b)
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpNeg:
		r, err := value.Neg(*it.Reg(ins.B))
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpPos:
		*it.Reg(ins.A) = *it.Reg(ins.B)

	case proto.OpNot:
		b := *it.Reg(ins.B)
		l, err := value.As(value.Logical, b)
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = notLogical(l)

	case proto.OpFold:
		r, err := fold(foldKind(ins.C), *it.Reg(ins.B))
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpSubset:
		r, err := subset(*it.Reg(ins.B), *it.Reg(ins.C))
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpColon:
		r, err := colonSeq(*it.Reg(ins.B), *it.Reg(ins.C))
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpSubset2:
		// [[ ]] unwraps one level; our List representation already stores
		// unwrapped elements, so this is subset's element access.
		r, err := subset(*it.Reg(ins.B), *it.Reg(ins.C))
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpSeq:
		r, err := colonSeq(*it.Reg(ins.B), *it.Reg(ins.C))
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpRaw1:
		// No distinct raw-byte vector type is modeled (§1 Non-goals); raw
		// coercion is the identity.
		*it.Reg(ins.A) = *it.Reg(ins.B)

	case proto.OpType:
		*it.Reg(ins.A) = value.NewSymbol(it.Reg(ins.B).Type().String())

	case proto.OpLogical1, proto.OpInteger1, proto.OpDouble1, proto.OpCharacter1:
		t := coercionTarget(proto.Opcode(ins.ThreadedTarget))
		src := *it.Reg(ins.B)
		r, err := value.As(t, src)
		if err != nil {
			return value.Value{}, false, err
		}
		if t == value.Integer && src.Type() == value.Double && it.OnWarn != nil && losesFraction(src) {
			it.OnWarn("NAs introduced by coercion to integer (fractional part discarded)")
		}
		*it.Reg(ins.A) = r

	case proto.OpFunction:
		child := p.Children[ins.B]
		*it.Reg(ins.A) = value.FromPtr(value.Function, &proto.Function{Proto: child, Env: frame.Env})

	case proto.OpCall:
		r, err := it.execCall(frame, ins)
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	case proto.OpUseMethod:
		r, err := it.execUseMethod(frame, ins)
		if err != nil {
			return value.Value{}, false, err
		}
		*it.Reg(ins.A) = r

	default:
		return value.Value{}, false, errors.NewTypeError("known opcode", "unhandled opcode")
	}

	if advance {
		frame.pcIdx++
	}
	return value.Value{}, false, nil
}

// doReturn pops the current frame, returning its result. Writing the
// result into the caller's destination register and advancing the
// caller's pc is the job of the ordinary post-instruction "advance" step
// in step(), since execCall/execUseMethod's Go-level return value already
// carries result back to the calling step() invocation.
func (it *Interp) doReturn(result value.Value) value.Value {
	frame := &it.frames[it.frameTop-1]
	if frame.OwnsEnv && closureSafe(frame.Env, result) {
		recycleEnv(frame.Env)
	}
	it.base = frame.ReturnBase
	it.frameTop--
	it.frames = it.frames[:it.frameTop]
	return result
}

// force resolves a promise on first read and memoizes the result into the
// value it returns (§3 Function/Promise, §9 "Promises and lazy argument
// evaluation"): the mutable cell starts as a closure and transitions at
// most once to a concrete value.
func (it *Interp) force(v value.Value) value.Value {
	if v.Tag != value.Promise {
		return v
	}
	p, ok := v.Ptr.(*proto.Promise)
	if !ok {
		return v
	}
	if p.IsResolved() {
		return p.Value()
	}
	result, err := it.Run(p.Proto, p.Env)
	if err != nil {
		panic(err)
	}
	p.Resolve(result)
	return result
}

func isTruthy(v value.Value) (bool, error) {
	l, err := value.As(value.Logical, v)
	if err != nil {
		return false, err
	}
	if length1(l) == 0 {
		return false, errors.NewTypeError("non-empty condition", "length-0")
	}
	b := l.AsSliceLogical()[0]
	if b == value.NALogical {
		return false, errors.NewTypeError("TRUE/FALSE", "NA")
	}
	return b == 1, nil
}

func length1(v value.Value) int {
	if v.Vec != nil {
		return v.Vec.Len()
	}
	return int(v.Length)
}

func forDone(counter, limit value.Value) bool {
	c, l := counter.AsIntScalar(), limit.AsIntScalar()
	return c > l
}

func stepCounter(counter value.Value) value.Value {
	return value.ScalarInt(counter.AsIntScalar() + 1)
}

func notLogical(l value.Value) value.Value {
	n := length1(l)
	if n == 1 {
		b := l.AsSliceLogical()[0]
		if b == value.NALogical {
			return value.ScalarLogical(value.NALogical)
		}
		return value.ScalarLogical(1 - b)
	}
	out := value.WithCapacity(value.Logical, n)
	src := l.AsSliceLogical()
	for i, b := range src {
		if b == value.NALogical {
			out.Vec.Logicals[i] = value.NALogical
		} else {
			out.Vec.Logicals[i] = 1 - b
		}
	}
	return out
}

func opFor(op proto.Opcode) value.BinOp {
	switch op {
	case proto.OpAdd:
		return value.Add
	case proto.OpSub:
		return value.Sub
	case proto.OpMul:
		return value.Mul
	case proto.OpDiv:
		return value.Div
	case proto.OpIDiv:
		return value.IDiv
	case proto.OpMod:
		return value.Mod
	case proto.OpPow:
		return value.Pow
	case proto.OpEq:
		return value.Eq
	case proto.OpNeq:
		return value.Neq
	case proto.OpLt:
		return value.Lt
	case proto.OpLe:
		return value.Le
	case proto.OpGt:
		return value.Gt
	case proto.OpGe:
		return value.Ge
	case proto.OpAnd:
		return value.And
	case proto.OpOr:
		return value.Or
	}
	return value.Add
}

func coercionTarget(op proto.Opcode) value.Tag {
	switch op {
	case proto.OpLogical1:
		return value.Logical
	case proto.OpInteger1:
		return value.Integer
	case proto.OpDouble1:
		return value.Double
	case proto.OpCharacter1:
		return value.Character
	}
	return value.Double
}

// losesFraction reports whether coercing src (a Double) to Integer would
// discard a non-zero fractional part of at least one element (§4.3
// [EXPANDED] Warnings).
func losesFraction(src value.Value) bool {
	check := func(f float64) bool {
		return !value.IsNADouble(f) && f != float64(int64(f))
	}
	if src.IsScalar() {
		return check(src.AsDoubleScalar())
	}
	for _, f := range src.AsSliceDouble() {
		if check(f) {
			return true
		}
	}
	return false
}

// maybeRecordHotArith implements §4.3 Hot-path detection for a unary/binary
// arith op whose operand lengths are > W and W-aligned: dispatch to the
// Tracer instead of interpreting it directly.
func (it *Interp) maybeRecordHotArith(frame *Frame, ins proto.Instruction, a, b value.Value) bool {
	if it.Tracer == nil || it.recording {
		return false
	}
	la, lb := length1(a), length1(b)
	n := la
	if lb > n {
		n = lb
	}
	if !it.Cfg.HotPathQualifies(n) {
		return false
	}
	frame.pcIdx = it.Tracer.Record(it, frame.pcIdx)
	return true
}

// assignIndexed implements eassign: R(A)[R(B)] = R(C) for vector targets;
// when the index is at or past the end it copies the target into a new
// vector of length index+1 first, the way reshape/scatter grow a target on
// the compiled path (§4.4 reshape).
func assignIndexed(target, idx, val value.Value) value.Value {
	i := int(idx.AsIntScalar())
	if i < 0 {
		panic(errors.NewOutOfBounds(i, length1(target)))
	}
	n := length1(target)
	if i >= n {
		grown := value.WithCapacity(target.Type(), i+1)
		copyInto(grown, target)
		target = grown
		n = i + 1
	}
	setAt(target, i, val)
	return target
}

func copyInto(dst, src value.Value) {
	switch dst.Type() {
	case value.Double:
		copy(dst.Vec.Doubles, src.AsSliceDouble())
	case value.Integer:
		copy(dst.Vec.Integers, src.AsSliceInteger())
	case value.Logical:
		copy(dst.Vec.Logicals, src.AsSliceLogical())
	case value.Character:
		copy(dst.Vec.Characters, src.AsSliceCharacter())
	}
}

func setAt(target value.Value, i int, val value.Value) {
	switch target.Type() {
	case value.Double:
		d, _ := value.As(value.Double, val)
		target.Vec.Doubles[i] = d.AsDoubleScalar()
	case value.Integer:
		d, _ := value.As(value.Integer, val)
		target.Vec.Integers[i] = d.AsIntScalar()
	case value.Logical:
		d, _ := value.As(value.Logical, val)
		target.Vec.Logicals[i] = d.AsLogicalScalar()
	case value.Character:
		target.Vec.Characters[i] = val.AsCharacterScalar()
	}
}

func subset(v, idx value.Value) (value.Value, error) {
	i := int(idx.AsIntScalar())
	n := length1(v)
	if i < 0 || i >= n {
		return value.Value{}, errors.NewOutOfBounds(i, n)
	}
	switch v.Type() {
	case value.Double:
		return value.ScalarDouble(v.AsSliceDouble()[i]), nil
	case value.Integer:
		return value.ScalarInt(v.AsSliceInteger()[i]), nil
	case value.Logical:
		return value.ScalarLogical(v.AsSliceLogical()[i]), nil
	case value.Character:
		return value.ScalarCharacter(v.AsSliceCharacter()[i]), nil
	case value.List:
		return v.Vec.Lists[i], nil
	}
	return value.Value{}, errors.NewTypeError("subsettable", v.Type().String())
}

func colonSeq(from, to value.Value) (value.Value, error) {
	a, b := from.AsIntScalar(), to.AsIntScalar()
	step := int64(1)
	if b < a {
		step = -1
	}
	n := int((b-a)/step) + 1
	if n == 1 {
		return value.ScalarInt(a), nil
	}
	out := value.WithCapacity(value.Integer, n)
	dst := out.Vec.Integers
	for i := 0; i < n; i++ {
		dst[i] = a + int64(i)*step
	}
	return out, nil
}

// foldKind/fold implement the reduction opcodes §4.3 groups under "fold":
// sum, prod, min, max, length, all, any, mean, and the central second
// moment (cm2) used by the mean merge in §9.
type foldOp int

const (
	foldSum foldOp = iota
	foldProd
	foldMin
	foldMax
	foldLength
	foldAll
	foldAny
	foldMean
	foldCM2
)

func foldKind(c int32) foldOp { return foldOp(c) }

func fold(op foldOp, v value.Value) (value.Value, error) {
	if op == foldLength {
		return value.ScalarInt(int64(length1(v))), nil
	}
	d, err := value.As(value.Double, v)
	if err != nil && op != foldAll && op != foldAny {
		return value.Value{}, err
	}
	switch op {
	case foldSum:
		sum := 0.0
		for _, x := range d.AsSliceDouble() {
			if value.IsNADouble(x) {
				return value.ScalarDouble(value.NADouble()), nil
			}
			sum += x
		}
		return value.ScalarDouble(sum), nil
	case foldProd:
		prod := 1.0
		for _, x := range d.AsSliceDouble() {
			if value.IsNADouble(x) {
				return value.ScalarDouble(value.NADouble()), nil
			}
			prod *= x
		}
		return value.ScalarDouble(prod), nil
	case foldMin:
		m := math.Inf(1)
		for _, x := range d.AsSliceDouble() {
			if value.IsNADouble(x) {
				return value.ScalarDouble(value.NADouble()), nil
			}
			if x < m {
				m = x
			}
		}
		return value.ScalarDouble(m), nil
	case foldMax:
		m := math.Inf(-1)
		for _, x := range d.AsSliceDouble() {
			if value.IsNADouble(x) {
				return value.ScalarDouble(value.NADouble()), nil
			}
			if x > m {
				m = x
			}
		}
		return value.ScalarDouble(m), nil
	case foldMean, foldCM2:
		n := 0.0
		mean := 0.0
		m2 := 0.0
		for _, x := range d.AsSliceDouble() {
			if value.IsNADouble(x) {
				return value.ScalarDouble(value.NADouble()), nil
			}
			n++
			delta := x - mean
			mean += delta / n
			m2 += delta * (x - mean)
		}
		if op == foldMean {
			return value.ScalarDouble(mean), nil
		}
		return value.ScalarDouble(m2), nil
	case foldAll:
		l, err := value.As(value.Logical, v)
		if err != nil {
			return value.Value{}, err
		}
		for _, b := range l.AsSliceLogical() {
			if b == value.NALogical {
				return value.ScalarLogical(value.NALogical), nil
			}
			if b == 0 {
				return value.ScalarLogical(0), nil
			}
		}
		return value.ScalarLogical(1), nil
	case foldAny:
		l, err := value.As(value.Logical, v)
		if err != nil {
			return value.Value{}, err
		}
		sawNA := false
		for _, b := range l.AsSliceLogical() {
			if b == 1 {
				return value.ScalarLogical(1), nil
			}
			if b == value.NALogical {
				sawNA = true
			}
		}
		if sawNA {
			return value.ScalarLogical(value.NALogical), nil
		}
		return value.ScalarLogical(0), nil
	}
	return value.Value{}, errors.NewTypeError("known fold", "unknown")
}
