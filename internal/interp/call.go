package interp

import (
	"strings"

	"vecjit/internal/environment"
	"vecjit/internal/errors"
	"vecjit/internal/proto"
	"vecjit/internal/value"
)

// execCall implements the §4.3 calling convention for a call instruction:
// R(C) holds the callee, CallSites[ins.B] the pre-built argument list
// (B indexes CallSites directly). Matching proceeds exact name, then unambiguous partial prefix,
// then positional, with anything left over collected into "...".
func (it *Interp) execCall(frame *Frame, ins proto.Instruction) (value.Value, error) {
	callee := *it.Reg(ins.C)
	fn, ok := callee.Ptr.(*proto.Function)
	if !ok {
		return value.Value{}, errors.NewNonFunctionCall(callee.Type().String())
	}
	cs := frame.Proto.CallSites[ins.B]
	env := acquireEnv(fn.Env)
	bindArguments(it, frame, cs, fn.Proto, env)
	return it.call(fn.Proto, env, true)
}

// bindArguments matches cs's actuals (read out of the caller's registers)
// against callee's formal parameters and populates env accordingly,
// filling unmatched formals from their default-value promise and routing
// unmatched actuals into "..." (§4.3 Calling convention).
func bindArguments(it *Interp, frame *Frame, cs *proto.CompiledCall, callee *proto.Prototype, env *environment.Environment) {
	params := callee.ParamNames
	n := len(cs.Args)
	used := make([]bool, n)
	filled := make([]bool, len(params))
	matched := make([]value.Value, len(params))

	argVal := func(i int) value.Value { return *it.Reg(cs.Args[i]) }

	// 1. exact name match.
	for i, nm := range cs.Names {
		if nm == "" {
			continue
		}
		for pi, pn := range params {
			if !filled[pi] && pn == nm {
				matched[pi], filled[pi], used[i] = argVal(i), true, true
				break
			}
		}
	}

	// 2. unambiguous partial (prefix) match among remaining named actuals.
	for i, nm := range cs.Names {
		if nm == "" || used[i] {
			continue
		}
		candidate, ambiguous := -1, false
		for pi, pn := range params {
			if !filled[pi] && strings.HasPrefix(pn, nm) {
				if candidate != -1 {
					ambiguous = true
					break
				}
				candidate = pi
			}
		}
		if candidate != -1 && !ambiguous {
			matched[candidate], filled[candidate], used[i] = argVal(i), true, true
		}
	}

	// 3. positional fill: unnamed actuals, in call-site order, against
	// remaining unfilled formals in declaration order.
	pi := 0
	for i := range cs.Args {
		if used[i] || cs.Names[i] != "" {
			continue
		}
		for pi < len(params) && filled[pi] {
			pi++
		}
		if pi < len(params) {
			matched[pi], filled[pi], used[i] = argVal(i), true, true
			pi++
		}
	}

	// 4. everything left (unmatched named or surplus positional) goes to
	// "...", preserving names (§4.3: "appended to the callee's ... with
	// their names preserved").
	var dots []environment.DotArg
	for i := range cs.Args {
		if used[i] {
			continue
		}
		dots = append(dots, environment.DotArg{Name: cs.Names[i], Value: argVal(i)})
	}

	for pi, pn := range params {
		switch {
		case filled[pi]:
			env.Assign(pn, matched[pi])
		case callee.ParamDefaults[pi] != nil:
			env.Assign(pn, value.FromPtr(value.Promise, proto.NewPromise(callee.ParamDefaults[pi], env)))
		default:
			env.Assign(pn, value.NullValue())
		}
	}
	env.Dots = dots
}

// execUseMethod implements class-directed dispatch (§4.3 UseMethod): the
// generic name is K(B), the dispatch object is already in R(A). The
// lexical chain is searched for generic.class[0], falling back to
// generic.default; the callee environment gets .Generic/.Method/.Class
// bound ahead of the ordinary parameter bindings.
func (it *Interp) execUseMethod(frame *Frame, ins proto.Instruction) (value.Value, error) {
	p := frame.Proto
	generic := p.Constants[ins.B].AsSymbolName()
	obj := *it.Reg(ins.A)

	classes := value.ClassOf(obj)
	var method string
	var fn *proto.Function
	for _, cls := range append(classes, "default") {
		name := generic + "." + cls
		v, err := frame.Env.FindInChain(name)
		if err != nil {
			continue
		}
		f, ok := v.Ptr.(*proto.Function)
		if !ok {
			continue
		}
		method, fn = name, f
		break
	}
	if fn == nil {
		return value.Value{}, errors.NewNoMethod(generic, classOrImplicit(classes))
	}

	env := acquireEnv(fn.Env)
	if len(fn.Proto.ParamNames) > 0 {
		env.Assign(fn.Proto.ParamNames[0], obj)
	}
	env.Assign(".Generic", value.NewSymbol(generic))
	env.Assign(".Method", value.NewSymbol(method))
	env.Assign(".Class", classVectorValue(classes))
	return it.call(fn.Proto, env, true)
}

func classOrImplicit(classes []string) string {
	if len(classes) == 0 {
		return "<unknown>"
	}
	return classes[0]
}

// classVectorValue boxes a class vector as a List of Symbol-boxed names: the engine has no interned-string table (§1
// Non-goals), so a class vector is represented the same way a Symbol's
// name is, one element at a time.
func classVectorValue(classes []string) value.Value {
	out := value.WithCapacity(value.List, len(classes))
	for i, c := range classes {
		out.Vec.Lists[i] = value.NewSymbol(c)
	}
	return out
}
