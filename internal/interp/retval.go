package interp

import (
	"vecjit/internal/environment"
	"vecjit/internal/proto"
	"vecjit/internal/value"
)

// retval is the value returned from a call, examined once by closureSafe
// to decide whether the callee's environment can be recycled.
type retval = value.Value

// capturesEnv reports whether v (transitively, through lists nested to any
// depth) roots a closure in env, i.e. whether returning v leaks env out of the frame (§3
// Lifecycle, §9 "Cycles in environments").
func capturesEnv(v retval, env *environment.Environment) bool {
	switch v.Tag {
	case value.Function:
		if fn, ok := v.Ptr.(*proto.Function); ok {
			return envReachable(fn.Env, env)
		}
	case value.Promise:
		if p, ok := v.Ptr.(*proto.Promise); ok {
			return envReachable(p.Env, env)
		}
	case value.Environment:
		if e, ok := v.Ptr.(*environment.Environment); ok {
			return envReachable(e, env)
		}
	case value.List:
		if v.Vec != nil {
			for _, elem := range v.Vec.Lists {
				if capturesEnv(elem, env) {
					return true
				}
			}
		}
	}
	return false
}

func envReachable(from, target *environment.Environment) bool {
	for e := from; e != nil; e = e.Lexical {
		if e == target {
			return true
		}
	}
	return false
}
