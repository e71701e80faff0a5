package interp

import (
	"vecjit/internal/environment"
	"vecjit/internal/proto"
)

// Frame is a stack frame (§4.3 Shape): environment pointer, an
// owns-environment flag (for the free-list recycling described in §3
// Lifecycle), prototype pointer, the base to restore on return, and the
// frame's own PC. It holds no return PC or result register: the caller's
// step resumes through Go's call stack and writes the result itself.
type Frame struct {
	Env        *environment.Environment
	OwnsEnv    bool
	Proto      *proto.Prototype
	ReturnBase int

	pcIdx int
}

// PC reports the frame's current program counter. Exported for the
// trace recorder, which needs it both to anchor a Trace's start point
// and to read back where Step left off after each mirrored instruction.
func (f *Frame) PC() int { return f.pcIdx }

func (f *Frame) setPC(pc int) { f.pcIdx = pc }

// envFreeList recycles call-frame Environments that do not escape
// (§3 Lifecycle: "placed on a free-list on return if the callee does not
// leak a reference"). Guarded by a package-level pool rather than per-VM
// state because the check (closureSafe) is already serialized by the
// single interpreter thread (§5 Shared resource policy).
var envFreeList []*environment.Environment

func recycleEnv(e *environment.Environment) {
	if len(envFreeList) < 256 {
		envFreeList = append(envFreeList, e)
	}
}

func acquireEnv(lexical *environment.Environment) *environment.Environment {
	if n := len(envFreeList); n > 0 {
		e := envFreeList[n-1]
		envFreeList = envFreeList[:n-1]
		*e = *environment.New(lexical)
		return e
	}
	return environment.New(lexical)
}

// closureSafe decides whether a frame's environment may be recycled: it is
// unsafe exactly when the returned value (or something it transitively
// captured) is a Function/Promise/Environment rooted at this frame's
// environment, i.e. a closure leaked it (§3 Lifecycle, §9 "Cycles in
// environments").
func closureSafe(env *environment.Environment, result retval) bool {
	return !capturesEnv(result, env)
}
