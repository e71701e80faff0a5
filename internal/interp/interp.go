// Package interp implements the register-based, threaded-dispatch bytecode
// interpreter (§4.3): the call/return/environment model, the calling
// convention, and the hot-path detection hook the trace recorder attaches
// to.
package interp

import (
	"vecjit/internal/config"
	"vecjit/internal/environment"
	"vecjit/internal/errors"
	"vecjit/internal/proto"
	"vecjit/internal/value"
)

// Tracer is the hook the trace recorder (package trace) implements. On a
// qualifying back-edge or hot arith op (§4.3 Hot-path detection, §4.5
// Start condition) the interpreter hands control to it; Tracer performs a
// shadow interpretation (executing instructions for real while mirroring
// them as IR) and returns the PC to resume ordinary dispatch at.
type Tracer interface {
	Record(it *Interp, startPC int) (nextPC int)
}

// Interp is one interpreter instance: a flat register file addressed
// through a moving base pointer, a call stack of Frames, and the global
// environment (§4.3 Shape).
type Interp struct {
	Cfg config.Config

	registers []value.Value
	base      int // absolute index of register 0 for the current frame

	frames   []Frame
	frameTop int

	Globals *environment.Environment

	Tracer   Tracer
	OnWarn   func(msg string)

	// hotCounts tracks back-edge execution counts per (proto,pc) for
	// the >W W-aligned qualifying check in §4.3; keyed by pc since a
	// Prototype's own identity is implicit in "current frame".
	hotCounts map[int]int

	// recording is set for the duration of a Tracer.Record call so that
	// step() does not attempt to dispatch to the Tracer again for a loop
	// nested inside the one already being shadow-interpreted (§4.5
	// Termination (d), "a nested recording is attempted"): rather than
	// raising and catching a RecordAbort, the inner loop is simply
	// interpreted for real, which is the abort's only visible effect.
	recording bool
}

func New(cfg config.Config) *Interp {
	return &Interp{
		Cfg:       cfg,
		registers: make([]value.Value, 4096),
		frames:    make([]Frame, 0, cfg.MaxCallDepth),
		Globals:   environment.New(nil),
		hotCounts: make(map[int]int),
	}
}

func (it *Interp) ensureRegisters(n int) {
	if n <= len(it.registers) {
		return
	}
	newSize := len(it.registers) * 2
	if newSize < n {
		newSize = n
	}
	if newSize > it.Cfg.MaxRegisters {
		panic(errors.NewRegisterOverflow())
	}
	grown := make([]value.Value, newSize)
	copy(grown, it.registers)
	it.registers = grown
}

// Reg returns a pointer to register i of the current frame, growing the
// register file if necessary.
func (it *Interp) Reg(i int32) *value.Value {
	idx := it.base + int(i)
	it.ensureRegisters(idx + 1)
	return &it.registers[idx]
}

// RegAt is Reg relative to an explicit base, used by trace exit stubs that
// reconstruct a snapshot for a frame other than the currently active one.
func (it *Interp) RegAt(base int, i int32) *value.Value {
	idx := base + int(i)
	it.ensureRegisters(idx + 1)
	return &it.registers[idx]
}

func (it *Interp) Base() int { return it.base }

func (it *Interp) CurrentFrame() *Frame {
	if it.frameTop == 0 {
		return nil
	}
	return &it.frames[it.frameTop-1]
}

// Recording reports whether a Tracer is currently shadow-interpreting
// through Step.
func (it *Interp) Recording() bool { return it.recording }

// SetRecording toggles the recording flag; the trace recorder brackets
// its whole shadow-interpretation session with it.
func (it *Interp) SetRecording(b bool) { it.recording = b }

// Step executes exactly one instruction of the current frame, the same
// per-instruction unit loop() drives itself. Exported for the trace
// recorder (§4.5 Protocol): "the recording interpreter executes each
// bytecode normally AND emits IR" — Step is how it performs the "normal"
// half while the recorder performs the IR-emitting half alongside it.
func (it *Interp) Step() (value.Value, bool, error) {
	frame := it.CurrentFrame()
	if frame == nil {
		return value.NullValue(), true, nil
	}
	if frame.pcIdx >= len(frame.Proto.Code) {
		return it.doReturn(value.NullValue()), true, nil
	}
	return it.step(frame, frame.Proto.Code[frame.pcIdx])
}

// threadPrototype assigns (or reuses) each live opcode its handler index; a
// Prototype is threaded exactly once, on first entry (§4.3 Dispatch).
func threadPrototype(p *proto.Prototype) {
	if p.Threaded {
		return
	}
	for i := range p.Code {
		p.Code[i].ThreadedTarget = int32(p.Code[i].Op)
	}
	p.Threaded = true
}

// Run executes p in env starting at pc 0 until it returns, via computed
// dispatch on p.Code[i].ThreadedTarget once threaded, equivalent in effect
// to the portable switch in step (§4.3 "A portable switch variant is
// required to be equivalent"). It may be called re-entrantly (a promise
// forced mid-bytecode, a call instruction) because every invocation tracks
// the stack depth it started at and only returns once that depth is
// popped back to.
func (it *Interp) Run(p *proto.Prototype, env *environment.Environment) (value.Value, error) {
	return it.call(p, env, false)
}

// call pushes a new frame for p and drives the dispatch loop until that
// specific frame (and everything it transitively called) has returned.
func (it *Interp) call(p *proto.Prototype, env *environment.Environment, ownsEnv bool) (value.Value, error) {
	threadPrototype(p)
	targetDepth := it.frameTop
	it.pushFrame(p, env, ownsEnv)
	return it.loop(targetDepth)
}

// pushFrame grows the register window by the caller's register count (not
// the callee's, which is unknown structurally across prototypes) and
// records the base to restore on return.
func (it *Interp) pushFrame(p *proto.Prototype, env *environment.Environment, ownsEnv bool) {
	if len(it.frames) >= it.Cfg.MaxCallDepth {
		panic(errors.NewRegisterOverflow())
	}
	newBase := it.base
	if it.frameTop > 0 {
		newBase = it.base + it.frames[it.frameTop-1].Proto.NumRegisters
	}
	it.ensureRegisters(newBase + p.NumRegisters + 1)
	it.frames = append(it.frames, Frame{
		Env:        env,
		OwnsEnv:    ownsEnv,
		Proto:      p,
		ReturnBase: it.base,
	})
	it.frameTop++
	it.base = newBase
}

// loop is the dispatch core shared by both the threaded and the portable
// entry points: every Opcode value is also its own ThreadedTarget once
// threaded, so a single switch implements both (§9 "Threaded dispatch vs.
// portable switch": the rewrite is an optimization, never a distinct
// contract). It returns as soon as the frame at targetDepth has popped.
func (it *Interp) loop(targetDepth int) (value.Value, error) {
	for {
		frame := &it.frames[it.frameTop-1]
		code := frame.Proto.Code
		if frame.pcIdx >= len(code) {
			result := it.doReturn(value.NullValue())
			if it.frameTop <= targetDepth {
				return result, nil
			}
			continue
		}
		ins := code[frame.pcIdx]
		result, returned, err := it.step(frame, ins)
		if err != nil {
			it.unwindTo(targetDepth)
			return value.Value{}, err
		}
		if returned && it.frameTop <= targetDepth {
			return result, nil
		}
	}
}

// ResumeAt pushes a frame for (p, env) and positions it at pc instead of 0:
// the entry point a side exit resumes into once a compiled trace hands
// control back to the interpreter (§4.7, a guard's Snapshot.PC). It does
// not drive the dispatch loop itself; the caller (ordinarily the runtime
// package's exit-stub handler, or a test harness driving Step directly)
// does that afterward.
func (it *Interp) ResumeAt(p *proto.Prototype, env *environment.Environment, ownsEnv bool, pc int) {
	threadPrototype(p)
	it.pushFrame(p, env, ownsEnv)
	it.CurrentFrame().setPC(pc)
}

// unwindTo discards frames down to targetDepth and restores base, the
// nearest-handler-frame unwind described in §4.3 Failure / §7 Propagation.
// The base to resume at is the ReturnBase recorded when the first
// discarded frame was pushed: that value was "the base in effect just
// before it", i.e. exactly the base of the frame staying on top.
func (it *Interp) unwindTo(targetDepth int) {
	if targetDepth < len(it.frames) {
		it.base = it.frames[targetDepth].ReturnBase
	}
	it.frames = it.frames[:targetDepth]
	it.frameTop = targetDepth
}
