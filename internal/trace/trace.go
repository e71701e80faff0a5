// Package trace implements the trace recorder (§4.5): it shadow-interprets
// a hot loop, mirroring each executed bytecode into a linear IR (package
// ir) until the loop closes, a guard can't be represented, a recording
// budget is hit, or a nested recording is attempted.
package trace

import (
	"vecjit/internal/ir"
	"vecjit/internal/proto"

	"github.com/google/uuid"
)

// Snapshot maps live interpreter register slots to the IR ref holding
// their value at the point the snapshot was taken (§3 Trace/Snapshot):
// "an entry snapshot (slot → IR ref) recording interpreter state at
// record time."
type Snapshot struct {
	PC    int
	Slots map[int32]int
}

// ExitStub is one compiled side exit: the guard node that can take it,
// the snapshot needed to resume interpretation from it, and a TakenCount
// field for the "exit chaining" feature (§6.1). Nothing in the engine
// increments TakenCount or sets Installed; they stay at their zero values.
type ExitStub struct {
	GuardRef   int
	Snapshot   Snapshot
	TakenCount int
	Installed  bool
}

// Trace is a recorded loop: its IR, the prototype and PC it is anchored
// to, the entry snapshot, and one ExitStub per guard emitted during
// recording (§3 Trace/Snapshot). ID namespaces the trace's eventual
// compiled symbol names so re-entrant or recursive prototypes never
// collide in the JIT's process-wide symbol table.
type Trace struct {
	ID uuid.UUID

	Proto   *proto.Prototype
	StartPC int

	IR    ir.Trace
	Entry Snapshot
	Exits []ExitStub

	// Installed is set once a Linker has mapped compiled code for this
	// trace into executable memory (§4.7); recording itself never sets it.
	Installed bool
}

// NewTrace begins a Trace anchored at (p, startPC) with a fresh identity.
func NewTrace(p *proto.Prototype, startPC int) *Trace {
	return &Trace{ID: uuid.New(), Proto: p, StartPC: startPC}
}
