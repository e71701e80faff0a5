// Package config holds the engine's tunable constants (§9 "the exact width
// W is a tunable constant"). A single Config value is threaded through the
// interpreter, recorder, optimizer and code generator instead of package
// globals, so multiple engines (e.g. one per test) never share state.
package config

// Config collects every tunable the spec calls out as "preserve the check,
// not the literal value".
type Config struct {
	// SIMDWidth (W) is the number of doubles per SIMD lane vector. The
	// hot-path alignment check in §4.3 must hold regardless of its value.
	SIMDWidth int

	// HotPathMinLength is the "> W" threshold (§4.3 Hot-path detection):
	// an arith op qualifies once the longer of its operands exceeds this
	// length (and is a multiple of SIMDWidth).
	HotPathMinLength int

	// TraceNodeBudget and TraceInstrBudget bound a single recording
	// (§4.5 Termination (c)).
	TraceNodeBudget  int
	TraceInstrBudget int

	// DoAllTileMin/Max bound the tile size doall() partitions
	// [start,end) into (§5 Scheduling).
	DoAllTileMin int
	DoAllTileMax int

	// Workers is the fixed worker-pool size doall() fans out across.
	Workers int

	// ExitHotThreshold is the count at which a side exit would count as
	// hot for "exit chaining" (§6.1). Nothing in the engine reads it:
	// exits are not counted and never start a recording.
	ExitHotThreshold int

	// MaxCallDepth bounds interpreter recursion before RegisterOverflow.
	MaxCallDepth int

	// MaxRegisters caps how many registers ensureRegisters grows to
	// before giving up with RegisterOverflow.
	MaxRegisters int
}

// Default returns the engine's default tuning. W=4 matches four
// double-precision lanes in a 256-bit SIMD register, a representative
// choice for the reference's "small number of doubles per register".
func Default() Config {
	return Config{
		SIMDWidth:        4,
		HotPathMinLength: 64,
		TraceNodeBudget:  4096,
		TraceInstrBudget: 65536,
		DoAllTileMin:     256,
		DoAllTileMax:     4096,
		Workers:          4,
		ExitHotThreshold: 50,
		MaxCallDepth:     2000,
		MaxRegisters:     1 << 20,
	}
}

// HotPathQualifies reports whether an operand length qualifies a site for
// recording: strictly greater than the threshold and an exact multiple of
// the SIMD width (§4.3, §4.5 Start condition, §9 "Preserve W-alignment
// checks regardless of W").
func (c Config) HotPathQualifies(length int) bool {
	return length > c.HotPathMinLength && length%c.SIMDWidth == 0
}
