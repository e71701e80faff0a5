// Package ir implements the linear, SSA-like intermediate representation
// the trace recorder emits and the optimizer/code generator consume
// (§4.4): every Node is referenced by its index into a Trace, and every
// operand reference is required to point at a strictly lower index.
package ir

import "vecjit/internal/value"

// Op enumerates the IR opcodes, grouped the way §4.4 groups them.
type Op int

const (
	// Constants & I/O
	OpConstant Op = iota
	OpSLoad
	OpSStore
	OpLoad
	OpStore
	OpUnbox
	OpBox
	OpLoadNA
	OpGather
	OpScatter
	OpCurEnv
	OpNewEnv
	OpLEnv
	OpDEnv
	OpCEnv

	// Arithmetic / logical / ordinal
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
	OpPow
	OpAtan2
	OpHypot
	OpPMin
	OpPMax
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpLAnd
	OpLOr
	OpLNot
	OpNeg
	OpPos
	OpAbs
	OpSign
	OpSqrt
	OpFloor
	OpCeiling
	OpTrunc
	OpExp
	OpLog
	OpCos
	OpSin
	OpTan
	OpAcos
	OpAsin
	OpAtan
	OpAsDouble
	OpAsInteger
	OpAsLogical
	OpIfElse

	// Generators
	OpSeq
	OpRep
	OpRandom

	// Folds
	OpSum
	OpProd
	OpFoldMin
	OpFoldMax
	OpAll
	OpAny
	OpLength
	OpMean
	OpCM2

	// Scans (prefix variants of the folds above where defined)
	OpScanSum
	OpScanProd
	OpScanMin
	OpScanMax
	OpScanAll
	OpScanAny

	// Shape & meta
	OpALength
	OpOLength
	OpReshape
	OpBrcast
	OpDecodeNA
	OpDecodeVL
	OpEncode
	OpPhi

	// Control
	OpLoop
	OpJmp
	OpExit
	OpNest
	OpPush
	OpPop
	OpGTrue
	OpGFalse
	OpGProto
	OpNop
)

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "unknown"
}

var opNames = map[Op]string{
	OpConstant: "constant", OpSLoad: "sload", OpSStore: "sstore",
	OpLoad: "load", OpStore: "store", OpUnbox: "unbox", OpBox: "box",
	OpLoadNA: "loadna", OpGather: "gather", OpScatter: "scatter",
	OpCurEnv: "curenv", OpNewEnv: "newenv", OpLEnv: "lenv", OpDEnv: "denv", OpCEnv: "cenv",

	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpIDiv: "idiv",
	OpMod: "mod", OpPow: "pow", OpAtan2: "atan2", OpHypot: "hypot",
	OpPMin: "pmin", OpPMax: "pmax", OpEq: "eq", OpNeq: "neq", OpLt: "lt",
	OpLe: "le", OpGt: "gt", OpGe: "ge", OpLAnd: "land", OpLOr: "lor",
	OpLNot: "lnot", OpNeg: "neg", OpPos: "pos", OpAbs: "abs", OpSign: "sign",
	OpSqrt: "sqrt", OpFloor: "floor", OpCeiling: "ceiling", OpTrunc: "trunc",
	OpExp: "exp", OpLog: "log", OpCos: "cos", OpSin: "sin", OpTan: "tan",
	OpAcos: "acos", OpAsin: "asin", OpAtan: "atan",
	OpAsDouble: "asdouble", OpAsInteger: "asinteger", OpAsLogical: "aslogical",
	OpIfElse: "ifelse",

	OpSeq: "seq", OpRep: "rep", OpRandom: "random",

	OpSum: "sum", OpProd: "prod", OpFoldMin: "min", OpFoldMax: "max",
	OpAll: "all", OpAny: "any", OpLength: "length", OpMean: "mean", OpCM2: "cm2",

	OpScanSum: "scansum", OpScanProd: "scanprod", OpScanMin: "scanmin",
	OpScanMax: "scanmax", OpScanAll: "scanall", OpScanAny: "scanany",

	OpALength: "alength", OpOLength: "olength", OpReshape: "reshape",
	OpBrcast: "brcast", OpDecodeNA: "decodena", OpDecodeVL: "decodevl",
	OpEncode: "encode", OpPhi: "phi",

	OpLoop: "loop", OpJmp: "jmp", OpExit: "exit", OpNest: "nest",
	OpPush: "push", OpPop: "pop", OpGTrue: "gtrue", OpGFalse: "gfalse",
	OpGProto: "gproto", OpNop: "nop",
}

// Group classifies a Node by the fusion grouping the optimizer sorts on
// (§4.6 "fusion grouping by shape").
type Group int

const (
	GroupScalar Group = iota
	GroupMap
	GroupGenerator
	GroupFold
	GroupScan
	GroupControl
)

// Shape describes the out (or in) shape of a Node: its length, the
// number of distinct group levels (for a fold over a grouping key), and
// optional filter/split/NA-mask sibling references (§4.4 Shape
// semantics). A ref of -1 means "absent".
type Shape struct {
	Length int
	Levels int
	Filter int
	Split  int
	NAMask int
}

// NoShape is the degenerate shape (scalar, no filter/split/mask).
var NoShape = Shape{Length: -1, Levels: 1, Filter: -1, Split: -1, NAMask: -1}

// Node is one IR instruction (§4.4): an opcode, a result type, a shape,
// up to three back-referencing operands, a fusion group, and the
// liveness/sinking/exit bookkeeping the optimizer fills in.
type Node struct {
	Op   Op
	Type value.Tag

	A, B, C int // operand refs into the owning Trace; -1 if unused

	Out Shape
	In  Shape

	Reg int // virtual register assigned by the optimizer (§4.6 pass 4)

	Group Group
	Live  bool
	Sunk  bool
	Exit  int // ref of the guard whose side exit this node belongs to (set on OpExit nodes); zero otherwise
}

// Trace is the node list a Recorder builds and an Optimizer rewrites in
// place: a flat, append-only, back-reference-only sequence.
type Trace struct {
	Nodes []Node
}

// Append adds n to the trace and returns its index, the reference other
// nodes use to point at it. Validates the back-reference invariant (§4.4
// "All operand references are back-references"): a forward or
// self-reference is a builder bug, not a recoverable runtime condition.
func (t *Trace) Append(n Node) int {
	idx := len(t.Nodes)
	refs := []int{n.B, n.C, n.Out.Length, n.Out.Filter, n.Out.Split, n.Out.NAMask}
	switch n.Op {
	case OpConstant, OpSLoad, OpSStore:
		// A is a raw constant-table/register index here, not a trace ref.
	default:
		refs = append(refs, n.A)
	}
	for _, ref := range refs {
		if ref >= idx {
			panic("ir: forward or self operand reference")
		}
	}
	t.Nodes = append(t.Nodes, n)
	return idx
}

// Len reports the number of nodes recorded so far.
func (t *Trace) Len() int { return len(t.Nodes) }
