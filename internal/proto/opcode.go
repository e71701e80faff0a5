package proto

// Opcode enumerates the bytecode instruction set (§4.3), grouped by
// responsibility the way the spec groups them.
type Opcode uint8

const (
	// Loads/stores
	OpKGet Opcode = iota // kget A, B     R(A) = K(B)
	OpIGet                // iget A, B     R(A) = Globals[B]
	OpGet                 // get  A, B     R(A) = lookup symbol K(B) via inline cache
	OpAssign              // assign A, B   bind symbol K(B) = R(A) via inline cache
	OpIAssign             // iassign A, B  Globals[B] = R(A)
	OpEAssign              // eassign A, B, C  R(A)[R(B)] = R(C)  (indexed assign)

	// Control
	OpJmp     // jmp sBx
	OpJt      // jt A, sBx    if truthy(R(A)) pc += sBx
	OpJf      // jf A, sBx    if !truthy(R(A)) pc += sBx
	OpForBegin // forbegin A, B, C, sBx  set up a counted/sequence loop
	OpForEnd   // forend A, sBx          back-edge: increment R(A), pc += sBx (no limit test)
	OpRet      // ret A                  return R(A)
	OpDone     // done                   top-level completion

	// Element & subset
	OpSubset  // subset  A, B, C   R(A) = R(B)[R(C)]
	OpSubset2 // subset2 A, B, C   R(A) = R(B)[[R(C)]]
	OpColon   // colon   A, B, C   R(A) = R(B):R(C)
	OpSeq     // seq     A, B, C   R(A) = seq(R(B), R(C))

	// Arithmetic/logical (binary)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
	OpPow
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr

	// Arithmetic/logical (unary)
	OpNeg
	OpPos
	OpNot

	// Reductions/scans over a register holding a vector
	OpFold // fold A, B, C   R(A) = reduce(op=C) over R(B)

	// Calling
	OpCall      // call A, B, C     see §6 operand encoding
	OpUseMethod // usemethod A, B   class-directed dispatch on generic K(B), first arg in R(A)
	OpFunction  // function A, B    R(A) = closure(Children[B], current env)

	// Coercions
	OpLogical1
	OpInteger1
	OpDouble1
	OpCharacter1
	OpRaw1
	OpType
)
