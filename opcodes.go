package linguine

import "fmt"

// Opcode is the authoritative one-byte instruction tag set from
// spec §4.5. Ordering matters: it is part of the persisted Image ABI
// (spec §6), so new opcodes must only ever be appended.
type Opcode byte

const (
	OpNop Opcode = iota
	OpAssign
	OpIConst
	OpFConst
	OpSConst
	OpAConst
	OpDConst
	OpInc
	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpLt
	OpLte
	OpGt
	OpGte
	OpEq
	OpNeq
	OpLoadArray
	OpStoreArray
	OpLen
	OpGetDictKeyByIndex
	OpGetDictValByIndex
	OpLoadDot
	OpStoreDot
	OpLoadSymbol
	OpStoreSymbol
	OpCall
	OpThisCall
	OpJmp
	OpJmpIfTrue
	OpJmpIfFalse
	OpLineInfo
)

var opcodeNames = [...]string{
	"nop", "assign", "iconst", "fconst", "sconst", "aconst", "dconst",
	"inc", "neg",
	"add", "sub", "mul", "div", "mod", "and", "or", "xor",
	"lt", "lte", "gt", "gte", "eq", "neq",
	"loadarray", "storearray", "len",
	"getdictkeybyindex", "getdictvalbyindex",
	"loaddot", "storedot",
	"loadsymbol", "storesymbol",
	"call", "thiscall",
	"jmp", "jmpiftrue", "jmpiffalse",
	"lineinfo",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("opcode(%d)", byte(op))
}

// Instruction is the in-memory IR the compiler emits and the
// interpreter dispatches on: a tagged-variant struct switched on Op,
// per spec §9's preference for an exhaustive match over a bare
// integer switch. image.go serializes this shape to and from the
// fixed-width binary encoding of spec §6.
type Instruction struct {
	Op Opcode

	// Dst/A/B are tmpvar indices, meaning depends on Op (see the
	// opcode table in spec §4.5).
	Dst, A, B int

	Imm32 int32   // OpIConst
	ImmF  float64 // OpFConst
	Str   int     // OpSConst: index into the function's string constants

	// NameID indexes the function's string constants for
	// OpLoadDot/OpStoreDot/OpLoadSymbol/OpStoreSymbol (dotted and
	// bare-identifier names share the same string pool).
	NameID int

	// Target is an instruction index (not a byte offset) for jumps;
	// image.go translates to/from the spec's byte-relative i32 at
	// encode/decode time.
	Target int

	// Args holds argument tmpvar indices for OpCall/OpThisCall.
	Args []int

	Line int
}
