package linguine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Function is a compiled, persistable function: name, parameter
// names, a linear instruction vector, its constant pools and a
// per-instruction source-line map (spec §3, §4.6).
type Function struct {
	Name        string
	Params      []string
	TmpvarCount int

	ConstInts   []int64
	ConstFloats []float64
	ConstStrs   []string

	Code []Instruction

	// LineMap maps an instruction index to the source line it was
	// lowered from. Entries are sorted by PC; spec §4.5 allows a
	// preceding LINEINFO instruction "or a parallel table" — this
	// implementation chooses the parallel table.
	LineMap []LineEntry
}

type LineEntry struct {
	PC   int
	Line int
}

// LineAt returns the source line active at instruction index pc.
func (fn *Function) LineAt(pc int) int {
	line := 0
	for _, e := range fn.LineMap {
		if e.PC > pc {
			break
		}
		line = e.Line
	}
	return line
}

// Image is an ordered list of compiled functions sharing one
// namespace: one compilation unit per spec §1 ("one bytecode image
// holding many named functions").
type Image struct {
	Version uint16
	Flags   uint16

	Functions []*Function
	byName    map[string]FuncID
}

func NewImage(funcs []*Function) *Image {
	img := &Image{Version: 1, Functions: funcs, byName: map[string]FuncID{}}
	for i, fn := range funcs {
		img.byName[fn.Name] = FuncID(i)
	}
	return img
}

func (img *Image) Lookup(name string) (FuncID, bool) {
	id, ok := img.byName[name]
	return id, ok
}

func (img *Image) Func(id FuncID) *Function { return img.Functions[id] }

// ---- Binary encoding (spec §6) ----

const imageMagic = "LNGU"

// instrFixedSize returns the byte size of instr's operand encoding,
// excluding the leading opcode byte.
func instrFixedSize(instr Instruction) int {
	switch instr.Op {
	case OpNop:
		return 0
	case OpAssign, OpInc, OpNeg, OpLen, OpLoadSymbol, OpStoreSymbol:
		return 4 // 2 x u16
	case OpIConst:
		return 2 + 4
	case OpFConst:
		return 2 + 8
	case OpSConst, OpAConst, OpDConst:
		if instr.Op == OpAConst || instr.Op == OpDConst {
			return 2
		}
		return 4
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor,
		OpLt, OpLte, OpGt, OpGte, OpEq, OpNeq,
		OpLoadArray, OpStoreArray, OpGetDictKeyByIndex, OpGetDictValByIndex,
		OpLoadDot, OpStoreDot:
		return 6 // 3 x u16
	case OpCall:
		return 6 + 2*len(instr.Args)
	case OpThisCall:
		return 8 + 2*len(instr.Args)
	case OpJmp:
		return 4
	case OpJmpIfTrue, OpJmpIfFalse:
		return 6
	case OpLineInfo:
		return 2
	default:
		panic(fmt.Sprintf("instrFixedSize: unknown opcode %v", instr.Op))
	}
}

func instrSize(instr Instruction) int { return 1 + instrFixedSize(instr) }

// byteOffsets computes the byte offset of every instruction in code,
// plus the final total length at index len(code).
func byteOffsets(code []Instruction) []int {
	offs := make([]int, len(code)+1)
	cur := 0
	for i, instr := range code {
		offs[i] = cur
		cur += instrSize(instr)
	}
	offs[len(code)] = cur
	return offs
}

func (fn *Function) encode(buf *bytes.Buffer) error {
	writeU16Str(buf, fn.Name)
	binary.Write(buf, binary.LittleEndian, uint16(len(fn.Params)))
	for _, p := range fn.Params {
		writeU16Str(buf, p)
	}
	binary.Write(buf, binary.LittleEndian, uint16(fn.TmpvarCount))

	binary.Write(buf, binary.LittleEndian, uint32(len(fn.ConstInts)))
	for _, v := range fn.ConstInts {
		binary.Write(buf, binary.LittleEndian, v)
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(fn.ConstFloats)))
	for _, v := range fn.ConstFloats {
		binary.Write(buf, binary.LittleEndian, math.Float64bits(v))
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(fn.ConstStrs)))
	for _, s := range fn.ConstStrs {
		writeU16Str(buf, s)
	}

	offs := byteOffsets(fn.Code)
	var code bytes.Buffer
	for i, instr := range fn.Code {
		if err := encodeInstr(&code, instr, offs, i); err != nil {
			return err
		}
	}
	binary.Write(buf, binary.LittleEndian, uint32(code.Len()))
	buf.Write(code.Bytes())

	binary.Write(buf, binary.LittleEndian, uint32(len(fn.LineMap)))
	for _, e := range fn.LineMap {
		binary.Write(buf, binary.LittleEndian, uint32(offs[e.PC]))
		binary.Write(buf, binary.LittleEndian, uint16(e.Line))
	}
	return nil
}

func encodeInstr(buf *bytes.Buffer, instr Instruction, offs []int, idx int) error {
	buf.WriteByte(byte(instr.Op))
	u16 := func(v int) { binary.Write(buf, binary.LittleEndian, uint16(v)) }
	switch instr.Op {
	case OpNop:
	case OpAssign, OpInc, OpNeg, OpLen:
		u16(instr.Dst)
		u16(instr.A)
	case OpLoadSymbol:
		u16(instr.Dst)
		u16(instr.NameID)
	case OpStoreSymbol:
		u16(instr.NameID)
		u16(instr.A)
	case OpIConst:
		u16(instr.Dst)
		binary.Write(buf, binary.LittleEndian, instr.Imm32)
	case OpFConst:
		u16(instr.Dst)
		binary.Write(buf, binary.LittleEndian, math.Float64bits(instr.ImmF))
	case OpSConst:
		u16(instr.Dst)
		u16(instr.Str)
	case OpAConst, OpDConst:
		u16(instr.Dst)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor,
		OpLt, OpLte, OpGt, OpGte, OpEq, OpNeq, OpLoadArray, OpStoreArray,
		OpGetDictKeyByIndex, OpGetDictValByIndex:
		u16(instr.Dst)
		u16(instr.A)
		u16(instr.B)
	case OpLoadDot:
		u16(instr.Dst)
		u16(instr.A)
		u16(instr.NameID)
	case OpStoreDot:
		u16(instr.A)
		u16(instr.NameID)
		u16(instr.B)
	case OpCall:
		u16(instr.Dst)
		u16(instr.A)
		u16(len(instr.Args))
		for _, a := range instr.Args {
			u16(a)
		}
	case OpThisCall:
		u16(instr.Dst)
		u16(instr.A)
		u16(instr.NameID)
		u16(len(instr.Args))
		for _, a := range instr.Args {
			u16(a)
		}
	case OpJmp:
		rel := int32(offs[instr.Target] - offs[idx+1])
		binary.Write(buf, binary.LittleEndian, rel)
	case OpJmpIfTrue, OpJmpIfFalse:
		rel := int32(offs[instr.Target] - offs[idx+1])
		binary.Write(buf, binary.LittleEndian, rel)
		u16(instr.A)
	case OpLineInfo:
		u16(instr.Line)
	default:
		return fmt.Errorf("encodeInstr: unknown opcode %v", instr.Op)
	}
	return nil
}

func writeU16Str(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

// Encode serializes the image to the versioned binary format of spec §6.
func (img *Image) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(imageMagic)
	binary.Write(&buf, binary.LittleEndian, img.Version)
	binary.Write(&buf, binary.LittleEndian, img.Flags)
	binary.Write(&buf, binary.LittleEndian, uint32(len(img.Functions)))
	for _, fn := range img.Functions {
		if err := fn.encode(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type formatError struct{ msg string }

func (e *formatError) Error() string { return "image format error: " + e.msg }

// DecodeImage parses the binary format produced by Encode.
func DecodeImage(data []byte) (*Image, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil || string(magic) != imageMagic {
		return nil, &formatError{"bad magic"}
	}
	var version, flags uint16
	binary.Read(r, binary.LittleEndian, &version)
	binary.Read(r, binary.LittleEndian, &flags)
	var funcCount uint32
	binary.Read(r, binary.LittleEndian, &funcCount)

	funcs := make([]*Function, 0, funcCount)
	for i := uint32(0); i < funcCount; i++ {
		fn, err := decodeFunction(r)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fn)
	}
	img := NewImage(funcs)
	img.Version = version
	img.Flags = flags
	return img, nil
}

func readU16Str(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFunction(r *bytes.Reader) (*Function, error) {
	fn := &Function{}
	var err error
	if fn.Name, err = readU16Str(r); err != nil {
		return nil, err
	}
	var paramCount uint16
	binary.Read(r, binary.LittleEndian, &paramCount)
	for i := uint16(0); i < paramCount; i++ {
		p, err := readU16Str(r)
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, p)
	}
	var tmp uint16
	binary.Read(r, binary.LittleEndian, &tmp)
	fn.TmpvarCount = int(tmp)

	var constIntCount uint32
	binary.Read(r, binary.LittleEndian, &constIntCount)
	for i := uint32(0); i < constIntCount; i++ {
		var v int64
		binary.Read(r, binary.LittleEndian, &v)
		fn.ConstInts = append(fn.ConstInts, v)
	}
	var constFloatCount uint32
	binary.Read(r, binary.LittleEndian, &constFloatCount)
	for i := uint32(0); i < constFloatCount; i++ {
		var bits uint64
		binary.Read(r, binary.LittleEndian, &bits)
		fn.ConstFloats = append(fn.ConstFloats, math.Float64frombits(bits))
	}
	var constStrCount uint32
	binary.Read(r, binary.LittleEndian, &constStrCount)
	for i := uint32(0); i < constStrCount; i++ {
		s, err := readU16Str(r)
		if err != nil {
			return nil, err
		}
		fn.ConstStrs = append(fn.ConstStrs, s)
	}

	var codeLen uint32
	binary.Read(r, binary.LittleEndian, &codeLen)
	code := make([]byte, codeLen)
	if _, err := r.Read(code); err != nil {
		return nil, err
	}
	instrs, offToIdx, err := decodeCode(code)
	if err != nil {
		return nil, err
	}
	fn.Code = instrs

	var lineMapLen uint32
	binary.Read(r, binary.LittleEndian, &lineMapLen)
	for i := uint32(0); i < lineMapLen; i++ {
		var pcStart uint32
		var line uint16
		binary.Read(r, binary.LittleEndian, &pcStart)
		binary.Read(r, binary.LittleEndian, &line)
		idx, ok := offToIdx[int(pcStart)]
		if !ok {
			return nil, &formatError{"line map pc not on an instruction boundary"}
		}
		fn.LineMap = append(fn.LineMap, LineEntry{PC: idx, Line: int(line)})
	}
	return fn, nil
}

// decodeCode decodes a raw instruction stream, returning the
// instructions with jump Target resolved to instruction indices and a
// byte-offset -> instruction-index map for the caller's line map.
func decodeCode(code []byte) ([]Instruction, map[int]int, error) {
	type pending struct {
		idx     int
		relByte int32 // relative offset read from the stream
		endOff  int   // byte offset right after this instruction
	}

	var (
		instrs  []Instruction
		offToIdx = map[int]int{}
		jumps    []pending
		pos      int
	)

	u16 := func() int {
		v := binary.LittleEndian.Uint16(code[pos:])
		pos += 2
		return int(v)
	}

	for pos < len(code) {
		start := pos
		op := Opcode(code[pos])
		pos++
		var instr Instruction
		instr.Op = op
		switch op {
		case OpNop:
		case OpAssign, OpInc, OpNeg, OpLen:
			instr.Dst = u16()
			instr.A = u16()
		case OpLoadSymbol:
			instr.Dst = u16()
			instr.NameID = u16()
		case OpStoreSymbol:
			instr.NameID = u16()
			instr.A = u16()
		case OpIConst:
			instr.Dst = u16()
			instr.Imm32 = int32(binary.LittleEndian.Uint32(code[pos:]))
			pos += 4
		case OpFConst:
			instr.Dst = u16()
			bits := binary.LittleEndian.Uint64(code[pos:])
			instr.ImmF = math.Float64frombits(bits)
			pos += 8
		case OpSConst:
			instr.Dst = u16()
			instr.Str = u16()
		case OpAConst, OpDConst:
			instr.Dst = u16()
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor,
			OpLt, OpLte, OpGt, OpGte, OpEq, OpNeq, OpLoadArray, OpStoreArray,
			OpGetDictKeyByIndex, OpGetDictValByIndex:
			instr.Dst = u16()
			instr.A = u16()
			instr.B = u16()
		case OpLoadDot:
			instr.Dst = u16()
			instr.A = u16()
			instr.NameID = u16()
		case OpStoreDot:
			instr.A = u16()
			instr.NameID = u16()
			instr.B = u16()
		case OpCall:
			instr.Dst = u16()
			instr.A = u16()
			argc := u16()
			for i := 0; i < argc; i++ {
				instr.Args = append(instr.Args, u16())
			}
		case OpThisCall:
			instr.Dst = u16()
			instr.A = u16()
			instr.NameID = u16()
			argc := u16()
			for i := 0; i < argc; i++ {
				instr.Args = append(instr.Args, u16())
			}
		case OpJmp:
			rel := int32(binary.LittleEndian.Uint32(code[pos:]))
			pos += 4
			jumps = append(jumps, pending{idx: len(instrs), relByte: rel, endOff: pos})
		case OpJmpIfTrue, OpJmpIfFalse:
			rel := int32(binary.LittleEndian.Uint32(code[pos:]))
			pos += 4
			instr.A = u16()
			jumps = append(jumps, pending{idx: len(instrs), relByte: rel, endOff: pos})
		case OpLineInfo:
			instr.Line = u16()
		default:
			return nil, nil, &formatError{fmt.Sprintf("unknown opcode byte %d", op)}
		}
		offToIdx[start] = len(instrs)
		instrs = append(instrs, instr)
	}

	for _, j := range jumps {
		targetByte := j.endOff + int(j.relByte)
		idx, ok := offToIdx[targetByte]
		if !ok && targetByte == len(code) {
			// A return jumps one past the last instruction (see compileFunc).
			idx, ok = len(instrs), true
		}
		if !ok {
			return nil, nil, &formatError{"jump target not on an instruction boundary"}
		}
		instrs[j.idx].Target = idx
	}
	return instrs, offToIdx, nil
}
