package linguine

import "math"

// ops.go holds the per-operator semantics behind the arithmetic,
// bitwise, relational and container opcodes (spec §4.1, §4.7). Kept
// separate from interpreter.go's dispatch loop so each operator's
// type rules read as one small function.

// incValue implements INC (spec §4.7): defined on Int, promotes an
// Int-or-Float value by one; anything else is a TypeError.
func (rt *Runtime) incValue(v Value, site Site) (Value, error) {
	switch v.Kind {
	case KindInt:
		return IntValue(v.I + 1), nil
	case KindFloat:
		return FloatValue(v.F + 1), nil
	default:
		return Value{}, &TypeError{At: site, Message: "INC requires Int or Float, got " + v.Kind.String()}
	}
}

// negValue implements NEG: bitwise complement on Int, arithmetic
// negate on Float (spec §4.7's literal, slightly surprising rule —
// NEG is not arithmetic negation on Int).
func (rt *Runtime) negValue(v Value, site Site) (Value, error) {
	switch v.Kind {
	case KindInt:
		return IntValue(^v.I), nil
	case KindFloat:
		return FloatValue(-v.F), nil
	default:
		return Value{}, &TypeError{At: site, Message: "NEG requires Int or Float, got " + v.Kind.String()}
	}
}

// arith implements the promotion table of spec §4.1 for + - * / %,
// plus string concatenation and mixed String+numeric `+`.
func (rt *Runtime) arith(op Opcode, a, b Value, site Site) (Value, error) {
	if op == OpAdd && (a.Kind == KindString || b.Kind == KindString) {
		return rt.addString(a, b, site)
	}
	switch {
	case a.Kind == KindInt && b.Kind == KindInt:
		return rt.arithInt(op, a.I, b.I, site)
	case a.Kind == KindFloat && b.Kind == KindFloat:
		return rt.arithFloat(op, a.F, b.F, site), nil
	case a.Kind == KindInt && b.Kind == KindFloat:
		return rt.arithFloat(op, float64(a.I), b.F, site), nil
	case a.Kind == KindFloat && b.Kind == KindInt:
		return rt.arithFloat(op, a.F, float64(b.I), site), nil
	default:
		return Value{}, &TypeError{At: site, Message: "arithmetic requires Int/Float operands, got " + a.Kind.String() + " and " + b.Kind.String()}
	}
}

func (rt *Runtime) addString(a, b Value, site Site) (Value, error) {
	var left, right string
	switch a.Kind {
	case KindString:
		left = rt.Heap.String(a.H)
	case KindInt, KindFloat:
		left = a.DefaultDecimal()
	default:
		return Value{}, &TypeError{At: site, Message: "cannot concatenate " + a.Kind.String()}
	}
	switch b.Kind {
	case KindString:
		right = rt.Heap.String(b.H)
	case KindInt, KindFloat:
		right = b.DefaultDecimal()
	default:
		return Value{}, &TypeError{At: site, Message: "cannot concatenate " + b.Kind.String()}
	}
	return StringValue(rt.Heap.AllocString(left + right)), nil
}

func (rt *Runtime) arithInt(op Opcode, a, b int32, site Site) (Value, error) {
	switch op {
	case OpAdd:
		return IntValue(a + b), nil
	case OpSub:
		return IntValue(a - b), nil
	case OpMul:
		return IntValue(a * b), nil
	case OpDiv:
		if b == 0 {
			return Value{}, &DivideByZeroError{At: site}
		}
		return IntValue(a / b), nil
	case OpMod:
		if b == 0 {
			return Value{}, &DivideByZeroError{At: site}
		}
		return IntValue(a % b), nil
	default:
		return Value{}, &TypeError{At: site, Message: "not an arithmetic opcode"}
	}
}

// arithFloat follows IEEE-754 silently (spec §4.1): division or mod
// by zero never fails, it produces inf/nan.
func (rt *Runtime) arithFloat(op Opcode, a, b float64, site Site) Value {
	switch op {
	case OpAdd:
		return FloatValue(a + b)
	case OpSub:
		return FloatValue(a - b)
	case OpMul:
		return FloatValue(a * b)
	case OpDiv:
		return FloatValue(a / b)
	case OpMod:
		return FloatValue(math.Mod(a, b))
	default:
		return Value{}
	}
}

// bitwise implements AND/OR/XOR: Int-only per spec §4.5's opcode
// table (these are separate from the source-level `&&`/`||`, which
// the compiler lowers to short-circuit jumps, not opcodes).
func (rt *Runtime) bitwise(op Opcode, a, b Value, site Site) (Value, error) {
	if a.Kind != KindInt || b.Kind != KindInt {
		return Value{}, &TypeError{At: site, Message: "bitwise operator requires Int operands"}
	}
	switch op {
	case OpAnd:
		return IntValue(a.I & b.I), nil
	case OpOr:
		return IntValue(a.I | b.I), nil
	case OpXor:
		return IntValue(a.I ^ b.I), nil
	default:
		return Value{}, &TypeError{At: site, Message: "not a bitwise opcode"}
	}
}

// relational implements LT/LTE/GT/GTE: numeric cross-comparison like
// arithmetic promotion, plus lexicographic String comparison.
func (rt *Runtime) relational(op Opcode, a, b Value, site Site) (Value, error) {
	if a.Kind == KindString && b.Kind == KindString {
		return boolValue(compareStrings(op, rt.Heap.String(a.H), rt.Heap.String(b.H))), nil
	}
	var af, bf float64
	switch a.Kind {
	case KindInt:
		af = float64(a.I)
	case KindFloat:
		af = a.F
	default:
		return Value{}, &TypeError{At: site, Message: "comparison requires Int/Float/String operands, got " + a.Kind.String()}
	}
	switch b.Kind {
	case KindInt:
		bf = float64(b.I)
	case KindFloat:
		bf = b.F
	default:
		return Value{}, &TypeError{At: site, Message: "comparison requires Int/Float/String operands, got " + b.Kind.String()}
	}
	switch op {
	case OpLt:
		return boolValue(af < bf), nil
	case OpLte:
		return boolValue(af <= bf), nil
	case OpGt:
		return boolValue(af > bf), nil
	case OpGte:
		return boolValue(af >= bf), nil
	default:
		return Value{}, &TypeError{At: site, Message: "not a relational opcode"}
	}
}

func compareStrings(op Opcode, a, b string) bool {
	switch op {
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	default:
		return false
	}
}

// loadArray implements LOADARRAY, which is polymorphic over Array,
// Dict (positional valAt) and String (single-character substring),
// and also backs GETDICTVALBYINDEX, which spec §4.5 step 3 treats as
// the Dict-flavoured half of the same desugaring.
func (rt *Runtime) loadArray(recv, idx Value, site Site) (Value, error) {
	if idx.Kind != KindInt {
		return Value{}, &TypeError{At: site, Message: "index must be Int"}
	}
	i := int(idx.I)
	switch recv.Kind {
	case KindArray:
		v, ok := rt.Heap.ArrayGet(recv.H, i)
		if !ok {
			return Value{}, &IndexError{At: site, Message: "array index out of range"}
		}
		return v, nil
	case KindDict:
		v, ok := rt.Heap.ValAt(recv.H, i)
		if !ok {
			return Value{}, &IndexError{At: site, Message: "dict index out of range"}
		}
		return v, nil
	case KindString:
		s := rt.Heap.String(recv.H)
		if i < 0 || i >= len(s) {
			return Value{}, &IndexError{At: site, Message: "string index out of range"}
		}
		return StringValue(rt.Heap.AllocString(string(s[i]))), nil
	default:
		return Value{}, &TypeError{At: site, Message: "cannot index " + recv.Kind.String()}
	}
}

// storeArray implements STOREARRAY: on an Array, 0<=i<=len (i==len
// appends); on a Dict the index must carry a String key.
func (rt *Runtime) storeArray(recv, idx, v Value, site Site) error {
	switch recv.Kind {
	case KindArray:
		if idx.Kind != KindInt {
			return &TypeError{At: site, Message: "array index must be Int"}
		}
		if !rt.Heap.ArraySet(recv.H, int(idx.I), v) {
			return &IndexError{At: site, Message: "array store index out of range"}
		}
		return nil
	case KindDict:
		if idx.Kind != KindString {
			return &TypeError{At: site, Message: "dict store index must be String"}
		}
		rt.Heap.DictSet(recv.H, rt.Heap.String(idx.H), v)
		return nil
	default:
		return &TypeError{At: site, Message: "cannot store into " + recv.Kind.String()}
	}
}

// lenValue implements LEN over Array, Dict and String.
func (rt *Runtime) lenValue(v Value, site Site) (Value, error) {
	switch v.Kind {
	case KindArray:
		return IntValue(int32(rt.Heap.ArrayLen(v.H))), nil
	case KindDict:
		return IntValue(int32(rt.Heap.DictLen(v.H))), nil
	case KindString:
		return IntValue(int32(len(rt.Heap.String(v.H)))), nil
	default:
		return Value{}, &TypeError{At: site, Message: "LEN requires Array/Dict/String, got " + v.Kind.String()}
	}
}

// dictKeyByIndex implements GETDICTKEYBYINDEX. Per the Open Question
// resolution documented in DESIGN.md, it is polymorphic: a Dict
// yields the key String at position i, while an Array or String
// yields the Int index itself — this lets one ForKV desugaring (see
// compiler.go) satisfy both the dict-iteration scenario and the
// spec's own "for (k,v) in array: k=index" resolution.
func (rt *Runtime) dictKeyByIndex(recv, idx Value, site Site) (Value, error) {
	if idx.Kind != KindInt {
		return Value{}, &TypeError{At: site, Message: "index must be Int"}
	}
	i := int(idx.I)
	switch recv.Kind {
	case KindDict:
		k, ok := rt.Heap.KeyAt(recv.H, i)
		if !ok {
			return Value{}, &IndexError{At: site, Message: "dict index out of range"}
		}
		return StringValue(rt.Heap.AllocString(k)), nil
	case KindArray:
		if i < 0 || i >= rt.Heap.ArrayLen(recv.H) {
			return Value{}, &IndexError{At: site, Message: "array index out of range"}
		}
		return IntValue(int32(i)), nil
	case KindString:
		s := rt.Heap.String(recv.H)
		if i < 0 || i >= len(s) {
			return Value{}, &IndexError{At: site, Message: "string index out of range"}
		}
		return IntValue(int32(i)), nil
	default:
		return Value{}, &TypeError{At: site, Message: "cannot index " + recv.Kind.String()}
	}
}

// loadDot implements LOADDOT: field-style access into a Dict, the
// language's only named-field container (`obj.field`).
func (rt *Runtime) loadDot(recv Value, name string, site Site) (Value, error) {
	if recv.Kind != KindDict {
		return Value{}, &TypeError{At: site, Message: "cannot read field of " + recv.Kind.String()}
	}
	v, ok := rt.Heap.DictGet(recv.H, name)
	if !ok {
		return Value{}, &IndexError{At: site, Message: "no such field: " + name}
	}
	return v, nil
}

// storeDot implements STOREDOT: writes a Dict field, also used by the
// compiler to lower dict-literal entries (compiler.go).
func (rt *Runtime) storeDot(recv Value, name string, v Value, site Site) error {
	if recv.Kind != KindDict {
		return &TypeError{At: site, Message: "cannot write field of " + recv.Kind.String()}
	}
	rt.Heap.DictSet(recv.H, name, v)
	return nil
}
