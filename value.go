package linguine

import (
	"fmt"
	"strconv"
)

// Handle is an opaque identifier for a heap-allocated object (String,
// Array or Dict), index-addressed into the Heap's object pool. Per
// spec §9's design note, handles are modelled as pool indices rather
// than raw pointers, which is what lets gc.go sweep without chasing
// pointer graphs directly (grounded on the teacher's habit of keeping
// Value a small tagged struct rather than an interface+pointer mix;
// see DESIGN.md).
type Handle int

const noHandle Handle = -1

// FuncID numbers every callable a Runtime can invoke: ids below
// len(Image.Functions) index the image's bytecode functions, higher ids
// index registered natives (see Runtime.resolveFunc).
type FuncID int

// ValueKind is the tag of the Value variant, per spec §3.
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindFloat
	KindString
	KindArray
	KindDict
	KindFunc
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindFunc:
		return "func"
	default:
		return "unknown"
	}
}

// Value is the tagged dynamic value every tmpvar, constant and
// argument holds. It is a plain struct, not an interface: the
// teacher's Value is an interface because PEG parse values are
// heterogeneous ASTs, but Linguine's six variants are fixed and
// fit comfortably in a few machine words, which keeps tmpvar copies
// (CALL argument passing, ASSIGN) allocation-free.
type Value struct {
	Kind ValueKind
	I    int32
	F    float64
	H    Handle
	Fn   FuncID
}

func IntValue(i int32) Value     { return Value{Kind: KindInt, I: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, F: f} }
func StringValue(h Handle) Value { return Value{Kind: KindString, H: h} }
func ArrayValue(h Handle) Value  { return Value{Kind: KindArray, H: h} }
func DictValue(h Handle) Value   { return Value{Kind: KindDict, H: h} }
func FuncValue(id FuncID) Value  { return Value{Kind: KindFunc, Fn: id} }

// IsHeap reports whether v's Kind carries a Handle that must be
// retained/released.
func (v Value) IsHeap() bool {
	return v.Kind == KindString || v.Kind == KindArray || v.Kind == KindDict
}

// DefaultDecimal renders the value's "default decimal form", used by
// the `+` operator when concatenating a String with a numeric operand
// (spec §4.1) and by the `str` intrinsic.
func (v Value) DefaultDecimal() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(int64(v.I), 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	default:
		return ""
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(int64(v.I), 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindString:
		return fmt.Sprintf("String(#%d)", v.H)
	case KindArray:
		return fmt.Sprintf("Array(#%d)", v.H)
	case KindDict:
		return fmt.Sprintf("Dict(#%d)", v.H)
	case KindFunc:
		return fmt.Sprintf("Func(#%d)", v.Fn)
	default:
		return "<invalid>"
	}
}

// ValuesEqual implements spec §3/§4.1 equality: structural for
// Int/Float/String (with numeric cross-comparison between Int and
// Float), identity for Array/Dict/Func.
func ValuesEqual(heap *Heap, a, b Value) bool {
	switch {
	case a.Kind == KindInt && b.Kind == KindInt:
		return a.I == b.I
	case a.Kind == KindFloat && b.Kind == KindFloat:
		return a.F == b.F
	case a.Kind == KindInt && b.Kind == KindFloat:
		return float64(a.I) == b.F
	case a.Kind == KindFloat && b.Kind == KindInt:
		return a.F == float64(b.I)
	case a.Kind == KindString && b.Kind == KindString:
		return heap.String(a.H) == heap.String(b.H)
	case a.Kind == KindArray && b.Kind == KindArray:
		return a.H == b.H
	case a.Kind == KindDict && b.Kind == KindDict:
		return a.H == b.H
	case a.Kind == KindFunc && b.Kind == KindFunc:
		return a.Fn == b.Fn
	default:
		return false
	}
}
