package linguine

import (
	"fmt"
	"strconv"
)

// intrinsics.go registers the built-ins of spec §4.8 into a fresh
// Runtime's global symbol table at construction time. Each is a
// NativeFunc like any host-registered callable (hostbridge.go); the
// interpreter cannot tell an intrinsic apart from a host callable or
// a user function at a call site, by design (spec §4.8).
func registerIntrinsics(rt *Runtime) {
	rt.RegisterFunc("len", intrinsicLen)
	rt.RegisterFunc("push", intrinsicPush)
	rt.RegisterFunc("pop", intrinsicPop)
	rt.RegisterFunc("remove", intrinsicRemove)
	rt.RegisterFunc("keys", intrinsicKeys)
	rt.RegisterFunc("values", intrinsicValues)
	rt.RegisterFunc("int", intrinsicInt)
	rt.RegisterFunc("float", intrinsicFloat)
	rt.RegisterFunc("str", intrinsicStr)
	rt.RegisterFunc("print", intrinsicPrint)
}

func intrinsicArgErr(name string) error {
	return &HostError{Name: name, Message: "wrong number or type of arguments"}
}

func intrinsicLen(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, intrinsicArgErr("len")
	}
	return rt.lenValue(args[0], Site{})
}

func intrinsicPush(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 2 || args[0].Kind != KindArray {
		return Value{}, intrinsicArgErr("push")
	}
	n := rt.Heap.ArrayLen(args[0].H)
	rt.Heap.ArraySet(args[0].H, n, args[1])
	return IntValue(int32(n + 1)), nil
}

func intrinsicPop(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 1 || args[0].Kind != KindArray {
		return Value{}, intrinsicArgErr("pop")
	}
	n := rt.Heap.ArrayLen(args[0].H)
	if n == 0 {
		return Value{}, &IndexError{Message: "pop from empty array"}
	}
	v, ok := rt.Heap.ArrayRemove(args[0].H, n-1)
	if !ok {
		return Value{}, &IndexError{Message: "pop from empty array"}
	}
	return v, nil
}

func intrinsicRemove(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, intrinsicArgErr("remove")
	}
	switch args[0].Kind {
	case KindArray:
		if args[1].Kind != KindInt {
			return Value{}, intrinsicArgErr("remove")
		}
		v, ok := rt.Heap.ArrayRemove(args[0].H, int(args[1].I))
		if !ok {
			return Value{}, &IndexError{Message: "remove index out of range"}
		}
		return v, nil
	case KindDict:
		if args[1].Kind != KindString {
			return Value{}, intrinsicArgErr("remove")
		}
		v, ok := rt.Heap.DictDelete(args[0].H, rt.Heap.String(args[1].H))
		if !ok {
			return Value{}, &IndexError{Message: "no such key"}
		}
		return v, nil
	default:
		return Value{}, intrinsicArgErr("remove")
	}
}

func intrinsicKeys(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 1 || args[0].Kind != KindDict {
		return Value{}, intrinsicArgErr("keys")
	}
	out := rt.Heap.AllocArray()
	for i, k := range rt.Heap.DictKeys(args[0].H) {
		rt.Heap.ArraySet(out, i, StringValue(rt.Heap.AllocString(k)))
	}
	return ArrayValue(out), nil
}

func intrinsicValues(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 1 || args[0].Kind != KindDict {
		return Value{}, intrinsicArgErr("values")
	}
	out := rt.Heap.AllocArray()
	n := rt.Heap.DictLen(args[0].H)
	for i := 0; i < n; i++ {
		v, _ := rt.Heap.ValAt(args[0].H, i)
		rt.Heap.ArraySet(out, i, v)
	}
	return ArrayValue(out), nil
}

func intrinsicInt(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, intrinsicArgErr("int")
	}
	switch args[0].Kind {
	case KindInt:
		return args[0], nil
	case KindFloat:
		return IntValue(int32(args[0].F)), nil
	case KindString:
		n, err := strconv.ParseInt(rt.Heap.String(args[0].H), 10, 32)
		if err != nil {
			return Value{}, &TypeError{Message: "cannot convert string to int: " + err.Error()}
		}
		return IntValue(int32(n)), nil
	default:
		return Value{}, intrinsicArgErr("int")
	}
}

func intrinsicFloat(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, intrinsicArgErr("float")
	}
	switch args[0].Kind {
	case KindFloat:
		return args[0], nil
	case KindInt:
		return FloatValue(float64(args[0].I)), nil
	case KindString:
		f, err := strconv.ParseFloat(rt.Heap.String(args[0].H), 64)
		if err != nil {
			return Value{}, &TypeError{Message: "cannot convert string to float: " + err.Error()}
		}
		return FloatValue(f), nil
	default:
		return Value{}, intrinsicArgErr("float")
	}
}

func intrinsicStr(rt *Runtime, this *Value, args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, intrinsicArgErr("str")
	}
	v := args[0]
	switch v.Kind {
	case KindString:
		return v, nil
	case KindInt, KindFloat:
		return StringValue(rt.Heap.AllocString(v.DefaultDecimal())), nil
	default:
		return StringValue(rt.Heap.AllocString(v.String())), nil
	}
}

func intrinsicPrint(rt *Runtime, this *Value, args []Value) (Value, error) {
	parts := make([]any, len(args))
	for i, a := range args {
		if a.Kind == KindString {
			parts[i] = rt.Heap.String(a.H)
		} else {
			parts[i] = a.String()
		}
	}
	fmt.Println(parts...)
	return IntValue(0), nil
}
