package linguine

// hostbridge.go is the thin accessor layer a host embedder uses from
// inside a NativeFunc: RegisterFunc (runtime.go) is the registration
// half of spec §4.8's host bridge, these are the argument-unwrapping
// half, saving every host callable from repeating the same Kind
// switch intrinsics.go already needs.

// ArgInt reads args[i] as an Int, failing with a HostError that names
// fn so the host sees which callable rejected its arguments.
func ArgInt(fn string, args []Value, i int) (int32, error) {
	if i >= len(args) || args[i].Kind != KindInt {
		return 0, &HostError{Name: fn, Message: "expected Int argument"}
	}
	return args[i].I, nil
}

// ArgFloat reads args[i] as a Float.
func ArgFloat(fn string, args []Value, i int) (float64, error) {
	if i >= len(args) || args[i].Kind != KindFloat {
		return 0, &HostError{Name: fn, Message: "expected Float argument"}
	}
	return args[i].F, nil
}

// ArgString reads args[i] as a String, dereferencing its heap handle
// through rt.
func ArgString(rt *Runtime, fn string, args []Value, i int) (string, error) {
	if i >= len(args) || args[i].Kind != KindString {
		return "", &HostError{Name: fn, Message: "expected String argument"}
	}
	return rt.Heap.String(args[i].H), nil
}

// NewHostString allocates a heap String and wraps it as a Value, for
// a NativeFunc that wants to hand a freshly computed string back into
// the language.
func NewHostString(rt *Runtime, s string) Value {
	return StringValue(rt.Heap.AllocString(s))
}

// NewHostArray allocates an empty heap Array and fills it in order,
// retaining each element via ArraySet.
func NewHostArray(rt *Runtime, items []Value) Value {
	h := rt.Heap.AllocArray()
	for i, v := range items {
		rt.Heap.ArraySet(h, i, v)
	}
	return ArrayValue(h)
}
