package linguine

// interpreter.go is the C7 dispatch loop: one Go function stepping
// through a Frame's instructions, switched exhaustively on Opcode per
// spec §9's preference for a tagged-variant dispatch over a bare
// integer switch. It never touches the AST or the compiler; it only
// ever sees the linear Instruction stream a Function carries.

// NativeFunc is the host-callable signature of spec §4.8:
// `(runtime, this_opt, args[]) -> Value | error`. Intrinsics
// (intrinsics.go) and host-registered callables (hostbridge.go) both
// implement it; at call sites they are indistinguishable from
// bytecode functions (both are addressed by a FuncID).
type NativeFunc func(rt *Runtime, this *Value, args []Value) (Value, error)

// invoke resolves fid to either a bytecode Function or a native
// callable and runs it to completion, satisfying the frame-balance
// invariant (spec §8 invariant 2) even when it returns an error: a
// pushed frame is always popped before invoke returns.
func (rt *Runtime) invoke(fid FuncID, args []Value, this *Value) (Value, error) {
	fn, native, isNative := rt.resolveFunc(fid)
	if isNative {
		return native(rt, this, args)
	}
	if fn == nil {
		return Value{}, &NameError{At: rt.site(0), Name: "<unresolved func>"}
	}

	frame := NewFrame(fn, nil, 0)
	if err := rt.Stack.Push(frame); err != nil {
		return Value{}, err
	}
	for i, a := range args {
		if i >= len(frame.Tmpvar) {
			break
		}
		frame.Tmpvar[i] = a
		rt.Heap.Retain(a)
	}

	result, err := rt.dispatch(frame)

	// The result usually sits in tmpvar[0]: hold it across the release
	// below so the teardown cannot free it, then drop that hold without
	// freeing, handing the result back unowned like a fresh Alloc*.
	rt.Heap.Retain(result)
	for _, v := range frame.Tmpvar {
		rt.Heap.Release(v)
	}
	rt.Stack.Pop()
	if result.IsHeap() {
		rt.Heap.obj(result.H).refcount--
	}
	return result, err
}

func (rt *Runtime) site(line int) Site {
	return Site{File: rt.file, Line: line}
}

// dispatch runs frame to completion (a RETURN falls out of the loop
// normally; runtime_call wraps the top-level invocation), returning
// the value left in tmpvar[0] (spec §4.7: "return copies the result
// into the caller's destination tmpvar" — tmpvar[0] is that slot for
// the frame's own RETURN statement, lowered by the compiler as an
// ASSIGN into slot 0).
func (rt *Runtime) dispatch(frame *Frame) (Value, error) {
	fn := frame.Func
	for {
		if frame.PC >= len(fn.Code) {
			return frame.Tmpvar[0], nil
		}
		instr := fn.Code[frame.PC]
		line := fn.LineAt(frame.PC)

		if rt.debug.enabled && rt.debug.hook != nil {
			rt.debug.hook.PreHook(frame, frame.PC)
			for rt.debug.stop {
				rt.debug.hook.PreHook(frame, frame.PC)
			}
		}

		if err := rt.step(frame, instr, line); err != nil {
			return Value{}, err
		}

		if rt.debug.enabled && rt.debug.hook != nil {
			rt.debug.hook.PostHook(frame, frame.PC)
			rt.debug.observeLine(rt.file, fn.LineAt(frame.PC))
		}

		if rt.Heap.ShouldCollect(rt.Config.GCThreshold) {
			rt.Heap.GC(GCRoots{Frames: rt.Stack.Frames(), Globals: rt.Globals})
		}
	}
}

// step executes one instruction and advances frame.PC, per the
// opcode semantics of spec §4.7 and the arithmetic/error rules of
// §4.1/§7. RETURN has no dedicated opcode: the compiler lowers it to
// `ASSIGN tmpvar[0], value` followed by a JMP to len(code), one past
// the last instruction, so dispatch's own `PC >= len(code)` check is
// what ends the loop.
func (rt *Runtime) step(frame *Frame, instr Instruction, line int) error {
	fn := frame.Func
	tv := frame.Tmpvar
	site := rt.site(line)
	next := frame.PC + 1

	switch instr.Op {
	case OpNop, OpLineInfo:
		// no-op at the value level; OpLineInfo exists for ABI
		// completeness (see image.go) but this compiler emits a
		// parallel line map instead.

	case OpAssign:
		rt.assign(tv, instr.Dst, tv[instr.A])

	case OpIConst:
		rt.assign(tv, instr.Dst, IntValue(instr.Imm32))

	case OpFConst:
		rt.assign(tv, instr.Dst, FloatValue(instr.ImmF))

	case OpSConst:
		h := rt.Heap.AllocString(fn.ConstStrs[instr.Str])
		rt.assign(tv, instr.Dst, StringValue(h))

	case OpAConst:
		h := rt.Heap.AllocArray()
		rt.assign(tv, instr.Dst, ArrayValue(h))

	case OpDConst:
		h := rt.Heap.AllocDict()
		rt.assign(tv, instr.Dst, DictValue(h))

	case OpInc:
		v, err := rt.incValue(tv[instr.A], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpNeg:
		v, err := rt.negValue(tv[instr.A], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		v, err := rt.arith(instr.Op, tv[instr.A], tv[instr.B], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpAnd, OpOr, OpXor:
		v, err := rt.bitwise(instr.Op, tv[instr.A], tv[instr.B], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpLt, OpLte, OpGt, OpGte:
		v, err := rt.relational(instr.Op, tv[instr.A], tv[instr.B], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpEq:
		eq := ValuesEqual(rt.Heap, tv[instr.A], tv[instr.B])
		rt.assign(tv, instr.Dst, boolValue(eq))

	case OpNeq:
		eq := ValuesEqual(rt.Heap, tv[instr.A], tv[instr.B])
		rt.assign(tv, instr.Dst, boolValue(!eq))

	case OpLoadArray:
		v, err := rt.loadArray(tv[instr.A], tv[instr.B], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpStoreArray:
		if err := rt.storeArray(tv[instr.Dst], tv[instr.A], tv[instr.B], site); err != nil {
			return err
		}

	case OpLen:
		v, err := rt.lenValue(tv[instr.A], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpGetDictKeyByIndex:
		v, err := rt.dictKeyByIndex(tv[instr.A], tv[instr.B], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpGetDictValByIndex:
		v, err := rt.loadArray(tv[instr.A], tv[instr.B], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpLoadDot:
		v, err := rt.loadDot(tv[instr.A], fn.ConstStrs[instr.NameID], site)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, v)

	case OpStoreDot:
		if err := rt.storeDot(tv[instr.A], fn.ConstStrs[instr.NameID], tv[instr.B], site); err != nil {
			return err
		}

	case OpLoadSymbol:
		name := fn.ConstStrs[instr.NameID]
		v, ok := rt.Globals.Get(name)
		if !ok {
			return &NameError{At: site, Name: name}
		}
		rt.assign(tv, instr.Dst, v)

	case OpStoreSymbol:
		name := fn.ConstStrs[instr.NameID]
		rt.Globals.Set(rt.Heap, name, tv[instr.A])

	case OpCall:
		if rt.debug.cancel {
			return &CancelledError{At: site}
		}
		callee := tv[instr.A]
		if callee.Kind != KindFunc {
			return &TypeError{At: site, Message: "call target is not a function"}
		}
		args := make([]Value, len(instr.Args))
		for i, a := range instr.Args {
			args[i] = tv[a]
		}
		result, err := rt.invoke(callee.Fn, args, nil)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, result)

	case OpThisCall:
		if rt.debug.cancel {
			return &CancelledError{At: site}
		}
		recv := tv[instr.A]
		name := fn.ConstStrs[instr.NameID]
		calleeVal, ok := rt.Globals.Get(name)
		if !ok || calleeVal.Kind != KindFunc {
			return &NameError{At: site, Name: name}
		}
		args := make([]Value, 0, len(instr.Args)+1)
		args = append(args, recv)
		for _, a := range instr.Args {
			args = append(args, tv[a])
		}
		result, err := rt.invoke(calleeVal.Fn, args, &recv)
		if err != nil {
			return err
		}
		rt.assign(tv, instr.Dst, result)

	case OpJmp:
		if instr.Target <= frame.PC && rt.debug.cancel {
			return &CancelledError{At: site}
		}
		next = instr.Target

	case OpJmpIfTrue:
		if isStrictTrue(tv[instr.A]) {
			if instr.Target <= frame.PC && rt.debug.cancel {
				return &CancelledError{At: site}
			}
			next = instr.Target
		}

	case OpJmpIfFalse:
		if !isStrictTrue(tv[instr.A]) {
			if instr.Target <= frame.PC && rt.debug.cancel {
				return &CancelledError{At: site}
			}
			next = instr.Target
		}

	default:
		return &CompileError{At: site, Message: "unhandled opcode in dispatch"}
	}

	frame.PC = next
	return nil
}

// isStrictTrue implements spec §4.7/§9's deliberately strict
// truthiness: only Int(1) jumps; numeric 2 and non-Int kinds do not.
func isStrictTrue(v Value) bool {
	return v.Kind == KindInt && v.I == 1
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// assign retains the incoming value and releases whatever the slot
// held before, keeping the tmpvar file's refcounts sound (spec §8
// invariant 1) on every ASSIGN-shaped write.
func (rt *Runtime) assign(tv []Value, dst int, v Value) {
	old := tv[dst]
	tv[dst] = v
	rt.Heap.Retain(v)
	rt.Heap.Release(old)
}
