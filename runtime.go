package linguine

import "github.com/golang/glog"

// Runtime is one isolated language instance: its own heap, global
// symbol table, call stack and loaded image. Spec §9's "Global
// mutable state" redesign note asks that the error buffer and symbol
// table be encapsulated per instance rather than process-wide; every
// piece of mutable interpreter state lives here so multiple Runtimes
// never cross-talk (spec §5).
type Runtime struct {
	Config  *Config
	Heap    *Heap
	Globals *SymbolTable
	Stack   *CallStack
	Image   *Image

	file string

	natives      []nativeEntry
	nativeByName map[string]FuncID

	debug debugState

	lastErr RuntimeError
}

type nativeEntry struct {
	name string
	fn   NativeFunc
}

// NewRuntime constructs an empty, ready-to-load Runtime (spec §6's
// `runtime_new`), with every intrinsic from §4.8 pre-registered.
func NewRuntime() *Runtime {
	cfg := NewConfig()
	rt := &Runtime{
		Config:       cfg,
		Heap:         NewHeap(),
		Globals:      NewSymbolTable(),
		Stack:        NewCallStack(cfg.CallDepthLimit),
		nativeByName: map[string]FuncID{},
	}
	registerIntrinsics(rt)
	return rt
}

// Free releases every value the runtime still holds (spec §6's
// `runtime_free`; spec §8 invariant 1 demands every heap object be
// released exactly once by the time this returns).
func (rt *Runtime) Free() {
	for _, f := range rt.Stack.Frames() {
		for _, v := range f.Tmpvar {
			rt.Heap.Release(v)
		}
	}
	rt.Globals.Clear(rt.Heap)
}

// LoadSource compiles Linguine source text into an Image and installs
// it as the runtime's active program, registering every compiled
// function into the global symbol table by name so CALL/THISCALL can
// resolve them uniformly alongside intrinsics (spec §6's
// `runtime_load_source`).
func (rt *Runtime) LoadSource(filename string, src []byte) error {
	rt.file = filename
	p, err := NewParser(filename, src)
	if err != nil {
		rt.recordErr(err)
		return err
	}
	fl, err := p.Parse()
	if err != nil {
		rt.recordErr(err)
		return err
	}
	img, err := Compile(filename, fl)
	if err != nil {
		rt.recordErr(err)
		return err
	}
	rt.installImage(img)
	glog.V(1).Infof("runtime: loaded %q (%d functions)", filename, len(img.Functions))
	return nil
}

// LoadImage installs a previously compiled, deserialized Image (spec
// §6's `runtime_load_image`).
func (rt *Runtime) LoadImage(data []byte) error {
	img, err := DecodeImage(data)
	if err != nil {
		rt.recordErr(err)
		return err
	}
	rt.installImage(img)
	return nil
}

func (rt *Runtime) installImage(img *Image) {
	rt.Image = img
	// Native ids start at len(img.Functions) (see nextNativeID), so every
	// native registered so far is rebound to its id under this image.
	for i, n := range rt.natives {
		id := FuncID(len(img.Functions) + i)
		rt.nativeByName[n.name] = id
		rt.Globals.Set(rt.Heap, n.name, FuncValue(id))
	}
	for i, fn := range img.Functions {
		rt.Globals.Set(rt.Heap, fn.Name, FuncValue(FuncID(i)))
	}
}

// RegisterFunc installs a host-provided native callable under name,
// indistinguishable at call sites from an intrinsic or a bytecode
// function (spec §6's `runtime_register_func`, §4.8).
func (rt *Runtime) RegisterFunc(name string, fn NativeFunc) {
	id := rt.nextNativeID()
	rt.natives = append(rt.natives, nativeEntry{name: name, fn: fn})
	rt.nativeByName[name] = id
	rt.Globals.Set(rt.Heap, name, FuncValue(id))
}

// nextNativeID allocates native-callable ids above the bytecode
// function id space, so a single FuncID numbers both: ids
// [0, len(Image.Functions)) are bytecode functions, everything at or
// above that indexes rt.natives.
func (rt *Runtime) nextNativeID() FuncID {
	base := 0
	if rt.Image != nil {
		base = len(rt.Image.Functions)
	}
	return FuncID(base + len(rt.natives))
}

func (rt *Runtime) resolveFunc(id FuncID) (fn *Function, native NativeFunc, isNative bool) {
	base := 0
	if rt.Image != nil {
		base = len(rt.Image.Functions)
	}
	if int(id) < base {
		return rt.Image.Func(id), nil, false
	}
	idx := int(id) - base
	if idx < 0 || idx >= len(rt.natives) {
		return nil, nil, false
	}
	return nil, rt.natives[idx].fn, true
}

// Call invokes a named function with argv (spec §6's `runtime_call`),
// per §5 re-entrant: a host callable invoked mid-call may itself call
// back into Call, pushing nested frames on the same stack.
func (rt *Runtime) Call(name string, argv []Value) (Value, error) {
	callee, ok := rt.Globals.Get(name)
	if !ok || callee.Kind != KindFunc {
		err := &NameError{At: rt.site(0), Name: name}
		rt.recordErr(err)
		return Value{}, err
	}
	result, err := rt.invoke(callee.Fn, argv, nil)
	if err != nil {
		rt.recordErr(err)
		return Value{}, err
	}
	return result, nil
}

func (rt *Runtime) recordErr(err error) {
	if re, ok := err.(RuntimeError); ok {
		rt.lastErr = re
	}
}

// LastError returns the (file, line, message) of the most recent
// failure, per spec §6's `runtime_last_error`.
func (rt *Runtime) LastError() RuntimeError { return rt.lastErr }

// SetDebugHook installs hook and enables the pre/post-instruction
// callbacks of spec §4.9.
func (rt *Runtime) SetDebugHook(hook DebugHook) {
	rt.debug.hook = hook
	rt.debug.enabled = hook != nil
	rt.Config.DebugHooksEnabled = hook != nil
}

func (rt *Runtime) SetStop(v bool)       { rt.debug.stop = v }
func (rt *Runtime) Stop() bool           { return rt.debug.stop }
func (rt *Runtime) SetSingleStep(v bool) { rt.debug.singleStep = v }
func (rt *Runtime) SingleStep() bool     { return rt.debug.singleStep }
func (rt *Runtime) SetCancel(v bool)     { rt.debug.cancel = v }
func (rt *Runtime) Cancel() bool         { return rt.debug.cancel }
