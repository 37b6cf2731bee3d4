package linguine

import "github.com/samber/lo"

// objKind distinguishes the three heap object shapes. It mirrors
// ValueKind but lives on the object itself so the pool can be swept
// without consulting the Value that pointed at it.
type objKind uint8

const (
	objString objKind = iota
	objArray
	objDict
)

// heapObj is one entry in the Heap's object pool. Strings are
// immutable (spec §4.1); Array and Dict mutate in place but their
// Handle never changes, which is what lets STOREARRAY/STOREDOT mutate
// a container reachable from multiple tmpvars without forwarding
// pointers.
type heapObj struct {
	live bool
	obj  objKind

	str string

	arr []Value

	dictKeys []string
	dictVals []Value
	dictIdx  map[string]int

	refcount int
	marked   bool
}

// Heap owns every String/Array/Dict allocated by one Runtime. Objects
// are addressed by Handle (an index into objects), per spec §9's
// "model handles as opaque identifiers" note — this is what makes
// gc.go's sweep a simple array scan instead of a pointer walk.
type Heap struct {
	objects []heapObj
	free    []Handle

	// allocs counts allocations since the last GC sweep, compared
	// against Config.GCThreshold to decide when to run
	// automatically (spec §4.1: "invoked either at a fixed
	// allocation threshold or explicitly").
	allocs int
}

func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) newSlot() Handle {
	if len(h.free) > 0 {
		n := len(h.free) - 1
		hdl := h.free[n]
		h.free = h.free[:n]
		return hdl
	}
	h.objects = append(h.objects, heapObj{})
	return Handle(len(h.objects) - 1)
}

// AllocString allocates a fresh, unowned String object (refcount 0):
// ownership starts at whichever store (Retain, assign, ArraySet,
// DictSet, SymbolTable.Set) first takes a reference, the same
// "store is the retaining event" rule every other container
// mutation in this file follows.
func (h *Heap) AllocString(s string) Handle {
	hdl := h.newSlot()
	h.objects[hdl] = heapObj{live: true, obj: objString, str: s}
	h.allocs++
	return hdl
}

// AllocArray allocates a fresh, unowned Array object; see AllocString.
func (h *Heap) AllocArray() Handle {
	hdl := h.newSlot()
	h.objects[hdl] = heapObj{live: true, obj: objArray}
	h.allocs++
	return hdl
}

// AllocDict allocates a fresh, unowned Dict object; see AllocString.
func (h *Heap) AllocDict() Handle {
	hdl := h.newSlot()
	h.objects[hdl] = heapObj{live: true, obj: objDict, dictIdx: map[string]int{}}
	h.allocs++
	return hdl
}

func (h *Heap) obj(hdl Handle) *heapObj { return &h.objects[hdl] }

func (h *Heap) String(hdl Handle) string { return h.obj(hdl).str }

func (h *Heap) ArrayLen(hdl Handle) int { return len(h.obj(hdl).arr) }

func (h *Heap) ArrayGet(hdl Handle, i int) (Value, bool) {
	o := h.obj(hdl)
	if i < 0 || i >= len(o.arr) {
		return Value{}, false
	}
	return o.arr[i], true
}

// ArraySet implements STOREARRAY on an Array: 0 <= i <= len, i==len
// appends, retaining v and releasing whatever it replaces.
func (h *Heap) ArraySet(hdl Handle, i int, v Value) bool {
	o := h.obj(hdl)
	switch {
	case i == len(o.arr):
		o.arr = append(o.arr, v)
		h.Retain(v)
		return true
	case i >= 0 && i < len(o.arr):
		old := o.arr[i]
		o.arr[i] = v
		h.Retain(v)
		h.Release(old)
		return true
	default:
		return false
	}
}

// ArrayRemove deletes the element at i, shifting subsequent elements
// down, and returns the removed value. Backs the `remove` intrinsic.
func (h *Heap) ArrayRemove(hdl Handle, i int) (Value, bool) {
	o := h.obj(hdl)
	if i < 0 || i >= len(o.arr) {
		return Value{}, false
	}
	v := o.arr[i]
	o.arr = append(o.arr[:i], o.arr[i+1:]...)
	return v, true
}

func (h *Heap) DictLen(hdl Handle) int { return len(h.obj(hdl).dictKeys) }

// DictDelete removes key, shifting subsequent entries down to keep
// insertion order and reindexing dictIdx. Backs the `remove` intrinsic.
func (h *Heap) DictDelete(hdl Handle, key string) (Value, bool) {
	o := h.obj(hdl)
	i, ok := o.dictIdx[key]
	if !ok {
		return Value{}, false
	}
	v := o.dictVals[i]
	o.dictKeys = append(o.dictKeys[:i], o.dictKeys[i+1:]...)
	o.dictVals = append(o.dictVals[:i], o.dictVals[i+1:]...)
	delete(o.dictIdx, key)
	for k, idx := range o.dictIdx {
		if idx > i {
			o.dictIdx[k] = idx - 1
		}
	}
	return v, true
}

func (h *Heap) DictGet(hdl Handle, key string) (Value, bool) {
	o := h.obj(hdl)
	if i, ok := o.dictIdx[key]; ok {
		return o.dictVals[i], true
	}
	return Value{}, false
}

// DictSet implements STOREDOT/dict assignment: insertion order is
// preserved for new keys, existing keys are updated in place.
func (h *Heap) DictSet(hdl Handle, key string, v Value) {
	o := h.obj(hdl)
	if i, ok := o.dictIdx[key]; ok {
		old := o.dictVals[i]
		o.dictVals[i] = v
		h.Retain(v)
		h.Release(old)
		return
	}
	o.dictIdx[key] = len(o.dictKeys)
	o.dictKeys = append(o.dictKeys, key)
	o.dictVals = append(o.dictVals, v)
	h.Retain(v)
}

func (h *Heap) KeyAt(hdl Handle, i int) (string, bool) {
	o := h.obj(hdl)
	if i < 0 || i >= len(o.dictKeys) {
		return "", false
	}
	return o.dictKeys[i], true
}

func (h *Heap) ValAt(hdl Handle, i int) (Value, bool) {
	o := h.obj(hdl)
	if i < 0 || i >= len(o.dictVals) {
		return Value{}, false
	}
	return o.dictVals[i], true
}

// DictKeys returns a snapshot of a Dict's keys in insertion order,
// backing the `keys` intrinsic.
func (h *Heap) DictKeys(hdl Handle) []string {
	o := h.obj(hdl)
	return lo.Map(o.dictKeys, func(k string, _ int) string { return k })
}

// Retain increments the refcount of v's heap object, if any. Called
// whenever a Value is copied into a new root: a tmpvar, a container
// slot, or the global symbol table (spec §3/§4.1).
func (h *Heap) Retain(v Value) {
	if !v.IsHeap() {
		return
	}
	h.obj(v.H).refcount++
}

// Release decrements the refcount of v's heap object, if any,
// recursively releasing an Array/Dict's children and freeing the slot
// once the count reaches zero. Cyclic structures are not reclaimed by
// Release alone — gc.go's mark-and-sweep pass is responsible for
// those (spec §3, §9).
func (h *Heap) Release(v Value) {
	if !v.IsHeap() {
		return
	}
	o := h.obj(v.H)
	if !o.live {
		return
	}
	o.refcount--
	if o.refcount > 0 {
		return
	}
	h.free_(v.H)
}

func (h *Heap) free_(hdl Handle) {
	o := h.obj(hdl)
	if !o.live {
		return
	}
	switch o.obj {
	case objArray:
		for _, e := range o.arr {
			h.Release(e)
		}
	case objDict:
		for _, e := range o.dictVals {
			h.Release(e)
		}
	}
	*o = heapObj{}
	h.free = append(h.free, hdl)
}

// LiveCount reports the number of allocated, unfreed heap objects.
// Used by the ref-count soundness property test (spec §8 invariant 1).
func (h *Heap) LiveCount() int {
	n := 0
	for _, o := range h.objects {
		if o.live {
			n++
		}
	}
	return n
}
