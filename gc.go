package linguine

import "github.com/golang/glog"

// GCRoots is the set of Values the tracing collector starts from:
// every live frame's tmpvar file plus the global symbol table (spec
// §3: "a tracing collector that treats every live frame's tmpvars +
// global symbol table as roots").
type GCRoots struct {
	Frames  []*Frame
	Globals *SymbolTable
}

// GC walks the heap from roots, marking everything reachable, then
// force-frees whatever an object's refcount alone could not reclaim:
// cycles between Array and Dict values (spec §3, §9). It must not run
// mid-mutation of an operator, so the interpreter only calls it
// between instructions (spec §4.1).
func (h *Heap) GC(roots GCRoots) {
	before := h.LiveCount()

	for i := range h.objects {
		h.objects[i].marked = false
	}

	for _, f := range roots.Frames {
		for _, v := range f.Tmpvar {
			h.mark(v)
		}
	}
	if roots.Globals != nil {
		for _, v := range roots.Globals.values {
			h.mark(v)
		}
	}

	reclaimed := 0
	for hdl := range h.objects {
		o := &h.objects[hdl]
		if o.live && !o.marked {
			h.forceFree(Handle(hdl))
			reclaimed++
		}
	}

	h.allocs = 0
	glog.V(1).Infof("gc: swept %d/%d live objects, %d reclaimed", before, len(h.objects), reclaimed)
}

func (h *Heap) mark(v Value) {
	if !v.IsHeap() {
		return
	}
	o := h.obj(v.H)
	if !o.live || o.marked {
		return
	}
	o.marked = true
	switch o.obj {
	case objArray:
		for _, e := range o.arr {
			h.mark(e)
		}
	case objDict:
		for _, e := range o.dictVals {
			h.mark(e)
		}
	}
}

// forceFree reclaims an object the mark pass proved unreachable,
// bypassing the refcount check Release performs (an unreachable cycle
// never reaches refcount zero on its own).
func (h *Heap) forceFree(hdl Handle) {
	o := h.obj(hdl)
	if !o.live {
		return
	}
	*o = heapObj{}
	h.free = append(h.free, hdl)
}

// ShouldCollect reports whether allocation pressure has crossed the
// configured threshold (spec §4.1).
func (h *Heap) ShouldCollect(threshold int) bool {
	return h.allocs >= threshold
}
