package linguine

// SymbolTable is the global scope: the registry for intrinsics,
// host-bound callables and user-defined functions at load time, and
// the target of bare-identifier LOADSYMBOL/STORESYMBOL (spec §3).
// One instance lives per Runtime so multiple language instances never
// share state (spec §5, §9's "Global mutable state" redesign note).
type SymbolTable struct {
	names  map[string]int
	keys   []string
	values []Value
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{names: map[string]int{}}
}

func (t *SymbolTable) Get(name string) (Value, bool) {
	if i, ok := t.names[name]; ok {
		return t.values[i], true
	}
	return Value{}, false
}

// Set binds name to v, retaining v and releasing whatever it replaces
// via heap so the global table participates correctly in refcounting.
func (t *SymbolTable) Set(heap *Heap, name string, v Value) {
	if i, ok := t.names[name]; ok {
		old := t.values[i]
		t.values[i] = v
		heap.Retain(v)
		heap.Release(old)
		return
	}
	t.names[name] = len(t.values)
	t.keys = append(t.keys, name)
	t.values = append(t.values, v)
	heap.Retain(v)
}

// Clear releases every bound value, called on runtime teardown (spec §3).
func (t *SymbolTable) Clear(heap *Heap) {
	for _, v := range t.values {
		heap.Release(v)
	}
	t.names = map[string]int{}
	t.keys = nil
	t.values = nil
}
