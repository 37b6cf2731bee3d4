package linguine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeap_ArrayAppendAndGet(t *testing.T) {
	h := NewHeap()
	arr := h.AllocArray()
	require.True(t, h.ArraySet(arr, 0, IntValue(10)))
	require.True(t, h.ArraySet(arr, 1, IntValue(20)))
	assert.False(t, h.ArraySet(arr, 5, IntValue(30)), "store past len must fail, not silently extend")

	v, ok := h.ArrayGet(arr, 1)
	require.True(t, ok)
	assert.Equal(t, IntValue(20), v)

	_, ok = h.ArrayGet(arr, 2)
	assert.False(t, ok)
}

func TestHeap_ArrayRemove(t *testing.T) {
	h := NewHeap()
	arr := h.AllocArray()
	for i, n := range []int32{10, 20, 30} {
		h.ArraySet(arr, i, IntValue(n))
	}
	v, ok := h.ArrayRemove(arr, 1)
	require.True(t, ok)
	assert.Equal(t, IntValue(20), v)
	assert.Equal(t, 2, h.ArrayLen(arr))
	v0, _ := h.ArrayGet(arr, 0)
	v1, _ := h.ArrayGet(arr, 1)
	assert.Equal(t, IntValue(10), v0)
	assert.Equal(t, IntValue(30), v1)

	_, ok = h.ArrayRemove(arr, 5)
	assert.False(t, ok)
}

func TestHeap_DictSetGetOrder(t *testing.T) {
	h := NewHeap()
	d := h.AllocDict()
	h.DictSet(d, "b", IntValue(2))
	h.DictSet(d, "a", IntValue(1))
	h.DictSet(d, "b", IntValue(22)) // update in place, order unchanged

	assert.Equal(t, []string{"b", "a"}, h.DictKeys(d))
	v, ok := h.DictGet(d, "b")
	require.True(t, ok)
	assert.Equal(t, IntValue(22), v)
}

func TestHeap_DictDelete(t *testing.T) {
	h := NewHeap()
	d := h.AllocDict()
	h.DictSet(d, "a", IntValue(1))
	h.DictSet(d, "b", IntValue(2))
	h.DictSet(d, "c", IntValue(3))

	v, ok := h.DictDelete(d, "b")
	require.True(t, ok)
	assert.Equal(t, IntValue(2), v)
	assert.Equal(t, []string{"a", "c"}, h.DictKeys(d))

	k, ok := h.KeyAt(d, 1)
	require.True(t, ok)
	assert.Equal(t, "c", k)

	_, ok = h.DictDelete(d, "nope")
	assert.False(t, ok)
}

func TestHeap_RetainReleaseFreesAtZero(t *testing.T) {
	h := NewHeap()
	s := h.AllocString("x")
	h.Retain(StringValue(s)) // the owning store (a tmpvar, in real use)
	require.Equal(t, 1, h.LiveCount())

	h.Retain(StringValue(s))
	h.Release(StringValue(s))
	assert.Equal(t, 1, h.LiveCount(), "refcount 1 after matched retain/release")

	h.Release(StringValue(s))
	assert.Equal(t, 0, h.LiveCount(), "last release frees the object")
}

func TestHeap_ReleaseRecursesIntoContainers(t *testing.T) {
	h := NewHeap()
	inner := h.AllocString("leaf")
	outer := h.AllocArray()
	h.Retain(ArrayValue(outer)) // the owning store (a tmpvar, in real use)
	h.ArraySet(outer, 0, StringValue(inner))
	require.Equal(t, 2, h.LiveCount())

	h.Release(ArrayValue(outer))
	assert.Equal(t, 0, h.LiveCount(), "freeing a container releases its children")
}

func TestHeap_SlotReuseAfterFree(t *testing.T) {
	h := NewHeap()
	a := h.AllocString("a")
	h.Release(StringValue(a))
	b := h.AllocString("b")
	assert.Equal(t, a, b, "a freed slot is reused rather than growing the pool")
}
