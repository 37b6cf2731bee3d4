package linguine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := NewRuntime()
	t.Cleanup(rt.Free)
	return rt
}

func TestOps_ArithIntWrapping(t *testing.T) {
	rt := newTestRuntime(t)
	v, err := rt.arith(OpAdd, IntValue(math.MaxInt32), IntValue(1), Site{})
	require.NoError(t, err)
	assert.Equal(t, IntValue(math.MinInt32), v, "Int addition wraps like Go's native int32")
}

func TestOps_ArithIntDivideByZero(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.arith(OpDiv, IntValue(1), IntValue(0), Site{Line: 7})
	require.Error(t, err)
	var dbz *DivideByZeroError
	require.ErrorAs(t, err, &dbz)
	assert.Equal(t, 7, dbz.At.Line)
}

func TestOps_ArithFloatDivideByZeroIsSilentInf(t *testing.T) {
	rt := newTestRuntime(t)
	v, err := rt.arith(OpDiv, FloatValue(1), FloatValue(0), Site{})
	require.NoError(t, err)
	assert.True(t, math.IsInf(v.F, 1))
}

func TestOps_ArithMixedIntFloatPromotesToFloat(t *testing.T) {
	rt := newTestRuntime(t)
	v, err := rt.arith(OpAdd, IntValue(1), FloatValue(0.5), Site{})
	require.NoError(t, err)
	assert.Equal(t, KindFloat, v.Kind)
	assert.Equal(t, 1.5, v.F)
}

func TestOps_ArithStringConcat(t *testing.T) {
	rt := newTestRuntime(t)
	a := StringValue(rt.Heap.AllocString("foo"))
	b := StringValue(rt.Heap.AllocString("bar"))
	v, err := rt.arith(OpAdd, a, b, Site{})
	require.NoError(t, err)
	assert.Equal(t, "foobar", rt.Heap.String(v.H))
}

func TestOps_ArithStringPlusNumberUsesDefaultDecimal(t *testing.T) {
	rt := newTestRuntime(t)
	a := StringValue(rt.Heap.AllocString("n="))
	v, err := rt.arith(OpAdd, a, IntValue(42), Site{})
	require.NoError(t, err)
	assert.Equal(t, "n=42", rt.Heap.String(v.H))
}

func TestOps_NegIsBitwiseComplementOnInt(t *testing.T) {
	rt := newTestRuntime(t)
	v, err := rt.negValue(IntValue(0), Site{})
	require.NoError(t, err)
	assert.Equal(t, IntValue(-1), v, "NEG on Int is ^i, not arithmetic negation")
}

func TestOps_NegIsArithmeticOnFloat(t *testing.T) {
	rt := newTestRuntime(t)
	v, err := rt.negValue(FloatValue(3.5), Site{})
	require.NoError(t, err)
	assert.Equal(t, FloatValue(-3.5), v)
}

func TestOps_BitwiseRejectsNonInt(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.bitwise(OpAnd, FloatValue(1), IntValue(1), Site{})
	require.Error(t, err)
	var te *TypeError
	require.ErrorAs(t, err, &te)
}

func TestOps_RelationalStringLexicographic(t *testing.T) {
	rt := newTestRuntime(t)
	a := StringValue(rt.Heap.AllocString("apple"))
	b := StringValue(rt.Heap.AllocString("banana"))
	v, err := rt.relational(OpLt, a, b, Site{})
	require.NoError(t, err)
	assert.Equal(t, IntValue(1), v)
}

func TestOps_LoadArrayPolymorphic(t *testing.T) {
	rt := newTestRuntime(t)

	arr := ArrayValue(rt.Heap.AllocArray())
	rt.Heap.ArraySet(arr.H, 0, IntValue(7))
	v, err := rt.loadArray(arr, IntValue(0), Site{})
	require.NoError(t, err)
	assert.Equal(t, IntValue(7), v)

	str := StringValue(rt.Heap.AllocString("hi"))
	v, err = rt.loadArray(str, IntValue(1), Site{})
	require.NoError(t, err)
	assert.Equal(t, "i", rt.Heap.String(v.H))

	d := DictValue(rt.Heap.AllocDict())
	rt.Heap.DictSet(d.H, "k", IntValue(9))
	v, err = rt.loadArray(d, IntValue(0), Site{})
	require.NoError(t, err)
	assert.Equal(t, IntValue(9), v)
}

func TestOps_LoadArrayOutOfRangeIsIndexError(t *testing.T) {
	rt := newTestRuntime(t)
	arr := ArrayValue(rt.Heap.AllocArray())
	_, err := rt.loadArray(arr, IntValue(0), Site{})
	require.Error(t, err)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
}

func TestOps_DictKeyByIndexPolymorphic(t *testing.T) {
	rt := newTestRuntime(t)

	d := DictValue(rt.Heap.AllocDict())
	rt.Heap.DictSet(d.H, "first", IntValue(1))
	k, err := rt.dictKeyByIndex(d, IntValue(0), Site{})
	require.NoError(t, err)
	assert.Equal(t, "first", rt.Heap.String(k.H))

	arr := ArrayValue(rt.Heap.AllocArray())
	rt.Heap.ArraySet(arr.H, 0, IntValue(100))
	k, err = rt.dictKeyByIndex(arr, IntValue(0), Site{})
	require.NoError(t, err)
	assert.Equal(t, IntValue(0), k, "array key-by-index is the Int index itself")
}

func TestOps_StoreArrayAppendAtLen(t *testing.T) {
	rt := newTestRuntime(t)
	arr := ArrayValue(rt.Heap.AllocArray())
	require.NoError(t, rt.storeArray(arr, IntValue(0), IntValue(5), Site{}))
	assert.Equal(t, 1, rt.Heap.ArrayLen(arr.H))
	err := rt.storeArray(arr, IntValue(5), IntValue(6), Site{})
	require.Error(t, err)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
}

func TestOps_DotFieldAccess(t *testing.T) {
	rt := newTestRuntime(t)
	d := DictValue(rt.Heap.AllocDict())
	require.NoError(t, rt.storeDot(d, "name", StringValue(rt.Heap.AllocString("linguine")), Site{}))
	v, err := rt.loadDot(d, "name", Site{})
	require.NoError(t, err)
	assert.Equal(t, "linguine", rt.Heap.String(v.H))

	_, err = rt.loadDot(IntValue(1), "name", Site{})
	require.Error(t, err)
	var te *TypeError
	require.ErrorAs(t, err, &te)
}
