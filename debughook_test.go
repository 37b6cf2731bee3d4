package linguine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugState_ObserveLineIsNoopWhenNotSingleStepping(t *testing.T) {
	d := &debugState{}
	d.observeLine("a.lng", 1)
	d.observeLine("a.lng", 2)
	assert.False(t, d.stop, "observeLine must not arm stop unless single-stepping is on")
}

func TestDebugState_ObserveLineRearmsStopOnLineChange(t *testing.T) {
	d := &debugState{singleStep: true}
	d.observeLine("a.lng", 1)
	assert.False(t, d.stop, "first observation just records the starting line")

	d.observeLine("a.lng", 1)
	assert.False(t, d.stop, "same line must not rearm stop")

	d.observeLine("a.lng", 2)
	assert.True(t, d.stop, "crossing into a new line rearms stop")
}

func TestDebugState_ObserveLineRearmsStopOnFileChange(t *testing.T) {
	d := &debugState{singleStep: true}
	d.observeLine("a.lng", 5)
	d.observeLine("b.lng", 5)
	assert.True(t, d.stop, "crossing into a new file at the same line still rearms stop")
}

// countingHook records every PC the interpreter pre/post-hooks fire at,
// and clears the `stop` gate on every PreHook so the interpreter always
// makes forward progress.
type countingHook struct {
	rt        *Runtime
	preCalls  int
	postCalls int
}

func (c *countingHook) PreHook(frame *Frame, pc int) {
	c.preCalls++
	c.rt.SetStop(false)
}

func (c *countingHook) PostHook(frame *Frame, pc int) {
	c.postCalls++
}

func TestDebugHook_FiresAroundEveryInstruction(t *testing.T) {
	rt := NewRuntime()
	defer rt.Free()
	require.NoError(t, rt.LoadSource("t.lng", []byte(`func main() { return 1 + 2; }`)))

	hook := &countingHook{rt: rt}
	rt.SetDebugHook(hook)
	rt.SetSingleStep(true)

	v, err := rt.Call("main", nil)
	require.NoError(t, err)
	assert.Equal(t, IntValue(3), v)
	assert.Equal(t, hook.preCalls, hook.postCalls)
	assert.Greater(t, hook.preCalls, 0)
}

func TestDebugHook_NotInvokedWhenUnset(t *testing.T) {
	rt := NewRuntime()
	defer rt.Free()
	require.NoError(t, rt.LoadSource("t.lng", []byte(`func main() { return 1; }`)))
	v, err := rt.Call("main", nil)
	require.NoError(t, err)
	assert.Equal(t, IntValue(1), v)
}
