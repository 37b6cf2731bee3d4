package linguine

// DebugHook is the pre/post-instruction callback contract of spec
// §4.9. Only the contract is specified here — the interactive
// single-step UI loop that drives it is explicitly out of scope
// (spec §1).
//
// Per spec §9's re-entrancy note, a hook implementation must be
// side-effect-free and must not allocate: it may call accessor
// methods on Runtime to inspect the current frame's tmpvars but must
// not mutate heap state or the call stack.
type DebugHook interface {
	PreHook(frame *Frame, pc int)
	PostHook(frame *Frame, pc int)
}

// debugState holds the stop/single_step/cancel flags spec §4.9/§5
// say are "owned by the runtime" — the host flips them through
// Runtime's accessor methods to implement an interactive prompt or a
// cooperative cancellation request.
type debugState struct {
	hook    DebugHook
	enabled bool

	stop       bool
	singleStep bool
	cancel     bool

	lastFile string
	lastLine int
}

// observeLine implements the single-step semantics of spec §4.9: the
// post-hook re-arms `stop` once execution crosses into a different
// source line (or file) than the previously executed instruction. The
// first observation, with no line recorded yet, only records it.
func (d *debugState) observeLine(file string, line int) {
	if !d.singleStep {
		d.lastFile, d.lastLine = file, line
		return
	}
	if d.lastLine != 0 && (file != d.lastFile || line != d.lastLine) {
		d.stop = true
	}
	d.lastFile, d.lastLine = file, line
}
