package linguine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileSrc(t *testing.T, src string) *Image {
	t.Helper()
	p, err := NewParser("t.lng", []byte(src))
	require.NoError(t, err)
	fl, err := p.Parse()
	require.NoError(t, err)
	img, err := Compile("t.lng", fl)
	require.NoError(t, err)
	return img
}

func opSeq(code []Instruction) []Opcode {
	out := make([]Opcode, len(code))
	for i, instr := range code {
		out[i] = instr.Op
	}
	return out
}

func TestCompile_SimpleAddReturn(t *testing.T) {
	img := compileSrc(t, `func add(a, b) { return a + b; }`)
	fn := img.Func(0)
	// add, assign-into-slot-0, jump-past-the-implicit-trailing-return,
	// then the implicit `return 0` itself (dead unless control falls
	// off the end without an explicit return).
	assert.Equal(t, []Opcode{OpAdd, OpAssign, OpJmp, OpIConst, OpAssign}, opSeq(fn.Code))
	assert.Equal(t, 0, fn.Code[1].Dst)
	assert.Equal(t, len(fn.Code), fn.Code[2].Target, "explicit return jumps clear past the implicit trailing return")
}

// TestCompile_ExplicitReturnIsNotClobberedByImplicitTrailingReturn
// guards the bug where a mid-function `return` fell through into the
// compiler's own implicit `return 0` and lost its value.
func TestCompile_ExplicitReturnIsNotClobberedByImplicitTrailingReturn(t *testing.T) {
	img := compileSrc(t, `
		func f(x) {
			if (x == 1) {
				return 99;
			}
			return 0;
		}
	`)
	fn := img.Func(0)
	// Every explicit return's OpJmp must land at len(fn.Code): it must
	// never be followed by code that overwrites tmpvar[0].
	foundJumpToEnd := false
	for _, instr := range fn.Code {
		if instr.Op == OpJmp && instr.Target == len(fn.Code) {
			foundJumpToEnd = true
		}
	}
	assert.True(t, foundJumpToEnd, "at least one return must jump clear to the function's end")
}

func TestCompile_DuplicateFunctionNameIsCompileError(t *testing.T) {
	p, err := NewParser("t.lng", []byte(`
		func f() { return 1; }
		func f() { return 2; }
	`))
	require.NoError(t, err)
	fl, err := p.Parse()
	require.NoError(t, err)
	_, err = Compile("t.lng", fl)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestCompile_BreakOutsideLoopIsCompileError(t *testing.T) {
	p, err := NewParser("t.lng", []byte(`func f() { break; }`))
	require.NoError(t, err)
	fl, err := p.Parse()
	require.NoError(t, err)
	_, err = Compile("t.lng", fl)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestCompile_ContinueOutsideLoopIsCompileError(t *testing.T) {
	p, err := NewParser("t.lng", []byte(`func f() { continue; }`))
	require.NoError(t, err)
	fl, err := p.Parse()
	require.NoError(t, err)
	_, err = Compile("t.lng", fl)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

// TestCompile_AssignedNameIsLocalNotGlobal verifies the collectLocals
// resolution: a name assigned anywhere in the function body never
// compiles to LOADSYMBOL/STORESYMBOL, which is what keeps recursive
// calls from aliasing a shared global slot.
func TestCompile_AssignedNameIsLocalNotGlobal(t *testing.T) {
	img := compileSrc(t, `
		func f() {
			x = 1;
			x = x + 1;
			return x;
		}
	`)
	fn := img.Func(0)
	for _, instr := range fn.Code {
		assert.NotEqual(t, OpLoadSymbol, instr.Op, "assigned local must never resolve through the symbol table")
		assert.NotEqual(t, OpStoreSymbol, instr.Op, "assigned local must never resolve through the symbol table")
	}
}

// TestCompile_CallByNameUsesLoadSymbol verifies the complementary half:
// a bare identifier that collectLocals never sees (another function's
// name) still falls back to LOADSYMBOL.
func TestCompile_CallByNameUsesLoadSymbol(t *testing.T) {
	img := compileSrc(t, `
		func fib(n) {
			return fib(n);
		}
	`)
	fn := img.Func(0)
	found := false
	for _, instr := range fn.Code {
		if instr.Op == OpLoadSymbol {
			found = true
		}
	}
	assert.True(t, found, "calling another (or the same) function by name resolves via LOADSYMBOL")
}

func TestCompile_LoopVariableGetsDedicatedSlotAcrossNesting(t *testing.T) {
	img := compileSrc(t, `
		func f(arr) {
			total = 0;
			for (v in arr) {
				total = total + v;
			}
			return total;
		}
	`)
	fn := img.Func(0)
	// total and v are both locals; no LOADSYMBOL/STORESYMBOL anywhere.
	for _, instr := range fn.Code {
		assert.NotEqual(t, OpLoadSymbol, instr.Op)
		assert.NotEqual(t, OpStoreSymbol, instr.Op)
	}
}

func TestCompile_ConstantPoolDeduplication(t *testing.T) {
	img := compileSrc(t, `
		func f() {
			a = "x" + "x";
			return a;
		}
	`)
	fn := img.Func(0)
	assert.Len(t, fn.ConstStrs, 1, "the same string literal seen twice shares one pool slot")
}

func TestCompile_IfElseJumpsAreWellFormed(t *testing.T) {
	img := compileSrc(t, `
		func f(x) {
			if (x == 1) {
				return 1;
			} else {
				return 2;
			}
		}
	`)
	fn := img.Func(0)
	for i, instr := range fn.Code {
		if instr.Op == OpJmp || instr.Op == OpJmpIfFalse || instr.Op == OpJmpIfTrue {
			assert.GreaterOrEqual(t, instr.Target, 0)
			assert.LessOrEqual(t, instr.Target, len(fn.Code), "jump target %d out of range at instruction %d", instr.Target, i)
		}
	}
}
