package linguine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSrc(t *testing.T, src string) *FuncList {
	t.Helper()
	p, err := NewParser("t.lng", []byte(src))
	require.NoError(t, err)
	fl, err := p.Parse()
	require.NoError(t, err)
	return fl
}

func TestParser_SimpleFunc(t *testing.T) {
	fl := parseSrc(t, `func add(a, b) { return a + b; }`)
	require.Len(t, fl.Funcs, 1)
	fn := fl.Funcs[0]
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	require.Len(t, fn.Body, 1)
	ret, ok := fn.Body[0].(*ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Value.(*BinOp)
	require.True(t, ok)
	assert.Equal(t, TokPlus, bin.Op)
}

func TestParser_DuplicateParamIsCompileError(t *testing.T) {
	p, err := NewParser("t.lng", []byte(`func f(a, a) { return 0; }`))
	require.NoError(t, err)
	_, err = p.Parse()
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestParser_IfElseIfElseChain(t *testing.T) {
	fl := parseSrc(t, `
		func f(x) {
			if (x == 1) {
				return 1;
			} else if (x == 2) {
				return 2;
			} else {
				return 3;
			}
		}
	`)
	fn := fl.Funcs[0]
	stmt, ok := fn.Body[0].(*IfStmt)
	require.True(t, ok)
	require.Len(t, stmt.Elifs, 1)
	require.NotNil(t, stmt.Else)
}

func TestParser_ForRangeForVForKV(t *testing.T) {
	fl := parseSrc(t, `
		func f() {
			for (i in 0..10) { }
			for (v in arr) { }
			for (k, v in arr) { }
		}
	`)
	body := fl.Funcs[0].Body
	require.Len(t, body, 3)
	_, ok := body[0].(*ForRange)
	assert.True(t, ok)
	_, ok = body[1].(*ForV)
	assert.True(t, ok)
	_, ok = body[2].(*ForKV)
	assert.True(t, ok)
}

func TestParser_ArrayAndDictLiterals(t *testing.T) {
	fl := parseSrc(t, `
		func f() {
			a = [1, 2, 3];
			d = { x: 1, y: 2 };
		}
	`)
	body := fl.Funcs[0].Body
	require.Len(t, body, 2)
	assign1 := body[0].(*AssignStmt)
	arr, ok := assign1.Value.(*ArrayLit)
	require.True(t, ok)
	assert.Len(t, arr.Items, 3)

	assign2 := body[1].(*AssignStmt)
	dict, ok := assign2.Value.(*DictLit)
	require.True(t, ok)
	require.Len(t, dict.Entries, 2)
	assert.Equal(t, "x", dict.Entries[0].Key)
}

func TestParser_ThisCallAndSubscriptAndDot(t *testing.T) {
	fl := parseSrc(t, `
		func f(obj, arr) {
			obj->method(1, 2);
			x = arr[0];
			y = obj.field;
		}
	`)
	body := fl.Funcs[0].Body
	require.Len(t, body, 3)
	es := body[0].(*ExprStmt)
	tc, ok := es.Expr.(*ThisCall)
	require.True(t, ok)
	assert.Equal(t, "method", tc.Method)
	assert.Len(t, tc.Args, 2)

	sub := body[1].(*AssignStmt).Value.(*Subscript)
	_, ok = sub.Index.(*Term)
	assert.True(t, ok)

	dot := body[2].(*AssignStmt).Value.(*Dot)
	assert.Equal(t, "field", dot.Name)
}

func TestParser_OperatorPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse as 1 + (2 * 3)
	fl := parseSrc(t, `func f() { return 1 + 2 * 3; }`)
	ret := fl.Funcs[0].Body[0].(*ReturnStmt)
	add, ok := ret.Value.(*BinOp)
	require.True(t, ok)
	assert.Equal(t, TokPlus, add.Op)
	mul, ok := add.Right.(*BinOp)
	require.True(t, ok)
	assert.Equal(t, TokStar, mul.Op)
}

func TestParser_UnexpectedTokenIsSyntaxError(t *testing.T) {
	p, err := NewParser("t.lng", []byte(`func f() { x = ; }`))
	require.NoError(t, err)
	_, err = p.Parse()
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}
