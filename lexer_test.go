package linguine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer("t.lng", []byte(src))
	var out []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out
		}
	}
}

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexer_Keywords(t *testing.T) {
	toks := lexAll(t, "func while for")
	assert.Equal(t, []TokenKind{TokFunc, TokWhile, TokFor, TokEOF}, kinds(toks))
}

func TestLexer_NumbersAndFloats(t *testing.T) {
	toks := lexAll(t, "42 3.5 0x1F")
	require.Len(t, toks, 4)
	assert.Equal(t, TokInt, toks[0].Kind)
	assert.Equal(t, int32(42), toks[0].IntVal)
	assert.Equal(t, TokFloat, toks[1].Kind)
	assert.Equal(t, 3.5, toks[1].FltVal)
	assert.Equal(t, TokInt, toks[2].Kind)
	assert.Equal(t, int32(31), toks[2].IntVal)
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\"c"`)
	require.Len(t, toks, 2)
	assert.Equal(t, TokStr, toks[0].Kind)
	assert.Equal(t, "a\nb\"c", toks[0].Text)
}

func TestLexer_TwoCharOperators(t *testing.T) {
	toks := lexAll(t, "<= >= == != && || -> => ..")
	assert.Equal(t, []TokenKind{
		TokLte, TokGte, TokEq, TokNeq, TokAnd, TokOr, TokArrow, TokFatArrow, TokDotDot, TokEOF,
	}, kinds(toks))
}

func TestLexer_CommentsAreSkipped(t *testing.T) {
	toks := lexAll(t, "1 // trailing comment\n2 /* block\ncomment */ 3")
	require.Len(t, toks, 4)
	assert.Equal(t, int32(1), toks[0].IntVal)
	assert.Equal(t, int32(2), toks[1].IntVal)
	assert.Equal(t, int32(3), toks[2].IntVal)
}

func TestLexer_LineColumnTracking(t *testing.T) {
	toks := lexAll(t, "a\nb")
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}

func TestLexer_UnterminatedStringIsLexError(t *testing.T) {
	l := NewLexer("t.lng", []byte(`"abc`))
	_, err := l.Next()
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestLexer_UnexpectedByteIsLexError(t *testing.T) {
	l := NewLexer("t.lng", []byte("@"))
	_, err := l.Next()
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}
