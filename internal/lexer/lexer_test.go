package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeKeywordsAndIdentifiers(t *testing.T) {
	toks, err := Tokenize("func main() { int x; }")
	require.NoError(t, err)
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []Kind{KW, ID, "(", ")", "{", KW, ID, ";", "}"}, kinds)
}

func TestTokenizeStringLiteral(t *testing.T) {
	toks, err := Tokenize(`print("hello");`)
	require.NoError(t, err)
	require.Equal(t, Str, toks[2].Kind)
	require.Equal(t, "hello", toks[2].Value)
}

func TestTokenizeTwoCharOperators(t *testing.T) {
	toks, err := Tokenize("a <= b == c")
	require.NoError(t, err)
	require.Equal(t, Kind("<="), toks[1].Kind)
	require.Equal(t, Kind("=="), toks[3].Kind)
}

func TestTokenizeLineComment(t *testing.T) {
	toks, err := Tokenize("int x; // comment\nint y;")
	require.NoError(t, err)
	require.Len(t, toks, 6)
}

func TestTokenizeUnexpectedCharError(t *testing.T) {
	_, err := Tokenize("int x = @;")
	require.Error(t, err)
	var lexErr *Error
	require.ErrorAs(t, err, &lexErr)
}

func TestTokenizeTracksLineAndColumn(t *testing.T) {
	toks, err := Tokenize("int x;\nint y;")
	require.NoError(t, err)
	require.Equal(t, 2, toks[3].Line)
	require.Equal(t, 5, toks[4].Col)
}
