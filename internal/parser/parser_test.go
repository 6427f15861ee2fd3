package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleFunc(t *testing.T) {
	prog, err := Parse(`func main() { int x; x = 1 + 2 * 3; printInt(x); }`)
	require.NoError(t, err)
	require.Len(t, prog.Functions, 1)
	require.Equal(t, "main", prog.Functions[0].Name)
	require.Len(t, prog.Functions[0].Body, 3)

	assign, ok := prog.Functions[0].Body[1].(*Assign)
	require.True(t, ok)
	bin, ok := assign.Expr.(*BinOp)
	require.True(t, ok)
	require.Equal(t, "+", bin.Op)
	mul, ok := bin.B.(*BinOp)
	require.True(t, ok)
	require.Equal(t, "*", mul.Op)
}

func TestParseWhileWithBreak(t *testing.T) {
	prog, err := Parse(`func main() { int i; while (i <= 10) { if (i == 5) { break; } } }`)
	require.NoError(t, err)
	while, ok := prog.Functions[0].Body[1].(*While)
	require.True(t, ok)
	ifStmt, ok := while.Body[0].(*If)
	require.True(t, ok)
	require.False(t, ifStmt.HasElse)
	_, ok = ifStmt.Then[0].(*Break)
	require.True(t, ok)
}

func TestParseIfElse(t *testing.T) {
	prog, err := Parse(`func main() { if (true) { printInt(1); } else { printInt(0); } }`)
	require.NoError(t, err)
	ifStmt := prog.Functions[0].Body[0].(*If)
	require.True(t, ifStmt.HasElse)
	require.Len(t, ifStmt.Else, 1)
}

func TestParsePrintStringLiteral(t *testing.T) {
	prog, err := Parse(`func main() { print("hi"); }`)
	require.NoError(t, err)
	ps, ok := prog.Functions[0].Body[0].(*PrintStr)
	require.True(t, ok)
	require.Equal(t, "hi", ps.Text)
}

func TestParseCallExprAndStmt(t *testing.T) {
	prog, err := Parse(`func main() { int x; x = readInt(); set(x, 0, 1); }`)
	require.NoError(t, err)
	assign := prog.Functions[0].Body[1].(*Assign)
	call, ok := assign.Expr.(*Call)
	require.True(t, ok)
	require.Equal(t, "readInt", call.Name)

	callStmt := prog.Functions[0].Body[2].(*CallStmt)
	require.Equal(t, "set", callStmt.Name)
	require.Len(t, callStmt.Args, 3)
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := Parse("func main() { int x }")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 1, perr.Line)
	require.Equal(t, 21, perr.Col)
}

func TestParseMultipleFunctions(t *testing.T) {
	prog, err := Parse(`func irq1() { di(); iret_helper(); } func main() { }`)
	require.NoError(t, err)
	require.Len(t, prog.Functions, 2)
	require.Equal(t, "irq1", prog.Functions[0].Name)
}
