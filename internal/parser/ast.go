// Package parser turns a token stream from internal/lexer into the
// AST consumed by internal/codegen.
package parser

// Program is the root AST node: a sequence of functions.
type Program struct {
	Functions []*Func
}

// Func is a function with a name and a flat statement body (no
// nested function declarations, no parameters).
type Func struct {
	Name string
	Body []Stmt
}

// Stmt is implemented by every statement node.
type Stmt interface{ stmt() }

// VarDecl declares a variable of one of the four primitive types.
type VarDecl struct {
	Type string // "int", "long", "string", "char"
	Name string
}

// Assign stores the value of Expr into the variable named Name.
type Assign struct {
	Name string
	Expr Expr
}

// While loops over Body while Cond is nonzero.
type While struct {
	Cond Expr
	Body []Stmt
}

// If is a conditional with an optional else branch.
type If struct {
	Cond     Expr
	Then     []Stmt
	Else     []Stmt // nil if no else clause
	HasElse  bool
}

// Break exits the nearest enclosing While.
type Break struct{}

// PrintInt writes Expr's value as signed decimal to port D, followed
// by a newline to port CH.
type PrintInt struct{ Expr Expr }

// PrintStr writes a string literal's bytes to port CH.
type PrintStr struct{ Text string }

// PrintChar writes a single evaluated character to port CH, unless
// Expr names a string variable, in which case it prints the whole
// C-string.
type PrintChar struct{ Expr Expr }

// CallStmt is a call used as a statement (ei, di, printChar, set, ...).
type CallStmt struct {
	Name string
	Args []Expr
}

func (*VarDecl) stmt()  {}
func (*Assign) stmt()   {}
func (*While) stmt()    {}
func (*If) stmt()       {}
func (*Break) stmt()    {}
func (*PrintInt) stmt() {}
func (*PrintStr) stmt() {}
func (*PrintChar) stmt(){}
func (*CallStmt) stmt() {}

// Expr is implemented by every expression node.
type Expr interface{ expr() }

// IntLit is an integer literal (also used for "true" -> 1, and as a
// zero placeholder for a bare string-literal term outside print()).
type IntLit struct{ Value int32 }

// Var is a variable reference.
type Var struct{ Name string }

// BinOp is a binary operator: one of + - * <= ==.
type BinOp struct {
	Op   string
	A, B Expr
}

// Call is a call used as an expression (readInt, readChar,
// readString, readLong, get, ...).
type Call struct {
	Name string
	Args []Expr
}

func (*IntLit) expr() {}
func (*Var) expr()    {}
func (*BinOp) expr()  {}
func (*Call) expr()   {}
