package codegen

import (
	"github.com/yasnov/algstack/internal/isa"
	"github.com/yasnov/algstack/internal/parser"
)

func (c *Codegen) genStmt(s parser.Stmt) error {
	switch v := s.(type) {
	case *parser.Break:
		if len(c.breakStack) == 0 {
			return &Error{Msg: "codegen: break outside of loop"}
		}
		hole := c.emitHole(isa.JMP)
		top := len(c.breakStack) - 1
		c.breakStack[top] = append(c.breakStack[top], hole)
		return nil

	case *parser.VarDecl:
		c.varTypes[v.Name] = v.Type
		c.allocVar(v.Name)
		if v.Type == "string" {
			base := c.allocBuffer(64)
			varAddr := c.allocVar(v.Name)
			c.emit(isa.PUSHI, int32(base))
			c.emit(isa.PUSHI, int32(varAddr))
			c.emit(isa.STORE, 0)
		}
		return nil

	case *parser.Assign:
		return c.genAssign(v)

	case *parser.While:
		return c.genWhile(v)

	case *parser.If:
		return c.genIf(v)

	case *parser.CallStmt:
		return c.genCallStmt(v)

	case *parser.PrintInt:
		if err := c.genExpr(v.Expr); err != nil {
			return err
		}
		c.emit(isa.OUT, int32(isa.PortD))
		c.emit(isa.PUSHI, int32('\n'))
		c.emit(isa.OUT, int32(isa.PortCH))
		return nil

	case *parser.PrintStr:
		varAddr := c.ensureCstrLiteral(v.Text)
		c.emitPrintCstr(varAddr)
		return nil

	case *parser.PrintChar:
		if name, ok := v.Expr.(*parser.Var); ok && c.varTypes[name.Name] == "string" {
			addr := c.allocVar(name.Name)
			c.emitPrintCstr(addr)
			return nil
		}
		if err := c.genExpr(v.Expr); err != nil {
			return err
		}
		c.emit(isa.OUT, int32(isa.PortCH))
		return nil
	}
	return &Error{Msg: "codegen: unsupported statement"}
}

func (c *Codegen) genWhile(w *parser.While) error {
	start := c.here()
	if err := c.genExpr(w.Cond); err != nil {
		return err
	}
	jz := c.emitHole(isa.JZ)

	c.breakStack = append(c.breakStack, nil)
	for _, st := range w.Body {
		if err := c.genStmt(st); err != nil {
			return err
		}
	}
	c.emit(isa.JMP, int32(start))
	end := c.here()
	jz.seal(c, end)

	top := len(c.breakStack) - 1
	for _, hole := range c.breakStack[top] {
		hole.seal(c, end)
	}
	c.breakStack = c.breakStack[:top]
	return nil
}

func (c *Codegen) genIf(i *parser.If) error {
	if err := c.genExpr(i.Cond); err != nil {
		return err
	}
	jz := c.emitHole(isa.JZ)
	for _, st := range i.Then {
		if err := c.genStmt(st); err != nil {
			return err
		}
	}
	if i.HasElse {
		jmpEnd := c.emitHole(isa.JMP)
		jz.seal(c, c.here())
		for _, st := range i.Else {
			if err := c.genStmt(st); err != nil {
				return err
			}
		}
		jmpEnd.seal(c, c.here())
	} else {
		jz.seal(c, c.here())
	}
	return nil
}

func (c *Codegen) genCallStmt(call *parser.CallStmt) error {
	switch {
	case call.Name == "ei" && len(call.Args) == 0:
		c.emit(isa.EI, 0)
		return nil
	case call.Name == "di" && len(call.Args) == 0:
		c.emit(isa.DI, 0)
		return nil
	case call.Name == "readChar" && len(call.Args) == 0:
		c.emit(isa.IN, int32(isa.PortCH))
		return nil
	case call.Name == "printChar" && len(call.Args) == 1:
		if err := c.genExpr(call.Args[0]); err != nil {
			return err
		}
		c.emit(isa.OUT, int32(isa.PortCH))
		return nil
	case call.Name == "printLong" && len(call.Args) == 1:
		if v, ok := call.Args[0].(*parser.Var); ok {
			base := c.allocVar(v.Name)
			c.emit(isa.PUSHI, int32(base))
			c.emit(isa.LOAD, 0)
			c.emit(isa.OUT, int32(isa.PortL))
			c.emit(isa.PUSHI, int32(base+1))
			c.emit(isa.LOAD, 0)
			c.emit(isa.OUT, int32(isa.PortL))
			return nil
		}
	case call.Name == "set" && len(call.Args) == 3:
		if arr, ok := call.Args[0].(*parser.Var); ok {
			c.ensureArrayInitialized(arr.Name)
			baseAddr := c.allocVar(arr.Name)
			if err := c.genExpr(call.Args[2]); err != nil {
				return err
			}
			c.emit(isa.PUSHI, int32(baseAddr))
			c.emit(isa.LOAD, 0)
			if err := c.genExpr(call.Args[1]); err != nil {
				return err
			}
			c.emit(isa.ADD, 0)
			c.emit(isa.STORE, 0)
			return nil
		}
	}
	return &Error{Msg: "codegen: call statement not supported: " + call.Name}
}

func (c *Codegen) genAssign(a *parser.Assign) error {
	if call, ok := a.Expr.(*parser.Call); ok && call.Name == "readString" {
		c.genReadStringAssign(a.Name)
		return nil
	}

	if c.varTypes[a.Name] == "long" {
		return c.genLongAssign(a)
	}

	if err := c.genExpr(a.Expr); err != nil {
		return err
	}
	addr := c.allocVar(a.Name)
	c.emit(isa.PUSHI, int32(addr))
	c.emit(isa.STORE, 0)
	return nil
}

func (c *Codegen) genReadStringAssign(name string) {
	base := c.allocVar(name)
	ptr := c.allocVar("__ptr__")

	c.emit(isa.PUSHI, int32(base))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.STORE, 0)

	loop := c.here()
	c.emit(isa.IN, int32(isa.PortCH))
	c.emit(isa.DUP, 0)
	c.emit(isa.PUSHI, int32('\n'))
	c.emit(isa.SUB, 0)
	jzEnd := c.emitHole(isa.JZ)

	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.STORE, 0)

	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, 1)
	c.emit(isa.ADD, 0)
	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.STORE, 0)
	c.emit(isa.JMP, int32(loop))
	jzEnd.seal(c, c.here())

	c.emit(isa.PUSHI, 0)
	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.STORE, 0)
}

// genLongAssign handles the three long-typed assignment shapes:
// a = readLong(), a = b + c (both long), and the fallback a = <int
// expr> with the high word zeroed.
func (c *Codegen) genLongAssign(a *parser.Assign) error {
	base := c.allocVar(a.Name)
	baseHi := base + 1

	if call, ok := a.Expr.(*parser.Call); ok && call.Name == "readLong" {
		c.emit(isa.IN, int32(isa.PortL))
		c.emit(isa.PUSHI, int32(base))
		c.emit(isa.STORE, 0)
		c.emit(isa.IN, int32(isa.PortL))
		c.emit(isa.PUSHI, int32(baseHi))
		c.emit(isa.STORE, 0)
		return nil
	}

	if bin, ok := a.Expr.(*parser.BinOp); ok && bin.Op == "+" {
		aVar, aIsVar := bin.A.(*parser.Var)
		bVar, bIsVar := bin.B.(*parser.Var)
		if aIsVar && bIsVar && c.varTypes[aVar.Name] == "long" && c.varTypes[bVar.Name] == "long" {
			c.genLongAdd(aVar.Name, bVar.Name, base, baseHi)
			return nil
		}
	}

	// Fallback: assign a 32-bit value, zeroing the high word.
	if err := c.genExpr(a.Expr); err != nil {
		return err
	}
	c.emit(isa.PUSHI, int32(base))
	c.emit(isa.STORE, 0)
	c.emit(isa.PUSHI, 0)
	c.emit(isa.PUSHI, int32(baseHi))
	c.emit(isa.STORE, 0)
	return nil
}

// genLongAdd emits the 64-bit addition with carry: lo_sum = a_lo +
// b_lo; carry = lo_sum <= a_lo-1 (unsigned wraparound test); hi_sum =
// a_hi + b_hi, incremented by one if carry. Operands are reloaded
// from memory at each use rather than kept on the data stack — this
// deliberately omits the original's unreachable SWAP-based attempt at
// keeping them on the stack (see DESIGN.md), since that code never
// executes a meaningful pop/push pair and would leave stack garbage.
func (c *Codegen) genLongAdd(aName, bName string, base, baseHi int) {
	aAddr := c.allocVar(aName)
	bAddr := c.allocVar(bName)
	tmpLo := c.allocVar("__tmp_lo__")
	tmpHi := c.allocVar("__tmp_hi__")

	c.emit(isa.PUSHI, int32(aAddr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32(bAddr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.ADD, 0)
	c.emit(isa.PUSHI, int32(tmpLo))
	c.emit(isa.STORE, 0)

	c.emit(isa.PUSHI, int32(tmpLo))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32(aAddr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, 1)
	c.emit(isa.SUB, 0)
	c.emit(isa.LE, 0)

	c.emit(isa.PUSHI, int32(aAddr+1))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32(bAddr+1))
	c.emit(isa.LOAD, 0)
	c.emit(isa.ADD, 0)
	c.emit(isa.PUSHI, int32(tmpHi))
	c.emit(isa.STORE, 0)

	jz := c.emitHole(isa.JZ)
	c.emit(isa.PUSHI, int32(tmpHi))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, 1)
	c.emit(isa.ADD, 0)
	c.emit(isa.PUSHI, int32(tmpHi))
	c.emit(isa.STORE, 0)
	endc := c.emitHole(isa.JMP)
	jz.seal(c, c.here())
	endc.seal(c, c.here())

	c.emit(isa.PUSHI, int32(tmpLo))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32(base))
	c.emit(isa.STORE, 0)
	c.emit(isa.PUSHI, int32(tmpHi))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32(baseHi))
	c.emit(isa.STORE, 0)
}
