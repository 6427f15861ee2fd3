package codegen

import (
	"github.com/yasnov/algstack/internal/isa"
	"github.com/yasnov/algstack/internal/parser"
)

func (c *Codegen) genExpr(e parser.Expr) error {
	switch v := e.(type) {
	case *parser.IntLit:
		c.emit(isa.PUSHI, v.Value&0x00FF_FFFF)
		return nil

	case *parser.Var:
		addr := c.allocVar(v.Name)
		c.emit(isa.PUSHI, int32(addr))
		c.emit(isa.LOAD, 0)
		return nil

	case *parser.Call:
		return c.genCallExpr(v)

	case *parser.BinOp:
		return c.genBinOp(v)
	}
	return &Error{Msg: "codegen: unsupported expression"}
}

func (c *Codegen) genCallExpr(call *parser.Call) error {
	switch call.Name {
	case "readInt":
		c.genReadInt()
		return nil
	case "readChar":
		c.emit(isa.IN, int32(isa.PortCH))
		return nil
	case "get":
		if len(call.Args) == 2 {
			if arr, ok := call.Args[0].(*parser.Var); ok {
				c.ensureArrayInitialized(arr.Name)
				baseAddr := c.allocVar(arr.Name)
				c.emit(isa.PUSHI, int32(baseAddr))
				c.emit(isa.LOAD, 0)
				if err := c.genExpr(call.Args[1]); err != nil {
					return err
				}
				c.emit(isa.ADD, 0)
				c.emit(isa.LOAD, 0)
				return nil
			}
		}
	}
	return &Error{Msg: "codegen: call not supported: " + call.Name}
}

// genReadInt emits the runtime decimal-reader loop: accumulate digits
// from port CH into a temp variable until newline, then push the
// result.
func (c *Codegen) genReadInt() {
	tmp := c.allocVar("__tmp__")
	ch := c.allocVar("__ch__")

	c.emit(isa.PUSHI, 0)
	c.emit(isa.PUSHI, int32(tmp))
	c.emit(isa.STORE, 0)

	loop := c.here()
	c.emit(isa.IN, int32(isa.PortCH))
	c.emit(isa.PUSHI, int32(ch))
	c.emit(isa.STORE, 0)

	c.emit(isa.PUSHI, int32(ch))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32('\n'))
	c.emit(isa.SUB, 0)
	jz := c.emitHole(isa.JZ)

	c.emit(isa.PUSHI, int32(tmp))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, 10)
	c.emit(isa.MUL, 0)
	c.emit(isa.PUSHI, int32(ch))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32('0'))
	c.emit(isa.SUB, 0)
	c.emit(isa.ADD, 0)
	c.emit(isa.PUSHI, int32(tmp))
	c.emit(isa.STORE, 0)
	c.emit(isa.JMP, int32(loop))
	jz.seal(c, c.here())

	c.emit(isa.PUSHI, int32(tmp))
	c.emit(isa.LOAD, 0)
}

func (c *Codegen) genBinOp(op *parser.BinOp) error {
	switch op.Op {
	case "*", "+", "-", "<=":
		if err := c.genExpr(op.A); err != nil {
			return err
		}
		if err := c.genExpr(op.B); err != nil {
			return err
		}
		c.emit(arithOpcode(op.Op), 0)
		return nil

	case "==":
		if err := c.genExpr(op.A); err != nil {
			return err
		}
		if err := c.genExpr(op.B); err != nil {
			return err
		}
		c.emit(isa.SUB, 0)
		lTrue := c.emitHole(isa.JZ)
		c.emit(isa.PUSHI, 0)
		lEnd := c.emitHole(isa.JMP)
		lTrue.seal(c, c.here())
		c.emit(isa.PUSHI, 1)
		lEnd.seal(c, c.here())
		return nil
	}
	return &Error{Msg: "codegen: unsupported operator " + op.Op}
}

func arithOpcode(op string) isa.Opcode {
	switch op {
	case "*":
		return isa.MUL
	case "+":
		return isa.ADD
	case "-":
		return isa.SUB
	case "<=":
		return isa.LE
	}
	return isa.NOP
}
