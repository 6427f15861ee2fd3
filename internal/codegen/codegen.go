// Package codegen lowers an ALG AST (internal/parser) to the flat
// instruction list consumed by internal/isa/internal/cpu: jump-hole
// patched control flow, a bump-allocated data segment, and the
// interrupt vector table with its relocation pass.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yasnov/algstack/internal/isa"
	"github.com/yasnov/algstack/internal/parser"
)

// Error reports an unsupported construct: an unknown call, a break
// outside any loop, or an unsupported expression/statement shape.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// jumpHole is an emitted jump whose argument is a placeholder,
// together with the instruction index that needs patching once the
// jump target is known.
type jumpHole struct {
	pos int
}

// seal patches the jump at h.pos to target, the generalization of the
// original's scattered `self.code[pos].arg = target` pokes.
func (h jumpHole) seal(c *Codegen, target int) {
	c.code[h.pos].Arg = int32(target)
}

// Codegen holds the mutable state threaded through AST lowering.
type Codegen struct {
	code []isa.Instr

	labels map[string]int

	vars        map[string]int
	varTypes    map[string]string
	dataNext    int
	breakStack  [][]jumpHole
	arrayBases  map[string]int
	stringBases map[string]int
}

// New returns a Codegen ready to lower a Program.
func New() *Codegen {
	return &Codegen{
		labels:      make(map[string]int),
		vars:        make(map[string]int),
		varTypes:    make(map[string]string),
		arrayBases:  make(map[string]int),
		stringBases: make(map[string]int),
	}
}

func (c *Codegen) emit(op isa.Opcode, arg int32) int {
	c.code = append(c.code, isa.Instr{Op: op, Arg: arg})
	return len(c.code) - 1
}

func (c *Codegen) emitHole(op isa.Opcode) jumpHole {
	pos := c.emit(op, 0)
	return jumpHole{pos: pos}
}

func (c *Codegen) here() int { return len(c.code) }

// allocVar returns name's data-memory address, allocating one if this
// is the first reference. long variables occupy 2 words; everything
// else occupies 1 (the allocation happens lazily based on whatever
// var_types currently holds, matching the original's ordering
// dependency: VarDecl must set the type before further allocVar calls
// observe it, same as Python's dict-based vars/var_types).
func (c *Codegen) allocVar(name string) int {
	if addr, ok := c.vars[name]; ok {
		return addr
	}
	addr := c.dataNext
	c.vars[name] = addr
	if c.varTypes[name] == "long" {
		c.dataNext += 2
	} else {
		c.dataNext += 1
	}
	return addr
}

func (c *Codegen) allocBuffer(words int) int {
	base := c.dataNext
	c.dataNext += words
	return base
}

// ensureArrayInitialized lazily allocates a 128-word backing buffer
// for an array variable and emits the store of its base pointer.
func (c *Codegen) ensureArrayInitialized(name string) {
	if _, ok := c.arrayBases[name]; ok {
		return
	}
	base := c.allocBuffer(128)
	c.arrayBases[name] = base
	varAddr := c.allocVar(name)
	c.emit(isa.PUSHI, int32(base))
	c.emit(isa.PUSHI, int32(varAddr))
	c.emit(isa.STORE, 0)
}

// ensureCstrLiteral places a string literal's bytes in data memory
// (once per distinct text) and returns the address of the pointer
// variable holding its base.
func (c *Codegen) ensureCstrLiteral(text string) int {
	if addr, ok := c.stringBases[text]; ok {
		return addr
	}
	base := c.allocBuffer(len(text) + 1)
	for i := 0; i < len(text); i++ {
		c.emit(isa.PUSHI, int32(text[i]))
		c.emit(isa.PUSHI, int32(base+i))
		c.emit(isa.STORE, 0)
	}
	c.emit(isa.PUSHI, 0)
	c.emit(isa.PUSHI, int32(base+len(text)))
	c.emit(isa.STORE, 0)

	varName := fmt.Sprintf("__strlit_%d", len(c.stringBases))
	varAddr := c.allocVar(varName)
	c.emit(isa.PUSHI, int32(base))
	c.emit(isa.PUSHI, int32(varAddr))
	c.emit(isa.STORE, 0)
	c.stringBases[text] = varAddr
	return varAddr
}

// emitPrintCstr emits a loop printing the NUL-terminated buffer
// pointed to by the pointer cell at addr, one byte per OUT to port
// CH.
func (c *Codegen) emitPrintCstr(addr int) {
	ptr := c.allocVar("__ptr__")
	c.emit(isa.PUSHI, int32(addr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.STORE, 0)

	start := c.here()
	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.LOAD, 0)
	c.emit(isa.DUP, 0)
	jz := c.emitHole(isa.JZ)
	c.emit(isa.OUT, int32(isa.PortCH))
	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.LOAD, 0)
	c.emit(isa.PUSHI, 1)
	c.emit(isa.ADD, 0)
	c.emit(isa.PUSHI, int32(ptr))
	c.emit(isa.STORE, 0)
	c.emit(isa.JMP, int32(start))
	jz.seal(c, c.here())
}

// Generate lowers prog to the complete program image: the interrupt
// vector table followed by relocated code for every function.
func Generate(prog *parser.Program) ([]isa.Instr, error) {
	c := New()
	for _, f := range prog.Functions {
		if err := c.genFunc(f); err != nil {
			return nil, err
		}
	}

	vectors := make([]isa.Instr, isa.VectorTableSize)
	for i := range vectors {
		vectors[i] = isa.Instr{Op: isa.JMP, Arg: 0}
	}
	startMain := len(vectors)

	for i := range c.code {
		switch c.code[i].Op {
		case isa.JMP, isa.JZ, isa.CALL:
			c.code[i].Arg += int32(startMain)
		}
	}

	if mainAddr, ok := c.labels["main"]; ok {
		vectors[0].Arg = int32(startMain + mainAddr)
	}
	for i := 1; i < isa.VectorTableSize; i++ {
		name := fmt.Sprintf("irq%d", i)
		if addr, ok := c.labels[name]; ok {
			vectors[i] = isa.Instr{Op: isa.JMP, Arg: int32(startMain + addr)}
		}
	}

	return append(vectors, c.code...), nil
}

// irqNumber reports N if name is "irqN" for decimal N, else (0, false).
func irqNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, "irq") {
		return 0, false
	}
	suffix := name[3:]
	if suffix == "" {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *Codegen) genFunc(f *parser.Func) error {
	c.labels[f.Name] = c.here()
	for _, s := range f.Body {
		if err := c.genStmt(s); err != nil {
			return err
		}
	}
	switch {
	case f.Name == "main":
		c.emit(isa.HALT, 0)
	default:
		if _, ok := irqNumber(f.Name); ok {
			c.emit(isa.IRET, 0)
		} else {
			c.emit(isa.RET, 0)
		}
	}
	return nil
}
