// Package cpu implements the three-phase micro-sequenced control
// unit: FETCH_IR, LATCH_PC, and a per-opcode multi-step EXEC, plus
// vectored interrupt dispatch.
package cpu

import (
	"github.com/pkg/errors"

	"github.com/yasnov/algstack/internal/datapath"
	"github.com/yasnov/algstack/internal/ioctl"
	"github.com/yasnov/algstack/internal/isa"
)

// ErrUnhandledStep is a fatal invariant violation: the micro-sequencer
// reached a (opcode, step) combination with no defined behavior. A
// well-formed binary from this repository's code generator never
// triggers it.
var ErrUnhandledStep = errors.New("cpu: unhandled opcode/step combination")

// Phase is the coarse control-unit state.
type Phase int

const (
	FetchIR Phase = iota
	LatchPC
	Exec
)

func (p Phase) String() string {
	switch p {
	case FetchIR:
		return "FETCH_IR"
	case LatchPC:
		return "LATCH_PC"
	case Exec:
		return "EXEC"
	default:
		return "?"
	}
}

// CPU is the control unit: program counter, return stack, and the
// interrupt-enable/in-ISR flags, driving a DataPath and an IO
// Controller one tick at a time via Step.
type CPU struct {
	IMem []isa.Instr
	DP   *datapath.DataPath
	IO   *ioctl.Controller

	PC  int
	IR  isa.Instr
	RS  []int // return stack
	Tick int

	IntEnabled bool
	InISR      bool

	phase Phase
	step  int

	Halted bool

	tmpAddr uint32
	tmpVal  uint32
	tmpALU  uint32

	LastPC int
	LastIR isa.Instr
}

// New constructs a CPU ready to execute imem starting at PC 0 with
// interrupts enabled, matching the original's default state.
func New(imem []isa.Instr, dp *datapath.DataPath, io *ioctl.Controller) *CPU {
	return &CPU{
		IMem:       imem,
		DP:         dp,
		IO:         io,
		IntEnabled: true,
		phase:      FetchIR,
	}
}

// Phase reports the current coarse control-unit phase.
func (c *CPU) Phase() Phase { return c.phase }

// Step executes exactly one micro-step, advancing Tick by 1. If the
// CPU is halted, Step is a no-op and does not advance Tick (the
// runner stops calling Step once Halted is observed).
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}

	c.DP.TickBegin()
	c.IO.OnTick(c.Tick)

	if c.phase == FetchIR {
		if c.maybeRaiseIRQ() {
			c.Tick++
			return nil
		}
	}

	switch c.phase {
	case FetchIR:
		c.LastPC = c.PC
		c.IR = c.IMem[c.PC]
		c.LastIR = c.IR
		c.phase = LatchPC
		c.Tick++
		return nil
	case LatchPC:
		c.PC++
		c.phase = Exec
		c.step = 0
		c.Tick++
		return nil
	}

	return c.execStep()
}

// maybeRaiseIRQ dispatches a pending interrupt if enabled and not
// already servicing one. Consumes the entire current tick: no
// instruction fetch occurs on the tick an interrupt is taken.
func (c *CPU) maybeRaiseIRQ() bool {
	if !c.IntEnabled || c.InISR {
		return false
	}
	port, ok := c.IO.IRQPending()
	if !ok {
		return false
	}
	c.RS = append(c.RS, c.PC)
	c.PC = int(port)
	c.InISR = true
	c.IO.AckIRQ()
	return true
}

func (c *CPU) finish() error {
	c.phase = FetchIR
	c.step = 0
	c.Tick++
	return nil
}

func (c *CPU) execStep() error {
	op, arg := c.IR.Op, c.IR.Arg

	switch op {
	case isa.NOP:
		if c.step == 0 {
			return c.finish()
		}

	case isa.PUSHI:
		if c.step == 0 {
			c.DP.LatchPush(datapath.FromLiteral, uint32(arg))
			return c.finish()
		}

	case isa.DUP:
		if c.step == 0 {
			c.DP.Push(c.DP.T)
			return c.finish()
		}

	case isa.DROP:
		if c.step == 0 {
			c.DP.Pop()
			return c.finish()
		}

	case isa.SWAP:
		if c.step == 0 {
			a := c.DP.Pop()
			b := c.DP.Pop()
			c.DP.Push(a)
			c.DP.Push(b)
			return c.finish()
		}

	case isa.ADD, isa.SUB, isa.MUL, isa.DIV, isa.LE:
		switch c.step {
		case 0:
			c.DP.AluCompute(op)
			c.step = 1
			c.Tick++
			return nil
		case 1:
			c.DP.Pop()
			c.step = 2
			c.Tick++
			return nil
		case 2:
			c.DP.Pop()
			c.DP.LatchPush(datapath.FromALU, 0)
			return c.finish()
		}

	case isa.LOAD:
		switch c.step {
		case 0:
			c.DP.LatchARFromT()
			c.step = 1
			c.Tick++
			return nil
		case 1:
			if err := c.DP.MemRead(); err != nil {
				return err
			}
			c.step = 2
			c.Tick++
			return nil
		case 2:
			c.DP.Pop()
			c.DP.LatchPush(datapath.FromMem, 0)
			return c.finish()
		}

	case isa.STORE:
		switch c.step {
		case 0:
			c.tmpAddr = c.DP.Pop()
			c.DP.LatchARFromLiteral(c.tmpAddr)
			c.step = 1
			c.Tick++
			return nil
		case 1:
			c.tmpVal = c.DP.Pop()
			c.step = 2
			c.Tick++
			return nil
		case 2:
			if err := c.DP.MemWrite(c.tmpVal); err != nil {
				return err
			}
			return c.finish()
		}

	case isa.JMP:
		if c.step == 0 {
			c.PC = int(arg)
			return c.finish()
		}

	case isa.JZ:
		if c.step == 0 {
			if c.DP.Zero {
				c.PC = int(arg)
			}
			c.DP.Pop()
			return c.finish()
		}

	case isa.CALL:
		if c.step == 0 {
			c.RS = append(c.RS, c.PC)
			c.PC = int(arg)
			return c.finish()
		}

	case isa.RET:
		if c.step == 0 {
			c.popReturn()
			return c.finish()
		}

	case isa.IRET:
		// Open question (see DESIGN.md): on an empty return stack,
		// pc is left unchanged but in_isr is still cleared. Preserved
		// intentionally, not patched over.
		if c.step == 0 {
			c.popReturn()
			c.InISR = false
			return c.finish()
		}

	case isa.EI:
		if c.step == 0 {
			c.IntEnabled = true
			return c.finish()
		}

	case isa.DI:
		if c.step == 0 {
			c.IntEnabled = false
			return c.finish()
		}

	case isa.IN:
		switch c.step {
		case 0:
			c.DP.LatchIORead(isa.Port(arg), c.IO)
			c.step = 1
			c.Tick++
			return nil
		case 1:
			c.DP.LatchPush(datapath.FromIO, 0)
			return c.finish()
		}

	case isa.OUT:
		switch c.step {
		case 0:
			v := c.DP.Pop()
			c.DP.LatchIOWritePrepare(v)
			c.step = 1
			c.Tick++
			return nil
		case 1:
			c.DP.IOWriteCommit(isa.Port(arg), c.IO)
			return c.finish()
		}

	case isa.HALT:
		if c.step == 0 {
			c.Halted = true
			c.Tick++
			return nil
		}
	}

	return errors.Wrapf(ErrUnhandledStep, "opcode %s step %d", op.Mnemonic(), c.step)
}

// popReturn pops the return stack into PC, leaving PC unchanged if
// the return stack is empty.
func (c *CPU) popReturn() {
	n := len(c.RS)
	if n == 0 {
		return
	}
	c.PC = c.RS[n-1]
	c.RS = c.RS[:n-1]
}
