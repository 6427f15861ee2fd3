// Package datapath implements the operand stack, address register,
// single-port data memory, I/O latch, and ALU of the stack machine.
package datapath

import (
	"github.com/pkg/errors"

	"github.com/yasnov/algstack/internal/isa"
)

// ErrMemoryConflict is returned when a second memory access is
// attempted within the same tick. The single-port memory model
// permits exactly one read or write per tick; a violation is a fatal
// invariant breach, never a soft runtime condition.
var ErrMemoryConflict = errors.New("datapath: single-port memory accessed twice in one tick")

// LatchSource names where a pushed value comes from.
type LatchSource int

const (
	FromLiteral LatchSource = iota
	FromMem
	FromALU
	FromIO
)

// Reader is anything that can serve a port read, satisfied by
// internal/ioctl's controller. Kept as a narrow interface so datapath
// has no import-time dependency on ioctl's internals.
type Reader interface {
	ReadPort(port isa.Port) uint32
}

// Writer is anything that can accept a port write.
type Writer interface {
	WritePort(port isa.Port, value uint32)
}

// DataPath holds all state described in SPEC_FULL.md §3 under
// "Datapath state": the stack, flags, address register, I/O latch,
// and single-port memory.
type DataPath struct {
	Mem []uint32

	stack []uint32
	T     uint32
	S     uint32
	AR    uint32
	IOReg uint32
	Zero  bool
	Sign  bool

	lastMemRead  uint32
	lastALU      uint32
	memAccessed  bool // set once an access has occurred this tick
}

// New creates a DataPath with dataWords pre-sized words of zeroed
// memory (matching the original's max(1, data_words) floor).
func New(dataWords int) *DataPath {
	if dataWords < 1 {
		dataWords = 1
	}
	dp := &DataPath{Mem: make([]uint32, dataWords)}
	dp.refresh()
	return dp
}

// TickBegin clears the per-tick memory access flag. Must be called
// once at the start of every tick (cpu.Step does so), before any
// datapath operation that might touch memory.
func (dp *DataPath) TickBegin() {
	dp.memAccessed = false
}

func (dp *DataPath) refresh() {
	n := len(dp.stack)
	if n >= 1 {
		dp.T = dp.stack[n-1]
	} else {
		dp.T = 0
	}
	if n >= 2 {
		dp.S = dp.stack[n-2]
	} else {
		dp.S = 0
	}
	dp.Zero = dp.T == 0
	dp.Sign = dp.T&0x8000_0000 != 0
}

// Push appends value (masked to 32 bits) to the stack and refreshes
// flags.
func (dp *DataPath) Push(value uint32) {
	dp.stack = append(dp.stack, value)
	dp.refresh()
}

// Pop removes and returns the top of stack, or 0 if empty. Flags are
// refreshed afterward.
func (dp *DataPath) Pop() uint32 {
	n := len(dp.stack)
	if n == 0 {
		dp.refresh()
		return 0
	}
	v := dp.stack[n-1]
	dp.stack = dp.stack[:n-1]
	dp.refresh()
	return v
}

// LatchPush pushes a value sourced from lit/mem/alu/io. For
// FromLiteral, value is the literal to push; it is ignored for the
// other sources.
func (dp *DataPath) LatchPush(source LatchSource, value uint32) {
	switch source {
	case FromLiteral:
		dp.Push(value)
	case FromMem:
		dp.Push(dp.lastMemRead)
	case FromALU:
		dp.Push(dp.lastALU)
	case FromIO:
		dp.Push(dp.IOReg)
	}
}

// LatchARFromT sets AR from the current top of stack.
func (dp *DataPath) LatchARFromT() {
	dp.AR = dp.T
}

// LatchARFromLiteral sets AR directly.
func (dp *DataPath) LatchARFromLiteral(addr uint32) {
	dp.AR = addr
}

func (dp *DataPath) ensureMemSize(idx uint32) {
	if int(idx) >= len(dp.Mem) {
		grown := make([]uint32, int(idx)+1)
		copy(grown, dp.Mem)
		dp.Mem = grown
	}
}

// MemRead reads Mem[AR] into the internal read latch, consumable via
// LatchPush(FromMem, ...). Returns ErrMemoryConflict if a second access
// is attempted in the same tick.
func (dp *DataPath) MemRead() error {
	if dp.memAccessed {
		return errors.WithStack(ErrMemoryConflict)
	}
	dp.ensureMemSize(dp.AR)
	dp.lastMemRead = dp.Mem[dp.AR]
	dp.memAccessed = true
	return nil
}

// MemWrite writes value (masked to 32 bits) to Mem[AR].
func (dp *DataPath) MemWrite(value uint32) error {
	if dp.memAccessed {
		return errors.WithStack(ErrMemoryConflict)
	}
	dp.ensureMemSize(dp.AR)
	dp.Mem[dp.AR] = value
	dp.memAccessed = true
	return nil
}

// LatchIORead reads one value from port's input queue into IOReg.
func (dp *DataPath) LatchIORead(port isa.Port, io Reader) {
	dp.IOReg = io.ReadPort(port)
}

// LatchIOWritePrepare stages value into IOReg ahead of a commit.
func (dp *DataPath) LatchIOWritePrepare(value uint32) {
	dp.IOReg = value
}

// IOWriteCommit appends IOReg to port's output queue.
func (dp *DataPath) IOWriteCommit(port isa.Port, io Writer) {
	io.WritePort(port, dp.IOReg)
}

// AluCompute computes op on (S, T), latching the result for a
// subsequent LatchPush(FromALU, ...) and refreshing zero/sign from
// the result (not from T, since the result has not been pushed yet).
func (dp *DataPath) AluCompute(op isa.Opcode) {
	a, b := dp.S, dp.T
	var r uint32
	switch op {
	case isa.ADD:
		r = a + b
	case isa.SUB:
		r = a - b
	case isa.MUL:
		r = a * b
	case isa.DIV:
		if b != 0 {
			r = a / b
		} else {
			r = 0
		}
	case isa.LE:
		if a <= b {
			r = 1
		} else {
			r = 0
		}
	}
	dp.lastALU = r
	dp.Zero = r == 0
	dp.Sign = r&0x8000_0000 != 0
}
