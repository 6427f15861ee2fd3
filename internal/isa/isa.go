// Package isa defines the instruction set of the stack machine: the
// closed opcode set, the 32-bit little-endian word encoding, and the
// hex listing format used by both the code generator and the runner.
package isa

import "github.com/pkg/errors"

// Opcode is one of the 22 operations the control unit understands.
// The set is closed: there is no extension mechanism, matching the
// fixed encoding (opcode occupies the top byte of each instruction
// word).
type Opcode uint8

const (
	NOP Opcode = 0x00
	// PUSHI pushes a signed 24-bit immediate.
	PUSHI Opcode = 0x01
	LOAD  Opcode = 0x02
	STORE Opcode = 0x03
	DUP   Opcode = 0x04
	DROP  Opcode = 0x05
	SWAP  Opcode = 0x06

	ADD Opcode = 0x10
	SUB Opcode = 0x11
	MUL Opcode = 0x12
	DIV Opcode = 0x13

	// LE pops b, pops a, pushes 1 if a <= b (unsigned) else 0.
	LE Opcode = 0x41

	JMP  Opcode = 0x20
	JZ   Opcode = 0x21
	CALL Opcode = 0x22
	RET  Opcode = 0x23
	IRET Opcode = 0x24
	EI   Opcode = 0x25
	DI   Opcode = 0x26

	IN  Opcode = 0x30
	OUT Opcode = 0x31

	HALT Opcode = 0xFF
)

var mnemonics = map[Opcode]string{
	NOP:   "nop",
	PUSHI: "pushi",
	LOAD:  "load",
	STORE: "store",
	DUP:   "dup",
	DROP:  "drop",
	SWAP:  "swap",
	ADD:   "add",
	SUB:   "sub",
	MUL:   "mul",
	DIV:   "div",
	LE:    "le",
	JMP:   "jmp",
	JZ:    "jz",
	CALL:  "call",
	RET:   "ret",
	IRET:  "iret",
	EI:    "ei",
	DI:    "di",
	IN:    "in",
	OUT:   "out",
	HALT:  "halt",
}

// mnemToOpcode is the reverse of mnemonics, built once at init time the
// same way the teacher's string<->bytecode maps are built.
var mnemToOpcode map[string]Opcode

func init() {
	mnemToOpcode = make(map[string]Opcode, len(mnemonics))
	for op, m := range mnemonics {
		mnemToOpcode[m] = op
	}
}

// withArg is the set of opcodes whose hex listing prints an argument.
var withArg = map[Opcode]bool{
	PUSHI: true,
	JMP:   true,
	JZ:    true,
	CALL:  true,
	IN:    true,
	OUT:   true,
}

// ErrUnknownOpcode indicates a decoded word does not correspond to any
// opcode in the closed set. This is a fatal invariant violation: a
// well-formed binary produced by this repository's code generator
// never triggers it.
var ErrUnknownOpcode = errors.New("isa: unknown opcode")

// Mnemonic returns the assembly mnemonic for op, or "" if op is not a
// member of the closed set.
func (op Opcode) Mnemonic() string {
	return mnemonics[op]
}

// Instr is a single decoded instruction: an opcode plus its argument.
// For PUSHI the argument is sign-extended from 24 bits; for every
// other opcode it is the raw unsigned 24-bit value.
type Instr struct {
	Op  Opcode
	Arg int32
}

// VectorTableSize is the number of interrupt vector slots (V) reserved
// at the start of every program image. Slot 0 is the reset vector;
// slots 1..V-1 are interrupt-handler entries addressed by port number.
const VectorTableSize = 8

// word packs an instruction into its 32-bit little-endian on-disk
// representation: opcode in the high byte, 24-bit argument below it.
func word(ins Instr) uint32 {
	return (uint32(ins.Op) << 24) | (uint32(ins.Arg) & 0x00FF_FFFF)
}

// Encode serializes a list of instructions into the binary program
// image: a flat sequence of 4-byte little-endian words.
func Encode(code []Instr) []byte {
	out := make([]byte, 0, len(code)*4)
	for _, ins := range code {
		w := word(ins)
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}

// Decode parses a binary program image back into instructions. A
// trailing partial word (fewer than 4 bytes) is discarded.
func Decode(blob []byte) ([]Instr, error) {
	code := make([]Instr, 0, len(blob)/4)
	for i := 0; i+3 < len(blob); i += 4 {
		w := uint32(blob[i]) | uint32(blob[i+1])<<8 | uint32(blob[i+2])<<16 | uint32(blob[i+3])<<24
		op := Opcode(w >> 24)
		if _, ok := mnemonics[op]; !ok {
			return nil, errors.Wrapf(ErrUnknownOpcode, "at word offset %d (opcode 0x%02X)", i/4, uint8(op))
		}
		arg := int32(w & 0x00FF_FFFF)
		if op == PUSHI && arg&0x0080_0000 != 0 {
			arg -= 1 << 24
		}
		code = append(code, Instr{Op: op, Arg: arg})
	}
	return code, nil
}

// ToHex renders a listing of the form "<addr> - <WORD_HEX_8_UPPER> -
// <mnem>[ arg]", one line per instruction, joined by newlines with no
// trailing newline.
func ToHex(code []Instr) string {
	var b []byte
	for addr, ins := range code {
		w := word(ins)
		mnem := mnemonics[ins.Op]
		line := formatHexLine(addr, w, mnem, ins.Arg, withArg[ins.Op])
		if addr > 0 {
			b = append(b, '\n')
		}
		b = append(b, line...)
	}
	return string(b)
}

func formatHexLine(addr int, w uint32, mnem string, arg int32, printArg bool) string {
	const hexdigits = "0123456789ABCDEF"
	hex := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		hex[i] = hexdigits[w&0xF]
		w >>= 4
	}
	s := itoa(addr) + " - " + string(hex) + " - " + mnem
	if printArg {
		s += " " + itoa(int(arg))
	}
	return s
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Port is a port-mapped I/O channel. Only three are used by this
// system's codegen and runner conventions.
type Port uint32

const (
	// PortCH carries a character stream.
	PortCH Port = 1
	// PortD carries signed 32-bit decimal integers.
	PortD Port = 2
	// PortL carries 64-bit values as two consecutive 32-bit words,
	// low word first.
	PortL Port = 3
)
