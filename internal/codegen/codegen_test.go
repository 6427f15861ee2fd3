package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yasnov/algstack/internal/cpu"
	"github.com/yasnov/algstack/internal/datapath"
	"github.com/yasnov/algstack/internal/ioctl"
	"github.com/yasnov/algstack/internal/isa"
	"github.com/yasnov/algstack/internal/parser"
)

func mustGenerate(t *testing.T, src string) []isa.Instr {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	code, err := Generate(prog)
	require.NoError(t, err)
	return code
}

func runToHalt(t *testing.T, code []isa.Instr, sched []ioctl.Event, limit int) *cpu.CPU {
	t.Helper()
	dp := datapath.New(256)
	io := ioctl.New(sched)
	c := cpu.New(code, dp, io)
	for i := 0; i < limit && !c.Halted; i++ {
		require.NoError(t, c.Step())
	}
	require.True(t, c.Halted)
	return c
}

func TestVectorTableSizeAndEntryVector(t *testing.T) {
	code := mustGenerate(t, `func main() { printInt(1); }`)
	require.GreaterOrEqual(t, len(code), isa.VectorTableSize)
	require.Equal(t, isa.JMP, code[0].Op)
	require.Equal(t, int32(isa.VectorTableSize), code[0].Arg)
}

func TestRelocationPutsJumpTargetsPastVectorTable(t *testing.T) {
	code := mustGenerate(t, `func main() { int i; i = 0; while (i <= 2) { i = i + 1; } }`)
	for _, ins := range code[isa.VectorTableSize:] {
		if ins.Op == isa.JMP || ins.Op == isa.JZ || ins.Op == isa.CALL {
			require.GreaterOrEqual(t, int(ins.Arg), isa.VectorTableSize)
		}
	}
}

func TestPrintIntEmitsPortDThenNewline(t *testing.T) {
	code := mustGenerate(t, `func main() { printInt(42); }`)
	c := runToHalt(t, code, nil, 1000)
	require.Equal(t, []uint32{42}, c.IO.OutDump()[isa.PortD])
	require.Equal(t, []uint32{'\n'}, c.IO.OutDump()[isa.PortCH])
}

func TestPrintStringLiteral(t *testing.T) {
	code := mustGenerate(t, `func main() { print("hi"); }`)
	c := runToHalt(t, code, nil, 1000)
	out := c.IO.OutDump()[isa.PortCH]
	require.Equal(t, []uint32{'h', 'i'}, out)
}

func TestWhileLoopAndBreak(t *testing.T) {
	code := mustGenerate(t, `func main() {
		int i;
		i = 0;
		while (true) {
			if (i == 3) { break; }
			printInt(i);
			i = i + 1;
		}
	}`)
	c := runToHalt(t, code, nil, 10000)
	require.Equal(t, []uint32{0, 1, 2}, c.IO.OutDump()[isa.PortD])
}

func TestIfElse(t *testing.T) {
	code := mustGenerate(t, `func main() {
		int x;
		x = 5;
		if (x <= 3) { printInt(1); } else { printInt(0); }
	}`)
	c := runToHalt(t, code, nil, 1000)
	require.Equal(t, []uint32{0}, c.IO.OutDump()[isa.PortD])
}

func TestEqualityOperator(t *testing.T) {
	code := mustGenerate(t, `func main() {
		int x;
		x = 7;
		if (x == 7) { printInt(1); } else { printInt(0); }
	}`)
	c := runToHalt(t, code, nil, 1000)
	require.Equal(t, []uint32{1}, c.IO.OutDump()[isa.PortD])
}

func TestArrayGetSet(t *testing.T) {
	code := mustGenerate(t, `func main() {
		int arr;
		set(arr, 0, 11);
		set(arr, 1, 22);
		printInt(get(arr, 0));
		printInt(get(arr, 1));
	}`)
	c := runToHalt(t, code, nil, 10000)
	require.Equal(t, []uint32{11, 22}, c.IO.OutDump()[isa.PortD])
}

func TestReadIntFromScheduledInput(t *testing.T) {
	code := mustGenerate(t, `func main() {
		int x;
		x = readInt();
		printInt(x);
	}`)
	sched := []ioctl.Event{
		{Tick: 0, Port: isa.PortCH, Value: '4'},
		{Tick: 1, Port: isa.PortCH, Value: '2'},
		{Tick: 2, Port: isa.PortCH, Value: '\n'},
	}
	c := runToHalt(t, code, sched, 10000)
	require.Equal(t, []uint32{42}, c.IO.OutDump()[isa.PortD])
}

func TestReadStringAndPrintChar(t *testing.T) {
	code := mustGenerate(t, `func main() {
		string s;
		s = readString();
		print(s);
	}`)
	sched := []ioctl.Event{
		{Tick: 0, Port: isa.PortCH, Value: 'h'},
		{Tick: 1, Port: isa.PortCH, Value: 'i'},
		{Tick: 2, Port: isa.PortCH, Value: '\n'},
	}
	c := runToHalt(t, code, sched, 10000)
	require.Equal(t, []uint32{'h', 'i'}, c.IO.OutDump()[isa.PortCH])
}

func TestLongAddWithCarry(t *testing.T) {
	// a = 0xFFFFFFFF (lo=max, hi=0), b = 1 (lo=1, hi=0) -> sum lo=0, hi=1
	code := mustGenerate(t, `func main() {
		long a;
		long b;
		long c;
		a = readLong();
		b = readLong();
		c = a + b;
		printLong(c);
	}`)
	sched := []ioctl.Event{
		{Tick: 0, Port: isa.PortL, Value: 0xFFFFFFFF},
		{Tick: 1, Port: isa.PortL, Value: 0},
		{Tick: 2, Port: isa.PortL, Value: 1},
		{Tick: 3, Port: isa.PortL, Value: 0},
	}
	c := runToHalt(t, code, sched, 10000)
	require.Equal(t, []uint32{0, 1}, c.IO.OutDump()[isa.PortL])
}

func TestLongAddNoCarry(t *testing.T) {
	code := mustGenerate(t, `func main() {
		long a;
		long b;
		long c;
		a = readLong();
		b = readLong();
		c = a + b;
		printLong(c);
	}`)
	sched := []ioctl.Event{
		{Tick: 0, Port: isa.PortL, Value: 10},
		{Tick: 1, Port: isa.PortL, Value: 0},
		{Tick: 2, Port: isa.PortL, Value: 5},
		{Tick: 3, Port: isa.PortL, Value: 0},
	}
	c := runToHalt(t, code, sched, 10000)
	require.Equal(t, []uint32{15, 0}, c.IO.OutDump()[isa.PortL])
}

func TestBreakOutsideLoopIsCodegenError(t *testing.T) {
	prog, err := parser.Parse(`func main() { break; }`)
	require.NoError(t, err)
	_, err = Generate(prog)
	require.Error(t, err)
}

func TestInterruptHandlerVectorWiring(t *testing.T) {
	code := mustGenerate(t, `
		func main() { ei(); while (true) {} }
		func irq1() { di(); ei(); }
	`)
	require.Equal(t, isa.JMP, code[1].Op)
	mainOffsetInImem := int32(isa.VectorTableSize)
	require.Greater(t, code[1].Arg, mainOffsetInImem, "vector 1 should point past main's entry, at irq1's own code")
}
