package runner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yasnov/algstack/internal/ioctl"
	"github.com/yasnov/algstack/internal/isa"
)

// program: push 65 ('A'), out CH, halt
func echoOneCharProgram() []isa.Instr {
	return []isa.Instr{
		{Op: isa.PUSHI, Arg: 65},
		{Op: isa.OUT, Arg: int32(isa.PortCH)},
		{Op: isa.HALT},
	}
}

func TestRunHaltsAndProducesOutput(t *testing.T) {
	res, err := Run(echoOneCharProgram(), Options{DataWords: 16, TickLimit: 1000})
	require.NoError(t, err)
	require.True(t, res.Halted)
	require.Equal(t, []uint32{65}, res.Output[isa.PortCH])
}

func TestRunRespectsTickLimit(t *testing.T) {
	loop := []isa.Instr{
		{Op: isa.JMP, Arg: 0},
	}
	res, err := Run(loop, Options{DataWords: 16, TickLimit: 10})
	require.NoError(t, err)
	require.False(t, res.Halted)
	require.Equal(t, 10, res.Ticks)
}

func TestRunTraceDeterministic(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	_, err := Run(echoOneCharProgram(), Options{DataWords: 16, TickLimit: 1000, Trace: true, TraceWriter: &buf1})
	require.NoError(t, err)
	_, err = Run(echoOneCharProgram(), Options{DataWords: 16, TickLimit: 1000, Trace: true, TraceWriter: &buf2})
	require.NoError(t, err)
	require.Equal(t, buf1.String(), buf2.String())
	require.True(t, strings.HasPrefix(buf1.String(), "t=0 pc=0 phase=FETCH_IR"))
}

func TestRunWithScheduledInterrupt(t *testing.T) {
	// vector-table-free raw program for unit purposes: this test
	// exercises ioctl scheduling end to end, not interrupt dispatch
	// (codegen tests cover vector relocation separately). Interrupts
	// are enabled at boot, so the program starts with DI and the event
	// arrives at tick 1, after the first fetch; the latched IRQ is
	// never taken.
	sched := []ioctl.Event{{Tick: 1, Port: isa.PortCH, Value: 88}}
	prog := []isa.Instr{
		{Op: isa.DI},
		{Op: isa.IN, Arg: int32(isa.PortCH)},
		{Op: isa.OUT, Arg: int32(isa.PortCH)},
		{Op: isa.HALT},
	}
	res, err := Run(prog, Options{DataWords: 16, TickLimit: 1000, Schedule: sched})
	require.NoError(t, err)
	require.Equal(t, []uint32{88}, res.Output[isa.PortCH])
}
