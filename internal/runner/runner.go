// Package runner drives the control unit tick by tick against a
// scheduled I/O environment and emits the per-tick trace.
package runner

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/yasnov/algstack/internal/cpu"
	"github.com/yasnov/algstack/internal/datapath"
	"github.com/yasnov/algstack/internal/ioctl"
	"github.com/yasnov/algstack/internal/isa"
)

// Options configures a Run invocation.
type Options struct {
	DataWords int
	TickLimit int
	Schedule  []ioctl.Event

	Trace      bool
	TraceWriter io.Writer

	Log *logrus.Logger
}

// Result is everything a caller needs after a run completes: the
// port output dump, the tick actually reached, and whether the
// program halted (as opposed to exhausting TickLimit).
type Result struct {
	Output  map[isa.Port][]uint32
	Ticks   int
	Halted  bool
}

// traceLine renders one trace line exactly per SPEC_FULL.md §6.6. S
// is the true second-of-stack value (see DESIGN.md's resolution of
// the original's "S=dp.z" trace field), not a copy of the zero flag.
func traceLine(c *cpu.CPU) string {
	return fmt.Sprintf(
		"t=%d pc=%d phase=%s T=%d S=%d AR=%d zero=%d sign=%d in_isr=%d\n",
		c.Tick, c.PC, c.Phase(), c.DP.T, c.DP.S, c.DP.AR,
		boolInt(c.DP.Zero), boolInt(c.DP.Sign), boolInt(c.InISR),
	)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Run loads code into a fresh CPU/DataPath/IO stack and steps it
// until HALT or opts.TickLimit, whichever comes first, matching the
// original's run_machine loop condition (tick < tick_limit and not
// halted) and its GC-disable-during-execution idiom.
func Run(code []isa.Instr, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}

	dp := datapath.New(opts.DataWords)
	io := ioctl.New(opts.Schedule)
	c := cpu.New(code, dp, io)

	log.WithFields(logrus.Fields{
		"instructions": len(code),
		"data_words":   opts.DataWords,
		"tick_limit":   opts.TickLimit,
	}).Debug("run starting")

	restore := disableGCDuringExecution()
	defer restore()

	for c.Tick < opts.TickLimit && !c.Halted {
		if opts.Trace && opts.TraceWriter != nil {
			if _, err := opts.TraceWriter.Write([]byte(traceLine(c))); err != nil {
				return Result{}, err
			}
		}
		if err := c.Step(); err != nil {
			log.WithError(err).Error("run aborted by invariant violation")
			return Result{}, err
		}
	}

	reason := "tick limit reached"
	if c.Halted {
		reason = "halt"
	}
	log.WithFields(logrus.Fields{
		"ticks":  c.Tick,
		"reason": reason,
	}).Debug("run finished")

	return Result{
		Output: io.OutDump(),
		Ticks:  c.Tick,
		Halted: c.Halted,
	}, nil
}

// disableGCDuringExecution mirrors the teacher's GOGC save/restore
// around the tick loop: memory is allocated up front (the data
// segment and instruction memory), so disabling GC during the tight
// per-tick loop avoids paying for collections the loop cannot trigger
// much of. Returns a closure that restores the prior GOGC value (or
// Go's default of 100 if GOGC was unset or unparsable).
func disableGCDuringExecution() func() {
	prev := 100
	if val, ok := os.LookupEnv("GOGC"); ok {
		if n, err := strconv.ParseInt(val, 10, 32); err == nil {
			prev = int(n)
		}
	}
	debug.SetGCPercent(-1)
	return func() {
		debug.SetGCPercent(prev)
	}
}
