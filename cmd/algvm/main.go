// Command algvm runs a stack machine binary against an optional
// schedule file and prints the resulting port output, with an
// optional per-tick trace.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/yasnov/algstack/internal/ioctl"
	"github.com/yasnov/algstack/internal/isa"
	"github.com/yasnov/algstack/internal/runner"
	"github.com/yasnov/algstack/internal/schedule"
)

var log = logrus.New()

func main() {
	app := &cli.App{
		Name:  "algvm",
		Usage: "stack machine binary + schedule -> trace + port output",
		Commands: []*cli.Command{
			runCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "execute a compiled program",
	ArgsUsage: "<program.bin>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "schedule", Usage: "text schedule file (tick port value)"},
		&cli.IntFlag{Name: "data-words", Value: 1024},
		&cli.IntFlag{Name: "ticks", Value: 100000},
		&cli.BoolFlag{Name: "trace", Usage: "emit a per-tick trace"},
		&cli.StringFlag{Name: "trace-file", Usage: "write trace here instead of stdout"},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug|info|warn|error"},
	},
	Action: runRun,
}

func runRun(ctx *cli.Context) error {
	level, err := logrus.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	log.SetLevel(level)

	if ctx.Args().Len() < 1 {
		return cli.Exit("usage: algvm run <program.bin> [--schedule <file>]", 2)
	}
	progPath := ctx.Args().Get(0)

	blob, err := os.ReadFile(progPath)
	if err != nil {
		log.WithError(err).Error("failed to read program")
		return cli.Exit(err.Error(), 1)
	}
	code, err := isa.Decode(blob)
	if err != nil {
		log.WithError(err).Error("failed to decode program")
		return cli.Exit(err.Error(), 1)
	}

	var sched []ioctl.Event
	if schedPath := ctx.String("schedule"); schedPath != "" {
		f, err := os.Open(schedPath)
		if err != nil {
			log.WithError(err).Error("failed to open schedule")
			return cli.Exit(err.Error(), 1)
		}
		sched, err = schedule.Parse(f)
		f.Close()
		if err != nil {
			log.WithError(err).Error("failed to parse schedule")
			return cli.Exit(err.Error(), 1)
		}
	}

	var traceWriter *os.File
	if ctx.Bool("trace") {
		if p := ctx.String("trace-file"); p != "" {
			traceWriter, err = os.Create(p)
			if err != nil {
				log.WithError(err).Error("failed to create trace file")
				return cli.Exit(err.Error(), 1)
			}
			defer traceWriter.Close()
		} else {
			traceWriter = os.Stdout
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := runWithCancellation(sigCtx, code, runner.Options{
		DataWords:   ctx.Int("data-words"),
		TickLimit:   ctx.Int("ticks"),
		Schedule:    sched,
		Trace:       ctx.Bool("trace"),
		TraceWriter: traceWriter,
		Log:         log,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("run cancelled by signal before completion")
			return cli.Exit("interrupted", 130)
		}
		log.WithError(err).Error("run failed")
		return cli.Exit(err.Error(), 1)
	}

	printOutputs(result.Output)
	return nil
}

// runWithCancellation wraps runner.Run so SIGINT between ticks is
// reported distinctly from either a normal halt or a tick-limit
// exhaustion, rather than silently truncating output. The runner
// itself has no concept of cancellation: it is a pure function of
// (code, schedule, tick limit).
func runWithCancellation(ctx context.Context, code []isa.Instr, opts runner.Options) (runner.Result, error) {
	type outcome struct {
		res runner.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errors.Errorf("run panicked: %v", r)}
			}
		}()
		res, err := runner.Run(code, opts)
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		// The goroutine above keeps running to completion (the tick
		// loop has no cooperative cancellation point); we simply stop
		// waiting on it and report the cancellation.
		return runner.Result{}, ctx.Err()
	}
}

func printOutputs(out map[isa.Port][]uint32) {
	if ch := out[isa.PortCH]; len(ch) > 0 {
		b := make([]byte, len(ch))
		for i, v := range ch {
			b[i] = byte(v)
		}
		fmt.Printf("CH| %s\n", string(b))
	}
	if d := out[isa.PortD]; len(d) > 0 {
		fmt.Print("D| ")
		for i, v := range d {
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Print(int32(v))
		}
		fmt.Println()
	}
	if l := out[isa.PortL]; len(l) > 0 {
		if len(l)%2 != 0 {
			fmt.Println("L| (warn: odd words)")
			return
		}
		fmt.Print("L| ")
		for i := 0; i < len(l); i += 2 {
			lo, hi := uint64(l[i]), uint64(l[i+1])
			val := (hi << 32) | lo
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Print(val)
		}
		fmt.Println()
	}
}
