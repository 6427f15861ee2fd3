// Package golden runs the canonical end-to-end ALG programs under
// testdata/programs through the full compile -> run pipeline and
// checks their port output, grounding the scenarios enumerated in
// SPEC_FULL.md's testable properties.
package golden

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yasnov/algstack/internal/codegen"
	"github.com/yasnov/algstack/internal/ioctl"
	"github.com/yasnov/algstack/internal/isa"
	"github.com/yasnov/algstack/internal/parser"
	"github.com/yasnov/algstack/internal/runner"
	"github.com/yasnov/algstack/internal/schedule"
)

func compile(t *testing.T, path string) []isa.Instr {
	t.Helper()
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	prog, err := parser.Parse(string(src))
	require.NoError(t, err)
	code, err := codegen.Generate(prog)
	require.NoError(t, err)
	return code
}

func loadSchedule(t *testing.T, path string) []ioctl.Event {
	t.Helper()
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	events, err := schedule.Parse(f)
	require.NoError(t, err)
	return events
}

func decimalInts(words []uint32) []int32 {
	out := make([]int32, len(words))
	for i, w := range words {
		out[i] = int32(w)
	}
	return out
}

func pairsLowHigh(words []uint32) []uint64 {
	var out []uint64
	for i := 0; i+1 < len(words); i += 2 {
		out = append(out, (uint64(words[i+1])<<32)|uint64(words[i]))
	}
	return out
}

type scenario struct {
	name       string
	program    string
	schedule   string
	ticks      int
	dataWords  int
	wantCH     string
	wantD      []int32
	wantL      []uint64
	wantNoD    bool
	wantNoL    bool
}

func (s scenario) run(t *testing.T) {
	code := compile(t, filepath.Join("..", "..", "testdata", "programs", s.program))
	sched := loadSchedule(t, s.schedule)

	result, err := runner.Run(code, runner.Options{
		DataWords: s.dataWords,
		TickLimit: s.ticks,
		Schedule:  sched,
	})
	require.NoError(t, err)
	require.True(t, result.Halted, "program must reach HALT within the tick budget")

	out := result.Output
	ch := out[isa.PortCH]
	chBytes := make([]byte, len(ch))
	for i, v := range ch {
		chBytes[i] = byte(v)
	}
	require.Equal(t, s.wantCH, string(chBytes))

	if s.wantNoD {
		require.Empty(t, out[isa.PortD])
	} else if s.wantD != nil {
		require.Equal(t, s.wantD, decimalInts(out[isa.PortD]))
	}

	if s.wantNoL {
		require.Empty(t, out[isa.PortL])
	} else if s.wantL != nil {
		require.Equal(t, s.wantL, pairsLowHigh(out[isa.PortL]))
	}
}

func TestHelloWorld(t *testing.T) {
	scenario{
		name:      "hello_world",
		program:   "hello_world.alg",
		ticks:     2000,
		dataWords: 256,
		wantCH:    "Hello, world!",
		wantNoD:   true,
		wantNoL:   true,
	}.run(t)
}

func TestCat(t *testing.T) {
	scenario{
		name:      "cat",
		program:   "cat.alg",
		schedule:  filepath.Join("..", "..", "testdata", "schedules", "cat.sched"),
		ticks:     500,
		dataWords: 256,
		wantCH:    "ABC\n",
		wantNoD:   true,
		wantNoL:   true,
	}.run(t)
}

func TestHelloUserName(t *testing.T) {
	scenario{
		name:      "hello_user_name",
		program:   "hello_user_name.alg",
		schedule:  filepath.Join("..", "..", "testdata", "schedules", "hello_user_name.sched"),
		ticks:     8000,
		dataWords: 256,
		wantCH:    "Hello, Alice\n",
		wantNoD:   true,
		wantNoL:   true,
	}.run(t)
}

func TestProb2(t *testing.T) {
	scenario{
		name:      "prob2",
		program:   "prob2.alg",
		ticks:     4000,
		dataWords: 256,
		wantCH:    "\n",
		wantD:     []int32{4613732},
		wantNoL:   true,
	}.run(t)
}

func TestDoublePrecision(t *testing.T) {
	scenario{
		name:      "double_precision",
		program:   "double_precision.alg",
		schedule:  filepath.Join("..", "..", "testdata", "schedules", "double_precision.sched"),
		ticks:     5000,
		dataWords: 256,
		wantCH:    "",
		wantNoD:   true,
		wantL:     []uint64{1 << 32},
	}.run(t)
}

func TestCatTrap(t *testing.T) {
	scenario{
		name:      "cat_trap",
		program:   "cat_trap.alg",
		schedule:  filepath.Join("..", "..", "testdata", "schedules", "cat_trap.sched"),
		ticks:     5000,
		dataWords: 256,
		wantCH:    "ABC\n",
		wantNoD:   true,
		wantNoL:   true,
	}.run(t)
}

// TestSort supplements the distilled scenario list with the original
// implementation's bubble-sort fixture (see original_source's
// discover_tests), exercising array get/set alongside readInt/printInt.
func TestSort(t *testing.T) {
	scenario{
		name:      "sort",
		program:   "sort.alg",
		schedule:  filepath.Join("..", "..", "testdata", "schedules", "sort.sched"),
		ticks:     120000,
		dataWords: 512,
		wantCH:    "\n\n\n\n\n",
		wantD:     []int32{1, 3, 5, 7, 9},
		wantNoL:   true,
	}.run(t)
}

// TestCatTrapShowsInterruptDispatch checks the cat_trap run's trace,
// not just its port dump: at least one trace line must show
// in_isr=1. Which ticks carry the flag is not checked.
func TestCatTrapShowsInterruptDispatch(t *testing.T) {
	code := compile(t, filepath.Join("..", "..", "testdata", "programs", "cat_trap.alg"))
	sched := loadSchedule(t, filepath.Join("..", "..", "testdata", "schedules", "cat_trap.sched"))

	var buf []byte
	w := &sliceWriter{buf: &buf}
	result, err := runner.Run(code, runner.Options{
		DataWords:   256,
		TickLimit:   5000,
		Schedule:    sched,
		Trace:       true,
		TraceWriter: w,
	})
	require.NoError(t, err)
	require.True(t, result.Halted)
	require.Contains(t, string(buf), "in_isr=1")
}

type sliceWriter struct{ buf *[]byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
