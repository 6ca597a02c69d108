// Package benchmarks provides microbenchmark infrastructure for the
// simulator: small hand-assembled RISC-V programs with known results,
// and a harness that runs them on a fresh platform and reports cycle
// and cache statistics.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/insts"
	"github.com/riscv-software-src/hartsim/isa"
	"github.com/riscv-software-src/hartsim/mem"
)

// Benchmark programs load at LoadBase; DataBase is scratch space their
// Setup functions may populate.
const (
	LoadBase = uint64(0x8000_0000)
	DataBase = LoadBase + 0x8000
	ramSize  = uint64(1 << 20)
)

// Benchmark is one self-contained benchmark program.
type Benchmark struct {
	// Name identifies the benchmark.
	Name string

	// Description explains what the benchmark measures.
	Description string

	// Setup prepares hart and platform state after reset: registers,
	// scratch memory, whatever the program expects on entry.
	Setup func(h *hart.Hart, system *mem.System)

	// Program is the RISC-V machine code, placed at LoadBase.
	Program []byte

	// ExpectedExit is the exit code a correct run produces.
	ExpectedExit int64
}

// Result holds the outcome and counters of a single benchmark run.
type Result struct {
	// Name identifies the benchmark.
	Name string `json:"name"`

	// Description explains what the benchmark measures.
	Description string `json:"description"`

	// Stop says why the run ended, in run-loop terms.
	Stop string `json:"stop"`

	// ExitCode is the guest's exit code.
	ExitCode int64 `json:"exit_code"`

	// Cycles is the platform cycle count at the end of the run.
	Cycles uint64 `json:"cycles"`

	// Instructions is the number of retired instructions.
	Instructions uint64 `json:"instructions"`

	// CPI is cycles per instruction.
	CPI float64 `json:"cpi"`

	// Decoded-block cache counters.
	BlockLookups uint64 `json:"block_lookups"`
	BlockHits    uint64 `json:"block_hits"`
	BlockMisses  uint64 `json:"block_misses"`

	// WallTime is the host time the run took.
	WallTime time.Duration `json:"wall_time_ns"`
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Output is where reports go (default: os.Stdout).
	Output io.Writer

	// MaxInstructions bounds each run so a wrong program cannot hang
	// the harness.
	MaxInstructions uint64

	// Verbose enables per-run detail.
	Verbose bool
}

// DefaultConfig returns the stock harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Output:          os.Stdout,
		MaxInstructions: 1_000_000,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes every benchmark on a fresh platform and returns the
// results in order.
func (h *Harness) RunAll() []Result {
	results := make([]Result, 0, len(h.benchmarks))
	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}
	return results
}

func (h *Harness) runBenchmark(bench Benchmark) Result {
	system := mem.NewSystem(
		mem.NewPhysMem(LoadBase, ramSize),
		mem.NewPMATable(mem.Region{
			Name:  "ram",
			Base:  LoadBase,
			Size:  ramSize,
			Attrs: isa.PMARAM,
		}),
	)
	core := hart.New(0, 64, system,
		hart.WithDecoder(insts.NewDecoder(64).AsDecodeFunc()),
		hart.WithMaxInstructions(h.config.MaxInstructions),
	)

	if err := system.Phys().CopyFromHost(LoadBase, bench.Program); err != nil {
		panic(fmt.Sprintf("benchmarks: %s does not fit in memory: %v", bench.Name, err))
	}
	core.Reset(LoadBase)
	if bench.Setup != nil {
		bench.Setup(core, system)
	}

	start := time.Now()
	res := core.Run()
	wallTime := time.Since(start)

	stats := core.Blocks().Stats()
	cpi := float64(0)
	if res.Instret > 0 {
		cpi = float64(system.Clock()) / float64(res.Instret)
	}

	return Result{
		Name:         bench.Name,
		Description:  bench.Description,
		Stop:         res.Kind.String(),
		ExitCode:     res.ExitCode,
		Cycles:       system.Clock(),
		Instructions: res.Instret,
		CPI:          cpi,
		BlockLookups: stats.Lookups,
		BlockHits:    stats.Hits,
		BlockMisses:  stats.Misses,
		WallTime:     wallTime,
	}
}

// PrintResults outputs results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output, "=== hartsim Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Stop: %s\n", r.Stop)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles:       %d\n", r.Cycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions: %d\n", r.Instructions)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:          %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Block cache:  %d lookups, %d hits, %d misses\n",
			r.BlockLookups, r.BlockHits, r.BlockMisses)
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs results in CSV form for comparison runs.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,block_lookups,block_hits,block_misses,exit_code")
	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d\n",
			r.Name, r.Cycles, r.Instructions, r.CPI,
			r.BlockLookups, r.BlockHits, r.BlockMisses, r.ExitCode)
	}
}

// Report is the complete JSON output format.
type Report struct {
	// Metadata describes the run.
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results.
	Results []Result `json:"results"`

	// Summary contains aggregate statistics.
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata records when and how the benchmarks ran.
type ReportMetadata struct {
	Timestamp       string `json:"timestamp"`
	MaxInstructions uint64 `json:"max_instructions"`
}

// ReportSummary aggregates across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs results as a JSON report for automated comparison.
func (h *Harness) PrintJSON(results []Result) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.Cycles
		totalInstructions += r.Instructions
		totalWallTime += r.WallTime
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	report := Report{
		Metadata: ReportMetadata{
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
			MaxInstructions: h.config.MaxInstructions,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
