// Package main provides a profiling wrapper for hartsim to identify
// host-side performance bottlenecks in the simulation loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/riscv-software-src/hartsim/config"
	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/insts"
	"github.com/riscv-software-src/hartsim/loader"
	"github.com/riscv-software-src/hartsim/mem"
)

var (
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	maxInstr   = flag.Uint64("max-instr", 1_000_000, "max instructions to execute (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)

	cfg := config.Default()
	if uint(prog.Class) != cfg.Hart.XLEN {
		fmt.Fprintf(os.Stderr, "Error: RV%d executable on an RV%d hart\n", prog.Class, cfg.Hart.XLEN)
		os.Exit(1)
	}

	system, err := buildSystem(cfg, prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building platform: %v\n", err)
		os.Exit(1)
	}

	core := hart.New(0, cfg.Hart.XLEN, system,
		hart.WithDecoder(insts.NewDecoder(cfg.Hart.XLEN).AsDecodeFunc()),
		hart.WithExtensions(cfg.Hart.Extensions),
		hart.WithMaxInstructions(*maxInstr),
	)

	if err := prog.CopyTo(system.Phys()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading segments: %v\n", err)
		os.Exit(1)
	}

	entry := prog.EntryPoint
	if entry == 0 {
		entry = cfg.Hart.ResetVector
	}
	core.Reset(entry)

	start := time.Now()
	res := core.Run()
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	stats := core.Blocks().Stats()

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Stop: %s\n", res.Kind)
	fmt.Printf("Exit code: %d\n", res.ExitCode)
	fmt.Printf("Instructions executed: %d\n", res.Instret)
	fmt.Printf("Block cache: %d lookups, %d hits, %d misses\n",
		stats.Lookups, stats.Hits, stats.Misses)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if res.Instret > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(res.Instret)/elapsed.Seconds())
	}
}

// buildSystem assembles physical memory and attribute regions from the
// default configuration. No stdin wiring: profiled programs should not
// block on the terminal.
func buildSystem(cfg *config.Config, prog *loader.Program) (*mem.System, error) {
	regions := make([]mem.Region, 0, len(cfg.Memory.Regions))
	var lo, hi uint64
	for i, rc := range cfg.Memory.Regions {
		attrs, err := rc.PMA()
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", rc.Name, err)
		}
		regions = append(regions, mem.Region{
			Name:  rc.Name,
			Base:  rc.Base,
			Size:  rc.Size,
			Attrs: attrs,
		})
		if i == 0 || rc.Base < lo {
			lo = rc.Base
		}
		if end := rc.Base + rc.Size; end > hi {
			hi = end
		}
	}

	return mem.NewSystem(
		mem.NewPhysMem(lo, hi-lo),
		mem.NewPMATable(regions...),
		mem.WithConsole(os.Stdout),
		mem.WithInitialBrk(prog.HighAddr),
	), nil
}
