// Package main provides the hartsim command line: it loads a RISC-V
// ELF executable into a configured platform and runs it to completion,
// exiting with the guest's exit code.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/riscv-software-src/hartsim/config"
	"github.com/riscv-software-src/hartsim/hart"
	"github.com/riscv-software-src/hartsim/insts"
	"github.com/riscv-software-src/hartsim/loader"
	"github.com/riscv-software-src/hartsim/mem"
)

var (
	configPath = flag.String("config", "", "Path to a YAML configuration file")
	verbose    = flag.Bool("v", false, "Verbose output")
	traceExec  = flag.Bool("trace", false, "Write an execution trace to stderr")
	maxInsts   = flag.Uint64("max-insts", 0, "Stop after this many instructions (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: hartsim [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	programPath := flag.Arg(0)
	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}
	if uint(prog.Class) != cfg.Hart.XLEN {
		fmt.Fprintf(os.Stderr, "Error: RV%d executable on an RV%d hart\n",
			prog.Class, cfg.Hart.XLEN)
		os.Exit(1)
	}

	system, err := buildSystem(cfg, prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building platform: %v\n", err)
		os.Exit(1)
	}

	h := hart.New(0, cfg.Hart.XLEN, system,
		hart.WithDecoder(insts.NewDecoder(cfg.Hart.XLEN).AsDecodeFunc()),
		hart.WithExtensions(cfg.Hart.Extensions),
		hart.WithMachineIDs(cfg.Hart.VendorID, cfg.Hart.ArchID, cfg.Hart.ImpID),
		hart.WithMaxInstructions(*maxInsts),
	)
	if *traceExec || cfg.Trace.Enabled {
		if err := h.AttachTracer(&hart.WriterTracer{W: os.Stderr}); err != nil {
			fmt.Fprintf(os.Stderr, "Error attaching tracer: %v\n", err)
			os.Exit(1)
		}
	}

	if err := prog.CopyTo(system.Phys()); err != nil {
		fmt.Fprintf(os.Stderr, "Error placing program: %v\n", err)
		os.Exit(1)
	}

	// The ELF entry point wins; the configured reset vector covers
	// images that leave the entry field zero.
	start := prog.EntryPoint
	if start == 0 {
		start = cfg.Hart.ResetVector
	}
	h.Reset(start)

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: %#x\n", start)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
		fmt.Printf("Program break: %#x\n", prog.HighAddr)
	}

	res := h.Run()

	if *verbose {
		report(programPath, res, h, system)
	}

	switch res.Kind {
	case hart.SignalExit:
		os.Exit(int(res.ExitCode))
	case hart.SignalWait:
		// wfi with no wakeup source parks the hart for good; treat it
		// as a clean halt
		os.Exit(0)
	case hart.SignalNone:
		fmt.Fprintf(os.Stderr, "hartsim: instruction budget exhausted at pc %#x\n", res.PC)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "hartsim: stopped at pc %#x: %v\n", res.PC, res.Kind)
		if res.Reason != "" {
			fmt.Fprintf(os.Stderr, "hartsim: %s\n", res.Reason)
		}
		os.Exit(1)
	}
}

// buildSystem realizes the configured memory map: one physical window
// spanning every region, attribute-gated per region so the gaps
// between them fault.
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
		mem.WithStdin(os.Stdin),
		mem.WithInitialBrk(prog.HighAddr),
	), nil
}

func report(programPath string, res hart.RunResult, h *hart.Hart, system *mem.System) {
	fmt.Printf("\nProgram: %s\n", programPath)
	fmt.Printf("Stop: %v\n", res.Kind)
	if res.Kind == hart.SignalExit {
		fmt.Printf("Exit code: %d\n", res.ExitCode)
	}
	fmt.Printf("Instructions retired: %d\n", res.Instret)
	fmt.Printf("Cycles: %d\n", system.Clock())

	blocks := h.Blocks().Stats()
	if blocks.Lookups > 0 {
		fmt.Printf("\nBlock cache:\n")
		fmt.Printf("  Lookups: %d\n", blocks.Lookups)
		fmt.Printf("  Hits:    %d (%.1f%%)\n",
			blocks.Hits, 100.0*float64(blocks.Hits)/float64(blocks.Lookups))
		fmt.Printf("  Misses:  %d\n", blocks.Misses)
	}

	tlbs := system.TLBs().Stats()
	if tlbs.Lookups > 0 {
		fmt.Printf("\nTranslation caches:\n")
		fmt.Printf("  Lookups: %d\n", tlbs.Lookups)
		fmt.Printf("  Hits:    %d (%.1f%%)\n",
			tlbs.Hits, 100.0*float64(tlbs.Hits)/float64(tlbs.Lookups))
		fmt.Printf("  Misses:  %d\n", tlbs.Misses)
	}
}
