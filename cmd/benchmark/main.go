// Command benchmark runs the hartsim microbenchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output a full JSON report
//	-core       Run only the core benchmark subset
//	-max-insts  Per-benchmark instruction budget
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// Every benchmark carries the exit code a correct run produces, so the
// harness doubles as a quick end-to-end check of the simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/riscv-software-src/hartsim/benchmarks"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output a full JSON report")
	coreOnly := flag.Bool("core", false, "Run only the core benchmark subset")
	maxInsts := flag.Uint64("max-insts", 0, "Per-benchmark instruction budget (0 = harness default)")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.Output = os.Stdout
	if *maxInsts > 0 {
		config.MaxInstructions = *maxInsts
	}

	benchSet := benchmarks.GetMicrobenchmarks()
	if *coreOnly {
		benchSet = benchmarks.GetCoreBenchmarks()
	}

	harness := benchmarks.NewHarness(config)
	harness.AddBenchmarks(benchSet)

	if !*csvOutput && !*jsonOutput {
		fmt.Println("hartsim Microbenchmark Harness")
		fmt.Println("==============================")
		fmt.Printf("Benchmarks: %d\n", len(benchSet))
		fmt.Printf("Instruction budget: %d\n", config.MaxInstructions)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON report: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Verification ===")
		fmt.Println("")
		failed := 0
		for i, r := range results {
			status := "ok"
			if r.ExitCode != benchSet[i].ExpectedExit {
				status = fmt.Sprintf("FAIL (want %d)", benchSet[i].ExpectedExit)
				failed++
			}
			fmt.Printf("  %-24s exit=%-4d %s\n", r.Name, r.ExitCode, status)
		}
		fmt.Println("")
		if failed > 0 {
			fmt.Printf("%d of %d benchmarks produced a wrong result\n", failed, len(results))
			os.Exit(1)
		}
		fmt.Printf("all %d benchmarks produced their expected results\n", len(results))
	}
}
