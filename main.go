// Package main provides the entry point for hartsim.
// Hartsim is a RISC-V instruction-set simulator with a generated-model
// runtime core.
//
// For the full CLI, use: go run ./cmd/hartsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("hartsim - RISC-V instruction-set simulator")
	fmt.Println("")
	fmt.Println("Usage: hartsim [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config     Path to a YAML configuration file")
	fmt.Println("  -trace      Write an execution trace to stderr")
	fmt.Println("  -max-insts  Stop after this many instructions")
	fmt.Println("  -v          Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/hartsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/hartsim' instead.")
	}
}
