// Package main is the CLI entry point for the orchestration runtime.
package main

import (
	"fmt"
	"os"

	"github.com/conductor-run/orchestrator/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
