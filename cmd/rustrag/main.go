// Package main provides the entry point for the rustrag CLI.
package main

import (
	"os"

	"github.com/Michaol/RustRAG/cmd/rustrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
