// Package main is the entry point for the feectl CLI.
package main

import (
	"os"

	"solana-fee-lab/cmd/feectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
