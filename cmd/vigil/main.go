// Package main provides the entry point for the vigil CLI.
package main

import (
	"os"

	"github.com/vigilfs/vigil/cmd/vigil/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
