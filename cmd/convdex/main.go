// Package main provides the entry point for the convdex CLI.
package main

import (
	"os"

	"github.com/convsearch/convdex/cmd/convdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
