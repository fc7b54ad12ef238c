// Package main provides the entry point for the lexstore CLI.
package main

import (
	"os"

	"github.com/studiolex/lexstore/cmd/lexstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
