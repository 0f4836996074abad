// Package main provides the entry point for the chopchop CLI.
package main

import (
	"os"

	"github.com/randalmurphal/chopchop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
