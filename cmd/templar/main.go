// Package main provides the templar command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/templar/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
