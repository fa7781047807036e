// Package main provides the entry point for the eden CLI.
package main

import (
	"os"

	"github.com/edenlabs/eden/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
