// Package main provides the entry point for the searchgrep CLI.
package main

import (
	"os"

	"github.com/searchgrep/searchgrep/cmd/searchgrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
