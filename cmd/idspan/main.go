// Package main provides the entry point for the idspan CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/idspan/cmd/idspan/commands"
	"github.com/Sumatoshi-tech/idspan/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
