// Package main provides the entry point for the devserve CLI.
package main

import (
	"fmt"
	"os"

	"github.com/devserve-run/devserve/cmd/devserve/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
