// Package main implements qbenchctl, the qbench administration CLI.
package main

import (
	"fmt"
	"os"

	"github.com/qbench/qbench/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
