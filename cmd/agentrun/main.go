// Agentrun is a CLI tool for validating, executing, and scheduling
// commands issued by autonomous coding agents.
package main

import (
	"fmt"
	"os"

	"github.com/quarry-dev/agentrun/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
