// Command regen replays parametric modelling histories.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/regen/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Stdout carries the command's report; the summary goes to stderr.
		fmt.Fprintln(os.Stderr, "regen:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
