// Command irkit parses, verifies, lowers and executes IR modules.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/irkit/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
