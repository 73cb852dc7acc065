// Command dynq compiles and runs query documents against CUE record schemas.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/dynq/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// Commands that format their own errors return ExitErrors; anything
		// else (flag parsing, config) has not been reported yet.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
