// Command buyflow drives and inspects buy flows from the command line.
package main

import (
	"os"

	"github.com/roach88/buyflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
