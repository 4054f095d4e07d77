// Command tangle reconstructs Compton coincidences of annihilation photon
// pairs from step logs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tangle/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
