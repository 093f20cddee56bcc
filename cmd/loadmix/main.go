// Command loadmix composes custom energy demand tables from precomputed
// scenario tables.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/loadmix/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "loadmix:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
