// Command readmeplay plays time-annotated READMEs against a local executor.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/readmeplay/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
