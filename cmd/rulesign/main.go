package main

import (
	"fmt"
	"os"

	"github.com/quantumauth-io/rulesign-go/log"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs cmd and reports a failure on its error stream. Cobra's own
// error printing is silenced on the root command, so this is the only place a
// failed run becomes visible.
func execute(cmd *cobra.Command) int {
	defer log.Sync()
	if err := cmd.Execute(); err != nil {
		log.Debug("command failed", "error", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}
