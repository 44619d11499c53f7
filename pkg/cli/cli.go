// Package cli is the pack command line.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// Version is printed by --version.
var Version = "0.0.0"

// Run executes args and returns the process exit code.
func Run(args []string) int {
	return runImpl(args)
}

// NewCommand returns the root command, writing to out and errOut.
func NewCommand(out, errOut io.Writer) *cobra.Command {
	return newRootCommand(out, errOut)
}
