// Package latticacmd contains the cobra command tree for the lattica binary.
package latticacmd

import (
	"github.com/spf13/cobra"
)

// DefaultAddr is where the start command listens
// and where client commands connect, unless overridden.
const DefaultAddr = "127.0.0.1:9480"

type rootFlags struct {
	logLevel  string
	logFormat string
	logFile   string
}

// NewRootCmd returns the root lattica command.
func NewRootCmd() *cobra.Command {
	var rf rootFlags

	cmd := &cobra.Command{
		Use:   "lattica",
		Short: "Weighted-majority block confirmation engine",

		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&rf.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&rf.logFormat, "log-format", "text", "log format (text or json)")
	pf.StringVar(&rf.logFile, "log-file", "", "write logs to this file, with rotation, instead of stderr")

	cmd.AddCommand(
		newStartCmd(&rf),
		newDemoCmd(&rf),

		newStatusCmd(),
		newValidatorCmd(),
		newProposeCmd(),
		newVoteCmd(),
		newCheckCmd(),
		newPendingCmd(),
		newChainCmd(),
		newScoreCmd(),
		newExpireCmd(),
	)

	return cmd
}
