// Package cli implements the dxwdl command line.
package cli

import (
	"log/slog"

	"github.com/me/dxwdl/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagVerbosity int
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the dxwdl CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dxwdl",
		Short: "dxwdl — compile WDL workflows to DNAnexus staged workflows",
		Long:  "dxwdl lowers a WDL document into a namespace of applets and a staged workflow ready for platform submission.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.LevelForVerbosity(flagVerbosity), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (YAML)")
	root.PersistentFlags().CountVarP(&flagVerbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newCompileCmd(),
		newCheckCmd(),
	)
	return root
}
