package cmd

import (
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type rootOpts struct {
	config   string // --config
	logLevel string // --log-level
}

// NewRootCommand returns a new instance of a ferry command
func NewRootCommand() *cobra.Command {
	var opts rootOpts
	engine := DefaultEngine()
	rootCmd := &cobra.Command{
		Use:          "ferry",
		Short:        "ferry runs container CI pipelines on the local machine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e, err := LoadEngine(opts.config)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				e.LogLevel = opts.logLevel
			}
			if err := context.SetLogLevel(e.LogLevel); err != nil {
				return errors.Wrapf(err, "invalid log level %s", e.LogLevel)
			}
			engine = e
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.config, "config", "", "configuration file (json or yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(NewRunCommand(&engine))
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewValidateCommand())
	return rootCmd
}
