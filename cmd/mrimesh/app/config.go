package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"mrimesh/internal/logging"
	"mrimesh/pkg/config"
)

func NewConfig(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <cmd>",
		Short: "manage the configuration file",
		// An invalid configuration must not prevent writing a new one
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Configure(opts.verbose)
			return nil
		},
	}

	initcmd := &cobra.Command{
		Use:   "init [<path>]",
		Short: "write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.SaveConfigFS(opts.fs, config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to: %s\n", path)
			return nil
		},
	}

	cmd.AddCommand(initcmd)
	return cmd
}
