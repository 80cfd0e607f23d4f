package main

import (
	"fmt"

	"github.com/spf13/cobra"

	zlog "github.com/arloliu/switchyard/contrib/logging/zerolog"
	"github.com/arloliu/switchyard/internal/cliconfig"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	JSON       bool

	// Populated by the root PersistentPreRunE.
	Config *cliconfig.Config
	Logger *zlog.Logger
}

// NewRootCommand creates the root command of the switchyard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "switchyard",
		Short:         "Route and replicate data across managed and self-hosted stores",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cliconfig.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.LogLevel != "" {
				cfg.Log.Level = opts.LogLevel
			}
			opts.Config = cfg
			opts.Logger = zlog.New(cmd.ErrOrStderr(),
				zlog.WithLevel(cfg.Log.Level),
				zlog.WithComponent("cli"),
			)

			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"Config file (default $SWITCHYARD_CONFIG or ./switchyard.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "",
		"Log level (debug|info|warn|error), overrides config")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output in JSON format")

	cmd.AddCommand(NewProxyCommand(opts))
	cmd.AddCommand(NewPrimaryCommand(opts))
	cmd.AddCommand(NewPingCommand(opts))
	cmd.AddCommand(NewBackfillCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}
