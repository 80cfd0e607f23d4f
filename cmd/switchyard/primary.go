package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/switchyard/config"
)

// NewPrimaryCommand creates the primary command.
func NewPrimaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "primary",
		Short: "Show the primary store and which stores receive replicated writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(rootOpts)
			defer func() { _ = a.Close() }()

			ctx, cancel := withTimeout(cmd.Context(), rootOpts.Config.Proxy.RequestTimeout.Std())
			defer cancel()

			source, err := a.source(ctx)
			if err != nil {
				return err
			}

			key := rootOpts.Config.Source.Key
			settings, err := config.NewReader(source, key).Load(ctx)
			if err != nil {
				rootOpts.Logger.Warn("data source configuration unavailable, using managed store", "error", err.Error())
				settings = nil
			}
			descriptors := settings.Descriptors()

			out := cmd.OutOrStdout()
			if rootOpts.JSON {
				return printJSON(out, descriptors)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STORE\tPRIMARY\tENABLED\tCONFIGURED")
			for _, d := range descriptors {
				fmt.Fprintf(w, "%s\t%t\t%t\t%t\n", d.Kind, d.Primary, d.Enabled, d.Configured)
			}

			return w.Flush()
		},
	}
}
