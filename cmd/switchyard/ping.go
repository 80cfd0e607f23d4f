package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type pingOutput struct {
	Store     string  `json:"store"`
	Primary   bool    `json:"primary"`
	LatencyMS float64 `json:"latencyMs"`
	Error     string  `json:"error,omitempty"`
}

// NewPingCommand creates the ping command.
func NewPingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test the connection of the primary and every enabled store",
		Long: `Test the connection of the primary and every enabled store.

The command fails when the primary cannot be reached. Unreachable
replication targets are reported but do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := newApp(rootOpts)
			defer func() { _ = a.Close() }()

			ctx, cancel := withTimeout(cmd.Context(), rootOpts.Config.Proxy.RequestTimeout.Std())
			defer cancel()

			r, err := a.router(ctx)
			if err != nil {
				return err
			}

			results := r.Ping(ctx)
			rows := make([]pingOutput, len(results))
			var primaryErr error
			for i, res := range results {
				rows[i] = pingOutput{
					Store:     res.Kind.String(),
					Primary:   res.Primary,
					LatencyMS: float64(res.Latency.Microseconds()) / 1000,
				}
				if res.Err != nil {
					rows[i].Error = res.Err.Error()
					if res.Primary {
						primaryErr = fmt.Errorf("primary %s unreachable: %w", res.Kind, res.Err)
					}
				}
			}

			out := cmd.OutOrStdout()
			if rootOpts.JSON {
				if err := printJSON(out, rows); err != nil {
					return err
				}
			} else {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "STORE\tPRIMARY\tLATENCY\tSTATUS")
				for _, row := range rows {
					status := "ok"
					if row.Error != "" {
						status = row.Error
					}
					fmt.Fprintf(w, "%s\t%t\t%.1fms\t%s\n", row.Store, row.Primary, row.LatencyMS, status)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			return primaryErr
		},
	}
}
