package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/switchyard/proxy"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the query proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := rootOpts.Config.Proxy.Secret
			if secret == "" {
				return errors.New("SWITCHYARD_PROXY_SECRET is required")
			}
			if ttl <= 0 {
				ttl = rootOpts.Config.Proxy.TokenTTL.Std()
			}

			token, err := proxy.IssueToken([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)

			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "switchyard-cli", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default proxy.token_ttl)")

	return cmd
}
