package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telegram-files/tfsync/internal/core"
)

// newPingCmd creates the 'ping' command.
func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Measure latency to the file server",
		Long: `Probe the file server's Telegram connection and print the latency.
Transient failures are retried before reporting a connection error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			s, _, err := openSession(ctx, core.Options{NoPush: true})
			if err != nil {
				return err
			}
			defer closeSession(s)

			latency, err := s.Probe(ctx)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Connection error")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d ms\n", latency.Milliseconds())
			return nil
		},
	}
}
