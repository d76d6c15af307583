package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/cpx-bridge/internal/service/client"
	"github.com/oshokin/cpx-bridge/internal/service/watcher"
)

func newExecCommand() *cobra.Command {
	var wait bool

	cmd := remoteCommand(&cobra.Command{
		Use:   "exec <file>",
		Short: "Replace the program running in the bridge.",
		Long: `Asks a running bridge to execute the file, stopping the current program first.

With --wait the request is retried until the bridge becomes reachable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Run(cmd.Context(), &client.Options{
				ConfigPath:    configPath,
				ServerAddress: bridgeAddress,
				File:          args[0],
				Wait:          wait,
			})
		},
	})

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "retry until the bridge is reachable")

	return cmd
}

func newWatchCommand() *cobra.Command {
	var interval time.Duration

	cmd := remoteCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print the board state every time it changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watcher.Run(cmd.Context(), &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: bridgeAddress,
				PollInterval:  interval,
				Output:        cmd.OutOrStdout(),
			})
		},
	})

	cmd.Flags().DurationVarP(&interval, "interval", "i", watcher.DefaultPollInterval, "poll interval")

	return cmd
}
