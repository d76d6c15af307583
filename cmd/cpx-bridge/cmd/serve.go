package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/cpx-bridge/internal/service/server"
)

func newServeCommand() *cobra.Command {
	var stateFile string

	cmd := &cobra.Command{
		Use:   "serve [listen-address]",
		Short: "Run the bridge and wait for commands.",
		Long: `Starts the bridge gRPC service on the loopback port from configuration.

Listen address can be provided as argument to override config (e.g., 127.0.0.1:5578).
Board state is persisted to a JSON file for recovery across restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(cmd.Context(), &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
			})
		},
	}

	cmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist board state (overrides config)")

	return cmd
}

func newRunCommand() *cobra.Command {
	var (
		stateFile     string
		listenAddress string
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a program in the simulator and serve the bridge.",
		Long: `Starts the bridge and immediately executes the given file in the simulator.

Events can then be sent with "cpx-bridge send-event" from another terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(cmd.Context(), &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				File:          args[0],
			})
		},
	}

	cmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist board state (overrides config)")
	cmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "listen address (overrides config)")

	return cmd
}
