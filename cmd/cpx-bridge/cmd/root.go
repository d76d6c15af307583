package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/logger"
	"github.com/oshokin/cpx-bridge/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel is the minimum level written to stderr.
	logLevel string

	// rootCmd represents the base command of the bridge.
	rootCmd = &cobra.Command{
		Use:   "cpx-bridge",
		Short: "Run and deploy Circuit Playground Express programs.",
		Long: `Bridges a simulated or physical Circuit Playground Express board.

The serve and run commands host the bridge on a local port (5577 by default):
user code is executed in a simulator process, input events are relayed into it
and the board state it reports is kept and persisted.

The deploy and detect commands work with the CIRCUITPY drive of a connected board.
The remaining commands talk to a running bridge.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			lvl, ok := logger.ParseLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(lvl)

			return nil
		},
	}
)

// Execute runs the cpx-bridge CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCommand(),
		newRunCommand(),
		newDeployCommand(),
		newDetectCommand(),
		newSendEventCommand(),
		newStateCommand(),
		newSetDeviceCommand(),
		newExecCommand(),
		newStopCommand(),
		newMountCommand(),
		newWatchCommand(),
		version.NewCommand(),
	)
}
