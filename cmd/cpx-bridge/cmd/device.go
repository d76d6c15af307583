package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/service/deployer"
	"github.com/oshokin/cpx-bridge/internal/service/device"
)

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Print the mount point of the CIRCUITPY drive.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			path, err := device.NewDetector(device.WithTimeout(cfg.Timeout)).Detect(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)

			return err
		},
	}
}

func newDeployCommand() *cobra.Command {
	var libDir string

	cmd := &cobra.Command{
		Use:   "deploy <file>",
		Short: "Copy a program to a connected board as code.py.",
		Long: `Detects the CIRCUITPY drive and writes the file to it as code.py.

With --lib the given directory is copied into lib/ on the drive as well.
Sound files in it are checked to be playable by the board first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			d := deployer.New(device.NewDetector(device.WithTimeout(cfg.Timeout)))

			result, err := d.Deploy(cmd.Context(), &deployer.Options{
				File:   args[0],
				LibDir: libDir,
				Device: cfg.ActiveDevice,
			})
			if err != nil {
				return err
			}

			for _, f := range result.Files {
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), f); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&libDir, "lib", "", "directory copied into lib/ on the drive")

	return cmd
}
