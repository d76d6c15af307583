package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/logger"
	"github.com/oshokin/cpx-bridge/internal/repository/state"
	"github.com/oshokin/cpx-bridge/internal/service/common"
	"github.com/oshokin/cpx-bridge/internal/service/runner"
)

// bridgeAddress overrides the address derived from the port setting.
//
//nolint:gochecknoglobals // Bound to a persistent flag of the remote commands.
var bridgeAddress string

// dialBridge connects to the running bridge.
func dialBridge(ctx context.Context) (*common.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	address := cfg.Address()
	if bridgeAddress != "" {
		address = bridgeAddress
	}

	opts := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	actor, err := common.DetectActor()
	if err != nil {
		logger.DebugKV(ctx, "Unable to detect actor", "error", err)
	} else {
		opts = append(opts, common.WithActor(actor))
	}

	return common.Dial(ctx, address, opts...)
}

// withBridge runs fn against a fresh connection.
func withBridge(cmd *cobra.Command, fn func(ctx context.Context, c *common.Client) error) error {
	ctx := cmd.Context()

	c, err := dialBridge(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = c.Close()
	}()

	return fn(ctx, c)
}

// remoteCommand adds the --address flag shared by commands talking to a bridge.
func remoteCommand(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringVarP(&bridgeAddress, "address", "a", "", "bridge address (overrides config)")

	return cmd
}

// parseEventValue reads a scalar or list the way YAML does; empty means no value.
func parseEventValue(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil //nolint:nilnil // No value is a valid event payload.
	}

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", raw, err)
	}

	return value, nil
}

func printSnapshot(cmd *cobra.Command, snapshot *board.Snapshot) error {
	doc, err := state.ToStruct(snapshot)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return err
}

func newSendEventCommand() *cobra.Command {
	return remoteCommand(&cobra.Command{
		Use:   "send-event <name> [value]",
		Short: "Send an input event to the running program.",
		Long: fmt.Sprintf(`Relays an input event to the program running in the bridge.

Known events: %s.
The value is parsed as YAML, so true, 25.5 and [0, 9.8, 0] keep their types.`,
			strings.Join(eventNames(), ", ")),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, ok := board.ParseEvent(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", runner.ErrUnknownEvent, args[0])
			}

			var raw string
			if len(args) > 1 {
				raw = args[1]
			}

			value, err := parseEventValue(raw)
			if err != nil {
				return err
			}

			return withBridge(cmd, func(ctx context.Context, c *common.Client) error {
				return c.SendEvent(ctx, event, value)
			})
		},
	})
}

func newStateCommand() *cobra.Command {
	return remoteCommand(&cobra.Command{
		Use:   "state",
		Short: "Print the active device and the last board state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBridge(cmd, func(ctx context.Context, c *common.Client) error {
				snapshot, err := c.GetState(ctx)
				if err != nil {
					return err
				}

				return printSnapshot(cmd, snapshot)
			})
		},
	})
}

func newSetDeviceCommand() *cobra.Command {
	return remoteCommand(&cobra.Command{
		Use:   "set-device <device>",
		Short: "Switch the device the bridge drives (CPX or micro:bit).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd, func(ctx context.Context, c *common.Client) error {
				snapshot, err := c.SetActiveDevice(ctx, args[0])
				if err != nil {
					return err
				}

				return printSnapshot(cmd, snapshot)
			})
		},
	})
}

func newStopCommand() *cobra.Command {
	return remoteCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the program running in the bridge.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBridge(cmd, func(ctx context.Context, c *common.Client) error {
				return c.Stop(ctx)
			})
		},
	})
}

func newMountCommand() *cobra.Command {
	return remoteCommand(&cobra.Command{
		Use:   "mount",
		Short: "Ask the bridge where the CIRCUITPY drive is mounted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBridge(cmd, func(ctx context.Context, c *common.Client) error {
				path, err := c.Mount(ctx)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), path)

				return err
			})
		},
	})
}

func eventNames() []string {
	events := board.AllExpectedInputEvents()

	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}

	return names
}
