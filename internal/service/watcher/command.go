package watcher

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/logger"
	"github.com/oshokin/cpx-bridge/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional bridge address override.
	ServerAddress string
	// PollInterval defines the interval between state checks.
	PollInterval time.Duration
	// Output receives one line per observed state change.
	Output io.Writer
}

// DefaultPollInterval is ten simulator ticks.
const DefaultPollInterval = 10 * board.TimeDelay

// StateGetter reads the board snapshot from a bridge.
type StateGetter interface {
	GetState(ctx context.Context) (*board.Snapshot, error)
}

// Run polls the bridge and prints the board state whenever it changes.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "watcher")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Determine bridge address: command line argument overrides config.
	serverAddress := cfg.Address()
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	dialOpts := []common.Option{common.WithCallTimeout(cfg.Timeout)}
	if actor, err := common.DetectActor(); err == nil {
		dialOpts = append(dialOpts, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, serverAddress, dialOpts...)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching board state", "server_address", serverAddress, "interval", opts.PollInterval.String())

	return Watch(ctx, client, opts)
}

// Watch polls getter until ctx is canceled. Failed polls are logged and retried.
func Watch(ctx context.Context, getter StateGetter, opts *Options) error {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *board.Snapshot

	for {
		snapshot, err := getter.GetState(ctx)

		switch {
		case err != nil:
			logger.ErrorKV(ctx, "Get state failed", "error", err)
		case changed(last, snapshot):
			last = snapshot

			if opts.Output != nil {
				if _, err = fmt.Fprintln(opts.Output, formatSnapshot(snapshot)); err != nil {
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}
	}
}

// changed reports whether next differs from prev in device or board state.
func changed(prev, next *board.Snapshot) bool {
	if prev == nil {
		return true
	}

	return prev.Device != next.Device || *prev.State != *next.State
}

// formatSnapshot renders a snapshot as one readable line.
func formatSnapshot(s *board.Snapshot) string {
	led := "off"
	if s.State.RedLED {
		led = "on"
	}

	return fmt.Sprintf("%s brightness=%.2f red_led=%s pixels=%v", s.Device, s.State.Brightness, led, s.State.Pixels)
}
