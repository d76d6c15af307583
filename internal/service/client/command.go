package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/logger"
	"github.com/oshokin/cpx-bridge/internal/service/common"
)

// Options configures how a program is pushed to the bridge.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides the bridge address from config when specified.
	ServerAddress string

	// File is the program to execute.
	File string

	// Wait keeps retrying while the bridge is unreachable.
	Wait bool
}

// defaultPushInterval defines retry delay when the bridge is unreachable.
const defaultPushInterval = 1 * time.Second

// Executor runs a program on a bridge.
type Executor interface {
	Exec(ctx context.Context, file string) error
}

// Run asks the bridge to execute opts.File, retrying while it is unreachable when opts.Wait is set.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "exec")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use bridge address from options if provided, otherwise use config.
	serverAddress := cfg.Address()
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	dialOpts := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	// Identify current user and hostname for the bridge log.
	if actor, err := common.DetectActor(); err == nil {
		dialOpts = append(dialOpts, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, serverAddress, dialOpts...)
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Pushing program", "server_address", serverAddress, "file", opts.File)

	return Push(ctx, client, opts, defaultPushInterval)
}

// Push executes opts.File on executor. Only Unavailable answers are retried,
// and only when opts.Wait is set. A relative file is resolved against the
// working directory first, since the bridge runs in another process.
func Push(ctx context.Context, executor Executor, opts *Options, interval time.Duration) error {
	file, err := common.AbsPath(opts.File)
	if err != nil {
		return err
	}

	// attempt tries once to start the program, returns (completed, error).
	attempt := func() (bool, error) {
		err := executor.Exec(ctx, file)
		if err == nil {
			logger.InfoKV(ctx, "Program started", "file", file)
			return true, nil
		}

		if opts.Wait && status.Code(err) == codes.Unavailable {
			// Log error but continue retrying while the bridge starts.
			logger.WarnKV(ctx, "Bridge unavailable, retrying", "error", err)
			return false, nil
		}

		return false, fmt.Errorf("push %s: %w", file, err)
	}

	// Attempt immediately before starting retry loop.
	if done, err := attempt(); err != nil || done {
		return err
	}

	// Setup retry timer for subsequent attempts.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Retry loop until success or cancellation.
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil || done {
				return err
			}
		}
	}
}
