package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"

	"google.golang.org/grpc"

	api "github.com/oshokin/cpx-bridge/internal/api/grpc/bridge"
	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/logger"
	"github.com/oshokin/cpx-bridge/internal/relay"
	repository "github.com/oshokin/cpx-bridge/internal/repository/state"
	"github.com/oshokin/cpx-bridge/internal/service/device"
	"github.com/oshokin/cpx-bridge/internal/service/runner"
	"github.com/oshokin/cpx-bridge/internal/telemetry"
)

// Options controls the bridge server process.
type Options struct {
	// ConfigPath is the settings YAML file.
	ConfigPath string
	// ListenAddress overrides the loopback address derived from the port setting.
	ListenAddress string
	// StateFile overrides the state_file setting.
	StateFile string
	// File, when set, is executed in the simulator as soon as the server listens.
	File string
	// Ready, when set, receives the bound address once the server listens.
	Ready chan<- string
}

// Run serves the bridge until ctx is canceled.
//
//nolint:funlen // Wires every optional component.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "cpx-bridge")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	stateFile := cfg.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	listenAddress := cfg.Address()
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	metrics := telemetry.New()

	detector := device.NewDetector(device.WithTimeout(cfg.Timeout))

	deps := dependencies{
		repo:     repository.NewFileRepository(stateFile),
		detector: detector,
		metrics:  metrics,
		simulator: runner.Options{
			Python:     cfg.Python,
			PythonLibs: cfg.PythonLibs,
			// The PID marker lives next to the state it belongs to.
			MarkerFile: filepath.Join(filepath.Dir(stateFile), runner.DefaultMarkerFilename),
		},
	}

	if cfg.MQTT.URL != "" {
		publisher, err := relay.Connect(ctx, cfg.MQTT)
		if err != nil {
			// The mirror is optional; the bridge keeps serving without it.
			logger.WarnKV(ctx, "MQTT mirror disabled", "error", err)
		} else {
			defer publisher.Close()

			deps.mirror = publisher
		}
	}

	svc, err := newService(ctx, cfg.ActiveDevice, deps)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	defer svc.Close(context.WithoutCancel(ctx))

	if cfg.EnableTelemetry {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddress); err != nil {
				logger.ErrorKV(ctx, "Telemetry stopped", "error", err)
			}
		}()
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnknownServiceHandler(api.UnknownMethodHandler),
		grpc.UnaryInterceptor(api.LoggingInterceptor),
	)
	api.RegisterBridgeServer(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Bridge listening",
		"listen_address", lis.Addr().String(),
		"active_device", cfg.ActiveDevice,
		"platform", detector.Platform(),
		"state_file", stateFile,
		"enable_telemetry", cfg.EnableTelemetry)

	if opts.File != "" {
		if err = svc.Exec(ctx, opts.File); err != nil {
			_ = lis.Close()

			return err
		}
	}

	if opts.Ready != nil {
		opts.Ready <- lis.Addr().String()
	}

	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down bridge")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Bridge stopped")

	return nil
}
