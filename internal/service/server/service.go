package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/logger"
	repo "github.com/oshokin/cpx-bridge/internal/repository/state"
	"github.com/oshokin/cpx-bridge/internal/service/deployer"
	"github.com/oshokin/cpx-bridge/internal/service/runner"
	"github.com/oshokin/cpx-bridge/internal/telemetry"
)

// Simulator is a running user program.
type Simulator interface {
	SendEvent(event board.Event, value any) error
	Stop() error
	Wait() error
}

// StartFunc launches a simulator.
type StartFunc func(ctx context.Context, opts *runner.Options) (Simulator, error)

// Detector locates the device drive.
type Detector interface {
	Detect(ctx context.Context) (string, error)
}

// Mirror receives a copy of relayed events and board states.
type Mirror interface {
	PublishEvent(ctx context.Context, device string, event board.Event, value any) error
	PublishState(ctx context.Context, device string, state *board.State) error
}

// dependencies groups what the service is built from.
type dependencies struct {
	repo      repo.Repository
	detector  Detector
	deployer  *deployer.Deployer
	metrics   *telemetry.Metrics
	mirror    Mirror
	start     StartFunc
	simulator runner.Options
}

// service owns the board snapshot and the running simulator.
type service struct {
	dependencies

	// baseCtx outlives single RPCs; simulators are bound to it.
	baseCtx context.Context

	// execMu serializes program replacement.
	execMu sync.Mutex

	mu       sync.RWMutex
	snapshot *board.Snapshot
	process  Simulator
}

// startRunner adapts runner.Start to StartFunc.
func startRunner(ctx context.Context, opts *runner.Options) (Simulator, error) {
	process, err := runner.Start(ctx, opts)
	if err != nil {
		return nil, err
	}

	return process, nil
}

// newService restores the last snapshot, falling back to a fresh board on device.
func newService(ctx context.Context, device string, deps dependencies) (*service, error) {
	if deps.start == nil {
		deps.start = startRunner
	}

	if deps.metrics == nil {
		deps.metrics = telemetry.New()
	}

	if deps.detector != nil && deps.deployer == nil {
		deps.deployer = deployer.New(deps.detector)
	}

	s := &service{
		dependencies: deps,
		baseCtx:      ctx,
		snapshot: &board.Snapshot{
			Device:    device,
			State:     board.NewState(),
			Timestamp: time.Now(),
		},
	}

	if deps.repo == nil {
		return s, nil
	}

	snapshot, err := deps.repo.Load(ctx)
	switch {
	case err == nil:
		if snapshot != nil {
			// The configured device wins over the persisted one.
			snapshot.Device = device
			s.snapshot = snapshot
		}
	case errors.Is(err, repo.ErrNotFound):
		// Keep the fresh board.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return s, nil
}

// Snapshot returns a copy of the current board snapshot.
func (s *service) Snapshot(_ context.Context) *board.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot.Clone()
}

// SetActiveDevice switches the device key and persists it.
func (s *service) SetActiveDevice(ctx context.Context, device string) error {
	if !host.SupportedDevice(device) {
		return host.ErrDeviceNotImplemented
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Device = device

	logger.InfoKV(ctx, "Active device changed", host.ActiveDeviceField, device)

	return s.persistLocked(ctx)
}

// SendEvent relays an input event to the running simulator.
func (s *service) SendEvent(ctx context.Context, event board.Event, value any) error {
	if !event.IsExpected() {
		return fmt.Errorf("%w: %s", runner.ErrUnknownEvent, event)
	}

	s.mu.RLock()
	process, device := s.process, s.snapshot.Device
	s.mu.RUnlock()

	if process == nil {
		return runner.ErrNotRunning
	}

	if err := process.SendEvent(event, value); err != nil {
		s.metrics.EventSendErrors.Inc()
		logger.ErrorKV(ctx, "Unable to relay event", "event", event, "error", err)

		return err
	}

	s.metrics.EventsRelayed.WithLabelValues(string(event)).Inc()
	logger.DebugKV(ctx, "Event relayed", "event", event, "value", value)

	if s.mirror != nil {
		if err := s.mirror.PublishEvent(ctx, device, event, value); err != nil {
			logger.WarnKV(ctx, "Unable to mirror event", "event", event, "error", err)
		}
	}

	return nil
}

// Exec replaces the running program with file.
func (s *service) Exec(ctx context.Context, file string) error {
	if file == "" {
		return host.ErrNoFile
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	// The previous program is stopped without holding mu, its state
	// callbacks need it until the process is gone.
	if err := s.stopProcess(ctx); err != nil && !errors.Is(err, runner.ErrNotRunning) {
		logger.WarnKV(ctx, "Previous program stopped with error", "error", err)
	}

	opts := s.simulator
	opts.File = file
	opts.OnState = s.onState
	opts.OnOutput = onOutput

	process, err := s.start(s.baseCtx, &opts)
	s.metrics.Executions.WithLabelValues(telemetry.Result(err)).Inc()

	if err != nil {
		return fmt.Errorf("%s %s: %w", host.ExecCommand, file, err)
	}

	s.mu.Lock()
	s.process = process
	s.mu.Unlock()

	s.metrics.SimulatorRunning.Set(1)

	logger.InfoKV(ctx, "Program started", "file", file)

	go s.watch(process)

	return nil
}

// Stop terminates the running program.
func (s *service) Stop(ctx context.Context) error {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	return s.stopProcess(ctx)
}

func (s *service) stopProcess(ctx context.Context) error {
	s.mu.Lock()
	process := s.process
	s.process = nil
	s.mu.Unlock()

	if process == nil {
		return runner.ErrNotRunning
	}

	logger.Info(ctx, "Stopping program")

	return process.Stop()
}

// Mount detects the device drive.
func (s *service) Mount(ctx context.Context) (string, error) {
	if s.detector == nil {
		return "", host.ErrNotImplemented
	}

	path, err := s.detector.Detect(ctx)
	s.metrics.Detections.WithLabelValues(telemetry.Result(err)).Inc()

	return path, err
}

// Deploy copies file and libDir to the device drive.
func (s *service) Deploy(ctx context.Context, file, libDir string) ([]string, error) {
	if s.deployer == nil {
		return nil, host.ErrNotImplemented
	}

	result, err := s.deployer.Deploy(ctx, &deployer.Options{
		File:   file,
		LibDir: libDir,
		Device: s.Snapshot(ctx).Device,
	})
	if err != nil {
		return nil, err
	}

	return result.Files, nil
}

// Close stops the running program, if any.
func (s *service) Close(ctx context.Context) {
	if err := s.Stop(ctx); err != nil && !errors.Is(err, runner.ErrNotRunning) {
		logger.WarnKV(ctx, "Program stopped with error", "error", err)
	}
}

// watch clears the process slot once the program exits on its own.
func (s *service) watch(process Simulator) {
	ctx := s.baseCtx

	if err := process.Wait(); err != nil {
		logger.ErrorKV(ctx, "Program failed", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.process == process {
		s.process = nil
	}

	if s.process == nil {
		s.metrics.SimulatorRunning.Set(0)
	}
}

// onState records a state reported by the simulator.
func (s *service) onState(ctx context.Context, state *board.State) {
	s.mu.Lock()

	s.snapshot.State = state.Clone()
	s.snapshot.Timestamp = time.Now()
	device := s.snapshot.Device

	if err := s.persistLocked(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to persist board state", "error", err)
	}

	s.mu.Unlock()

	s.metrics.StateUpdates.Inc()

	if s.mirror != nil {
		if err := s.mirror.PublishState(ctx, device, state); err != nil {
			logger.WarnKV(ctx, "Unable to mirror state", "error", err)
		}
	}
}

func (s *service) persistLocked(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	if err := s.repo.Save(ctx, s.snapshot); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	return nil
}

// onOutput forwards program output to the log.
func onOutput(ctx context.Context, line string) {
	logger.InfoKV(ctx, "Program output", "line", line)
}
