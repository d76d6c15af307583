package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/logger"
)

const (
	eventField = "event"
	valueField = "value"

	// maxLineSize bounds one stdout line of the simulator.
	maxLineSize = 1 << 20
	// maxTracebackSize bounds the stderr kept for error reports.
	maxTracebackSize = 64 << 10
)

var (
	// ErrUnknownEvent is returned for event names outside the expected input set.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrNotRunning is returned when the simulator has already exited.
	ErrNotRunning = errors.New("simulator is not running")
)

// StateFunc receives every board state reported by the simulator.
type StateFunc func(ctx context.Context, state *board.State)

// OutputFunc receives program output lines.
type OutputFunc func(ctx context.Context, line string)

// Options configures a simulator run.
type Options struct {
	// File is the user program.
	File string
	// Python is the interpreter, python3 when empty.
	Python string
	// PythonLibs is prepended to PYTHONPATH.
	PythonLibs string
	// MarkerFile records the simulator PID; DefaultMarkerFilename when empty.
	MarkerFile string
	// OnState is called for every state report.
	OnState StateFunc
	// OnOutput is called for every other stdout line.
	OnOutput OutputFunc
}

// Process is a running simulator.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	marker string

	// writeMu serializes event lines on stdin.
	writeMu sync.Mutex

	// stateMu guards state.
	stateMu sync.RWMutex
	state   *board.State

	stderr *limitedBuffer
	done   chan struct{}
	err    error

	// stopped is set by Stop; a killed program is not a failure.
	stopped atomic.Bool
}

// Start launches opts.File in the simulator. The process is killed when ctx is canceled.
func Start(ctx context.Context, opts *Options) (*Process, error) {
	if opts == nil || strings.TrimSpace(opts.File) == "" {
		return nil, host.ErrNoFile
	}

	ctx = logger.WithKV(logger.WithName(ctx, "simulator"), "file", opts.File)

	python := opts.Python
	if python == "" {
		python = "python3"
	}

	marker := opts.MarkerFile
	if marker == "" {
		marker = DefaultMarkerFilename
	}

	if err := terminateStale(ctx, marker, python); err != nil {
		logger.WarnKV(ctx, "Unable to terminate stale simulator", "error", err)
	}

	//nolint:gosec // Running user code is the purpose of the simulator.
	cmd := exec.CommandContext(ctx, python, "-u", filepath.Clean(opts.File))
	cmd.Env = simulatorEnv(os.Environ(), opts.PythonLibs)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		marker: marker,
		state:  board.NewState(),
		stderr: &limitedBuffer{limit: maxTracebackSize},
		done:   make(chan struct{}),
	}

	cmd.Stderr = p.stderr

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("start simulator: %w", err)
	}

	if err = writeMarker(marker, cmd.Process.Pid); err != nil {
		logger.WarnKV(ctx, "Unable to write simulator marker", "error", err)
	}

	logger.InfoKV(ctx, "Simulator started", "pid", cmd.Process.Pid, "python", python)

	go p.wait(ctx, stdout, opts.OnState, opts.OnOutput)

	return p, nil
}

// simulatorEnv returns env with the board library on PYTHONPATH and UTF-8 streams.
func simulatorEnv(env []string, libs string) []string {
	result := make([]string, 0, len(env)+3)
	pythonPath := libs

	for _, kv := range env {
		if existing, ok := strings.CutPrefix(kv, "PYTHONPATH="); ok {
			if existing != "" && libs != "" {
				pythonPath = libs + string(os.PathListSeparator) + existing
			} else if libs == "" {
				pythonPath = existing
			}

			continue
		}

		if strings.HasPrefix(kv, "PYTHONIOENCODING=") {
			continue
		}

		result = append(result, kv)
	}

	if pythonPath != "" {
		result = append(result, "PYTHONPATH="+pythonPath)
	}

	return append(result, "PYTHONIOENCODING="+host.UTFFormat)
}

// wait reads stdout until EOF, then reaps the process.
func (p *Process) wait(ctx context.Context, stdout io.Reader, onState StateFunc, onOutput OutputFunc) {
	defer close(p.done)
	defer removeMarker(p.marker)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()

		update, ok := decodeState(line)
		if !ok {
			if onOutput != nil {
				onOutput(ctx, line)
			}

			continue
		}

		state, err := p.applyState(update)
		if err != nil {
			logger.WarnKV(ctx, "Rejected simulator state", "error", err)
			continue
		}

		if onState != nil {
			onState(ctx, state)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.WarnKV(ctx, "Simulator output interrupted", "error", err)
	}

	err := p.cmd.Wait()
	if err != nil && ctx.Err() == nil && !p.stopped.Load() {
		p.err = &host.TracebackError{Err: err, Traceback: p.stderr.String()}
		logger.ErrorKV(ctx, "Simulator failed", "error", p.err)

		return
	}

	logger.Info(ctx, "Simulator exited")
}

// decodeState recognizes {"state": {...}} lines.
func decodeState(line string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var msg structpb.Struct
	if err := protojson.Unmarshal([]byte(trimmed), &msg); err != nil {
		return nil, false
	}

	state := msg.GetFields()[host.StateField].GetStructValue()
	if state == nil {
		return nil, false
	}

	return state.AsMap(), true
}

func (p *Process) applyState(update map[string]any) (*board.State, error) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if err := p.state.ApplyUpdate(update); err != nil {
		return nil, err
	}

	return p.state.Clone(), nil
}

// State returns the last board state reported by the simulator.
func (p *Process) State() *board.State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	return p.state.Clone()
}

// SendEvent relays an input event to the simulator as one JSON line.
func (p *Process) SendEvent(event board.Event, value any) error {
	if !event.IsExpected() {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}

	line, err := EncodeEvent(event, value)
	if err != nil {
		return &host.SendEventError{Err: err}
	}

	select {
	case <-p.done:
		return &host.SendEventError{Err: ErrNotRunning}
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err = p.stdin.Write(line); err != nil {
		return &host.SendEventError{Err: err}
	}

	return nil
}

// EncodeEvent renders an event as a newline-terminated JSON object.
func EncodeEvent(event board.Event, value any) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]any{
		eventField: string(event),
		valueField: value,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	data, err := protojson.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	return append(data, '\n'), nil
}

// Done is closed once the simulator has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the simulator exits and returns its failure, if any.
func (p *Process) Wait() error {
	<-p.done

	return p.err
}

// Stop closes stdin and kills the simulator if it has not exited.
func (p *Process) Stop() error {
	p.stopped.Store(true)

	_ = p.stdin.Close()

	select {
	case <-p.done:
		return p.err
	default:
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill simulator: %w", err)
	}

	<-p.done

	return nil
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

// Write implements io.Writer and never fails, so the child never blocks on stderr.
func (b *limitedBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if room := b.limit - b.buf.Len(); room > 0 {
		b.buf.Write(data[:min(room, len(data))])
	}

	return len(data), nil
}

// String returns the captured bytes.
func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
