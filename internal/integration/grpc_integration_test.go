package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/cpx-bridge/internal/api/grpc/bridge"
	"github.com/oshokin/cpx-bridge/internal/config"
	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
	"github.com/oshokin/cpx-bridge/internal/repository/state"
	"github.com/oshokin/cpx-bridge/internal/service/common"
	"github.com/oshokin/cpx-bridge/internal/service/server"
)

// simulatorProgram reports a state on start and lights the red LED on button_a.
const simulatorProgram = `import json, sys
print(json.dumps({"state": {"red_led": False}}), flush=True)
print("ready", flush=True)
for line in sys.stdin:
    msg = json.loads(line)
    if msg.get("event") == "button_a" and msg.get("value"):
        print(json.dumps({"state": {"red_led": True, "pixels": [[255, 0, 0]]}}), flush=True)
`

// startBridge runs the real bridge on a free loopback port with a temporary config.
// Returns the bound address and a stop function that waits for shutdown.
func startBridge(t *testing.T, python, statePath, file string) (addr string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := config.Default()
	cfg.Timeout = 5 * time.Second
	cfg.PythonLibs = t.TempDir()

	if python != "" {
		cfg.Python = python
	}

	require.NoError(t, config.Save(cfgPath, cfg))

	ready := make(chan string, 1)
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:    cfgPath,
			ListenAddress: "127.0.0.1:0",
			StateFile:     statePath,
			File:          file,
			Ready:         ready,
		})
	}()

	select {
	case addr = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("bridge exited early: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("bridge did not start")
	}

	return addr, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func dial(t *testing.T, addr string) *common.Client {
	t.Helper()

	c, err := common.Dial(context.Background(), addr,
		common.WithCallTimeout(5*time.Second),
		common.WithActor(&common.Actor{Hostname: "test-host", Username: "test-user"}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

// TestGRPC_Roundtrip exercises state, device switching and error codes against the real server.
func TestGRPC_Roundtrip(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.json")

	addr, stop := startBridge(t, "", statePath, "")
	c := dial(t, addr)
	ctx := context.Background()

	snapshot, err := c.GetState(ctx)
	require.NoError(t, err)
	require.Equal(t, host.CPX, snapshot.Device)
	require.InDelta(t, board.DefaultBrightness, snapshot.State.Brightness, 0)

	_, err = c.SetActiveDevice(ctx, "arduino")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	snapshot, err = c.SetActiveDevice(ctx, host.Microbit)
	require.NoError(t, err)
	require.Equal(t, host.Microbit, snapshot.Device)

	err = c.SendEvent(ctx, board.EventButtonA, true)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	err = c.SendEvent(ctx, "button_c", true)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	err = c.Exec(ctx, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, host.ErrorNoFile, status.Convert(err).Message())

	err = c.Stop(ctx)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	stop()

	// The device switch survived on disk.
	persisted, err := state.NewFileRepository(statePath).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, host.Microbit, persisted.Device)
}

// TestGRPC_UnknownMethod answers unknown commands with NotImplementedError.
func TestGRPC_UnknownMethod(t *testing.T) {
	t.Parallel()

	addr, stop := startBridge(t, "", filepath.Join(t.TempDir(), "state.json"), "")
	defer stop()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	_, err = api.Invoke(context.Background(), conn, "Reset", nil)
	require.Equal(t, codes.Unimplemented, status.Code(err))
	require.Equal(t, host.NotImplementedError, status.Convert(err).Message())
}

// TestGRPC_SimulatorEvents runs a program, relays an event and reads the reported state.
func TestGRPC_SimulatorEvents(t *testing.T) {
	t.Parallel()

	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 is not installed")
	}

	program := filepath.Join(t.TempDir(), "code.py")
	require.NoError(t, os.WriteFile(program, []byte(simulatorProgram), 0o600))

	statePath := filepath.Join(t.TempDir(), "state.json")

	addr, stop := startBridge(t, python, statePath, program)
	defer stop()

	c := dial(t, addr)
	ctx := context.Background()

	// The program reports its first state once it is reading events.
	require.Eventually(t, func() bool {
		_, statErr := os.Stat(statePath)
		return statErr == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, c.SendEvent(ctx, board.EventButtonA, true))

	require.Eventually(t, func() bool {
		snapshot, getErr := c.GetState(ctx)
		return getErr == nil && snapshot.State.RedLED && snapshot.State.Pixels[0] == board.RGB(255, 0, 0)
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, c.Stop(ctx))
}
