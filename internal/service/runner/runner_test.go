package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
)

const echoProgram = `import json, sys
print("hello")
for line in sys.stdin:
    msg = json.loads(line)
    if msg["event"] == "button_a":
        print(json.dumps({"state": {"pixels": [[255, 0, 0]], "red_led": msg["value"]}}))
    if msg["event"] == "switch":
        break
`

// lookupPython skips tests that need a real interpreter when none is installed.
func lookupPython(t *testing.T) string {
	t.Helper()

	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 is not installed")
	}

	return python
}

func writeProgram(t *testing.T, source string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "code.py")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o600))

	return path
}

// TestStart_RelaysEventsAndStates runs a program that answers button_a with a state report.
func TestStart_RelaysEventsAndStates(t *testing.T) {
	t.Parallel()

	python := lookupPython(t)

	var (
		outputs = make(chan string, 4)
		states  = make(chan *board.State, 4)
		marker  = filepath.Join(t.TempDir(), "sim.pid")
	)

	p, err := Start(context.Background(), &Options{
		File:       writeProgram(t, echoProgram),
		Python:     python,
		MarkerFile: marker,
		OnState:    func(_ context.Context, s *board.State) { states <- s },
		OnOutput:   func(_ context.Context, line string) { outputs <- line },
	})
	require.NoError(t, err)

	select {
	case line := <-outputs:
		require.Equal(t, "hello", line)
	case <-time.After(10 * time.Second):
		t.Fatal("no program output")
	}

	_, err = os.Stat(marker)
	require.NoError(t, err)

	require.NoError(t, p.SendEvent(board.EventButtonA, true))

	select {
	case s := <-states:
		require.Equal(t, board.Color(0xFF0000), s.Pixels[0])
		require.True(t, s.RedLED)
	case <-time.After(10 * time.Second):
		t.Fatal("no state report")
	}

	require.True(t, p.State().RedLED)

	err = p.SendEvent("button_c", true)
	require.ErrorIs(t, err, ErrUnknownEvent)

	require.NoError(t, p.SendEvent(board.EventSwitch, true))
	require.NoError(t, p.Wait())

	err = p.SendEvent(board.EventButtonB, true)
	require.ErrorIs(t, err, host.ErrSendingEvent)
	require.True(t, strings.HasPrefix(err.Error(), host.ErrorSendingEvent))

	_, err = os.Stat(marker)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestStart_ReportsTraceback attaches stderr to a failed run.
func TestStart_ReportsTraceback(t *testing.T) {
	t.Parallel()

	python := lookupPython(t)

	p, err := Start(context.Background(), &Options{
		File:       writeProgram(t, "raise ValueError('boom')\n"),
		Python:     python,
		MarkerFile: filepath.Join(t.TempDir(), "sim.pid"),
	})
	require.NoError(t, err)

	err = p.Wait()

	var traceback *host.TracebackError

	require.ErrorAs(t, err, &traceback)
	require.Contains(t, traceback.Traceback, "ValueError: boom")
	require.Contains(t, err.Error(), host.ErrorTraceback)
}

// TestStart_Stop kills a program that never exits.
func TestStart_Stop(t *testing.T) {
	t.Parallel()

	python := lookupPython(t)

	p, err := Start(context.Background(), &Options{
		File:       writeProgram(t, "import time\nwhile True:\n    time.sleep(1)\n"),
		Python:     python,
		MarkerFile: filepath.Join(t.TempDir(), "sim.pid"),
	})
	require.NoError(t, err)
	require.NoError(t, p.Stop())

	select {
	case <-p.Done():
	default:
		t.Fatal("simulator still running after Stop")
	}

	require.NoError(t, p.Wait())
}

// TestStart_RequiresFile rejects an empty program path.
func TestStart_RequiresFile(t *testing.T) {
	t.Parallel()

	_, err := Start(context.Background(), &Options{})
	require.ErrorIs(t, err, host.ErrNoFile)

	_, err = Start(context.Background(), nil)
	require.ErrorIs(t, err, host.ErrNoFile)
}

// TestDecodeState recognizes state lines only.
func TestDecodeState(t *testing.T) {
	t.Parallel()

	update, ok := decodeState(`{"state": {"brightness": 0.25}}`)
	require.True(t, ok)
	require.InDelta(t, 0.25, update[board.FieldBrightness], 1e-9)

	for _, line := range []string{"hello", `{"other": 1}`, `{"state": 3}`, `{broken`} {
		_, ok = decodeState(line)
		require.False(t, ok, line)
	}
}

// TestEncodeEvent produces one JSON line per event.
func TestEncodeEvent(t *testing.T) {
	t.Parallel()

	line, err := EncodeEvent(board.EventTemperature, 21.5)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(line), "\n"))
	require.Equal(t, 1, strings.Count(string(line), "\n"))
	require.Contains(t, string(line), `"temperature"`)
	require.Contains(t, string(line), "21.5")

	_, err = EncodeEvent(board.EventTouch, struct{}{})
	require.Error(t, err)
}

// TestSimulatorEnv prepends the library directory to PYTHONPATH.
func TestSimulatorEnv(t *testing.T) {
	t.Parallel()

	sep := string(os.PathListSeparator)

	env := simulatorEnv([]string{"HOME=/home/maker", "PYTHONPATH=/opt/site", "PYTHONIOENCODING=latin-1"}, "libs")
	require.Equal(t, []string{
		"HOME=/home/maker",
		"PYTHONPATH=libs" + sep + "/opt/site",
		"PYTHONIOENCODING=utf-8",
	}, env)

	env = simulatorEnv([]string{"PYTHONPATH=/opt/site"}, "")
	require.Equal(t, []string{"PYTHONPATH=/opt/site", "PYTHONIOENCODING=utf-8"}, env)

	env = simulatorEnv(nil, "libs")
	require.Equal(t, []string{"PYTHONPATH=libs", "PYTHONIOENCODING=utf-8"}, env)
}

// TestLimitedBuffer keeps only the head of the stream.
func TestLimitedBuffer(t *testing.T) {
	t.Parallel()

	b := &limitedBuffer{limit: 4}

	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = b.Write([]byte("defg"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "abcd", b.String())
}

// TestTerminateStale ignores markers that do not point at an interpreter.
func TestTerminateStale(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := filepath.Join(dir, "sim.pid")

	require.NoError(t, terminateStale(context.Background(), marker, "python3"))

	// Our own PID is never killed.
	require.NoError(t, writeMarker(marker, os.Getpid()))
	require.NoError(t, terminateStale(context.Background(), marker, "python3"))

	require.NoError(t, os.WriteFile(marker, []byte("garbage"), 0o600))
	require.NoError(t, terminateStale(context.Background(), marker, "python3"))

	_, err := os.Stat(marker)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.Equal(t, "python3", interpreterName(filepath.Join("bin", "python3.exe")))
}
