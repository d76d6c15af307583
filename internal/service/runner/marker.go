package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/cpx-bridge/internal/logger"
)

// DefaultMarkerFilename records the PID of the running simulator.
const DefaultMarkerFilename = "cpx-bridge-simulator.pid"

const markerPermissions = 0o600

// readMarker returns the PID stored in the marker, or 0 when there is none.
func readMarker(path string) (int, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("read marker: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse marker: %w", err)
	}

	return pid, nil
}

func writeMarker(path string, pid int) error {
	return os.WriteFile(filepath.Clean(path), []byte(strconv.Itoa(pid)), markerPermissions)
}

func removeMarker(path string) {
	_ = os.Remove(filepath.Clean(path))
}

// interpreterName strips directories and the Windows extension from an interpreter path.
func interpreterName(python string) string {
	return strings.TrimSuffix(filepath.Base(python), ".exe")
}

// terminateStale kills a simulator left behind by a previous bridge run.
// The PID is only trusted when it still belongs to a process running the
// same interpreter, since PIDs are reused.
func terminateStale(ctx context.Context, markerPath, python string) error {
	pid, err := readMarker(markerPath)
	if err != nil {
		logger.WarnKV(ctx, "Ignoring unreadable simulator marker", "marker", markerPath, "error", err)
		removeMarker(markerPath)

		return nil
	}

	if pid == 0 || pid == os.Getpid() {
		return nil
	}

	defer removeMarker(markerPath)

	process, err := ps.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}

	if process == nil {
		return nil
	}

	if !strings.HasPrefix(strings.TrimSuffix(process.Executable(), ".exe"), interpreterName(python)) {
		logger.DebugKV(ctx, "Marker PID belongs to another program", "pid", pid, "executable", process.Executable())
		return nil
	}

	running, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}

	if err = running.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill stale simulator %d: %w", pid, err)
	}

	logger.InfoKV(ctx, "Stale simulator terminated", "pid", pid)

	return nil
}
