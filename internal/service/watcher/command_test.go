package watcher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/cpx-bridge/internal/domain/board"
	"github.com/oshokin/cpx-bridge/internal/domain/host"
)

var errTestUnavailable = errors.New("bridge unavailable")

// scriptedGetter replays snapshots and cancels once they run out.
type scriptedGetter struct {
	mu      sync.Mutex
	replies []func() (*board.Snapshot, error)
	cancel  context.CancelFunc
}

// GetState implements StateGetter.
func (s *scriptedGetter) GetState(context.Context) (*board.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.replies) == 0 {
		s.cancel()
		return nil, context.Canceled
	}

	next := s.replies[0]
	s.replies = s.replies[1:]

	return next()
}

func snapshotWith(redLED bool) func() (*board.Snapshot, error) {
	return func() (*board.Snapshot, error) {
		state := board.NewState()
		state.RedLED = redLED

		return &board.Snapshot{Device: host.CPX, State: state}, nil
	}
}

// TestWatch_PrintsOnlyChanges skips repeated states and survives failed polls.
func TestWatch_PrintsOnlyChanges(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	getter := &scriptedGetter{
		cancel: cancel,
		replies: []func() (*board.Snapshot, error){
			snapshotWith(false),
			snapshotWith(false),
			func() (*board.Snapshot, error) { return nil, errTestUnavailable },
			snapshotWith(true),
		},
	}

	var out bytes.Buffer

	err := Watch(ctx, getter, &Options{PollInterval: time.Millisecond, Output: &out})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "red_led=off")
	require.Contains(t, lines[1], "red_led=on")
	require.True(t, strings.HasPrefix(lines[1], host.CPX+" brightness="))
}

// TestChanged compares device and board state.
func TestChanged(t *testing.T) {
	t.Parallel()

	a, _ := snapshotWith(false)()
	b, _ := snapshotWith(false)()

	require.True(t, changed(nil, a))
	require.False(t, changed(a, b))

	b.State.Pixels[3] = board.RGB(0, 0, 255)
	require.True(t, changed(a, b))

	c, _ := snapshotWith(false)()
	c.Device = host.Microbit
	require.True(t, changed(a, c))
}
