package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLevel maps level names and rejects unknown ones.
func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"fatal":  zapcore.FatalLevel,
		"dpanic": zapcore.DPanicLevel,
	}

	for s, want := range cases {
		got, ok := ParseLevel(s)
		require.True(t, ok, s)
		require.Equal(t, want, got, s)
	}

	_, ok := ParseLevel("loud")
	require.False(t, ok)
}

// TestContextLogger ensures names and fields travel with the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf, zapcore.DebugLevel))
	ctx = WithName(ctx, "runner")
	ctx = WithKV(ctx, "device", "CPX")

	InfoKV(ctx, "Event relayed", "event", "button_a")

	out := buf.String()
	require.Contains(t, out, "runner")
	require.Contains(t, out, "Event relayed")
	require.Contains(t, out, `"device": "CPX"`)
	require.Contains(t, out, `"event": "button_a"`)

	require.Same(t, Logger(), FromContext(context.Background()))
}
