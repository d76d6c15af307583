package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseEventValue keeps the YAML type of the value.
func TestParseEventValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want any
	}{
		{raw: "", want: nil},
		{raw: "true", want: true},
		{raw: "25", want: 25},
		{raw: "25.5", want: 25.5},
		{raw: "left", want: "left"},
		{raw: "[0, 9.8, 0]", want: []any{0, 9.8, 0}},
	}

	for _, tt := range tests {
		got, err := parseEventValue(tt.raw)
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}

	_, err := parseEventValue("[unclosed")
	require.Error(t, err)
}

// TestRootCommand_Subcommands registers every command.
func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"serve", "run", "deploy", "detect", "send-event", "state", "set-device", "exec", "stop", "mount", "watch", "version",
	} {
		found, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, found.Name())
	}

	require.Len(t, eventNames(), 10)
}
