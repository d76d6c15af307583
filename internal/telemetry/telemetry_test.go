package telemetry

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestMetrics_CountAndExpose increments collectors and scrapes the handler.
func TestMetrics_CountAndExpose(t *testing.T) {
	t.Parallel()

	m := New()

	m.EventsRelayed.WithLabelValues("button_a").Inc()
	m.EventsRelayed.WithLabelValues("button_a").Inc()
	m.Executions.WithLabelValues(Result(errors.New("boom"))).Inc()
	m.SimulatorRunning.Set(1)

	require.InDelta(t, 2, testutil.ToFloat64(m.EventsRelayed.WithLabelValues("button_a")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.Executions.WithLabelValues(ResultError)), 0)
	require.Equal(t, ResultOK, Result(nil))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL) //nolint:noctx // Test server.
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `cpx_bridge_events_relayed_total{event="button_a"} 2`)
	require.Contains(t, string(body), "cpx_bridge_simulator_running 1")
}
