// Package telemetry counts what the bridge relays and, when the
// enable_telemetry setting is on, serves the counters to Prometheus.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/cpx-bridge/internal/logger"
)

const (
	metricsNamespace = "cpx_bridge"
	metricsPath      = "/metrics"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second

	// Result label values.
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the bridge collectors.
type Metrics struct {
	registry *prometheus.Registry

	EventsRelayed    *prometheus.CounterVec
	EventSendErrors  prometheus.Counter
	StateUpdates     prometheus.Counter
	Executions       *prometheus.CounterVec
	Detections       *prometheus.CounterVec
	SimulatorRunning prometheus.Gauge
}

// New registers the bridge collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "events",
			Name:      "relayed_total",
			Help:      "Input events relayed to the simulator.",
		}, []string{"event"}),
		EventSendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "events",
			Name:      "send_errors_total",
			Help:      "Input events that could not be written to the simulator.",
		}),
		StateUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "simulator",
			Name:      "state_updates_total",
			Help:      "Board state reports accepted from the simulator.",
		}),
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "simulator",
			Name:      "executions_total",
			Help:      "User programs started in the simulator.",
		}, []string{"result"}),
		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "device",
			Name:      "detections_total",
			Help:      "Device drive detection attempts.",
		}, []string{"result"}),
		SimulatorRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "simulator",
			Name:      "running",
			Help:      "1 while a user program runs in the simulator.",
		}),
	}
}

// Result maps an error onto a result label value.
func Result(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultOK
}

// Gatherer exposes the registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on address until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, address string) error {
	ctx = logger.WithName(ctx, "telemetry")

	mux := http.NewServeMux()
	mux.Handle(metricsPath, m.Handler())

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.InfoKV(ctx, "Serving metrics", "address", lis.Addr().String(), "path", metricsPath)

	if err = srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}

	return nil
}
