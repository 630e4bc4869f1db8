// Package metrics exposes Prometheus metrics for the supervisor.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

// Metrics holds all Prometheus metrics for duovisor.
type Metrics struct {
	ChildSpawns *prometheus.CounterVec
	SpawnErrors *prometheus.CounterVec
	ChildExits  *prometheus.CounterVec
	Shutdowns   *prometheus.CounterVec
	State       prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ChildSpawns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "duovisor",
				Name:      "child_spawns_total",
				Help:      "Total number of child processes spawned",
			},
			[]string{"role"},
		),
		SpawnErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "duovisor",
				Name:      "spawn_errors_total",
				Help:      "Total number of child spawn failures",
			},
			[]string{"role"},
		),
		ChildExits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "duovisor",
				Name:      "child_exits_total",
				Help:      "Total number of child exits",
			},
			[]string{"role", "reason"}, // reason=exit/signal
		),
		Shutdowns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "duovisor",
				Name:      "shutdowns_total",
				Help:      "Shutdown sequences started, by triggering event",
			},
			[]string{"trigger"},
		),
		State: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "duovisor",
				Name:      "state",
				Help:      "Current supervisor state (0=starting 1=primary_running 2=both_running 3=shutting_down 4=terminated)",
			},
		),
	}
}

// ObserveSpawn records a successful spawn.
func (m *Metrics) ObserveSpawn(role supervisor.Role) {
	m.ChildSpawns.WithLabelValues(string(role)).Inc()
}

// ObserveSpawnError records a failed spawn.
func (m *Metrics) ObserveSpawnError(role supervisor.Role) {
	m.SpawnErrors.WithLabelValues(string(role)).Inc()
}

// ObserveExit records a child exit.
func (m *Metrics) ObserveExit(role supervisor.Role, status supervisor.ExitStatus) {
	reason := "exit"
	if status.Signal != "" {
		reason = "signal"
	}
	m.ChildExits.WithLabelValues(string(role), reason).Inc()
}

// ObserveShutdown records the start of the shutdown sequence.
func (m *Metrics) ObserveShutdown(trigger supervisor.EventKind) {
	m.Shutdowns.WithLabelValues(trigger.String()).Inc()
}

// ObserveState records a state transition.
func (m *Metrics) ObserveState(s supervisor.State) {
	m.State.Set(float64(s))
}

// Server serves /metrics on its own listener.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server for the given gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in the background. Listen errors are logged, not fatal.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics listener started", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics listener failed", "addr", s.srv.Addr, "error", err)
		}
	}()
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
