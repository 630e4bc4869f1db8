package metrics

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Sentinel-Gate/duovisor/internal/domain/supervisor"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.ChildSpawns == nil || m.SpawnErrors == nil || m.ChildExits == nil || m.Shutdowns == nil || m.State == nil {
		t.Fatal("NewMetrics left a metric uninitialized")
	}
}

func TestMetricsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveSpawn(supervisor.RolePrimary)
	m.ObserveSpawn(supervisor.RolePrimary)
	m.ObserveSpawnError(supervisor.RoleSecondary)
	m.ObserveExit(supervisor.RolePrimary, supervisor.ExitStatus{Code: 3})
	m.ObserveExit(supervisor.RoleSecondary, supervisor.ExitStatus{Code: -1, Signal: "terminated"})
	m.ObserveShutdown(supervisor.EventSignalReceived)
	m.ObserveState(supervisor.StateShuttingDown)

	if got := testutil.ToFloat64(m.ChildSpawns.WithLabelValues("primary")); got != 2 {
		t.Errorf("child_spawns_total{primary} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SpawnErrors.WithLabelValues("secondary")); got != 1 {
		t.Errorf("spawn_errors_total{secondary} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ChildExits.WithLabelValues("primary", "exit")); got != 1 {
		t.Errorf("child_exits_total{primary,exit} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ChildExits.WithLabelValues("secondary", "signal")); got != 1 {
		t.Errorf("child_exits_total{secondary,signal} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Shutdowns.WithLabelValues("signal_received")); got != 1 {
		t.Errorf("shutdowns_total{signal_received} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.State); got != float64(supervisor.StateShuttingDown) {
		t.Errorf("state = %v, want %v", got, float64(supervisor.StateShuttingDown))
	}
}

func TestServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveSpawn(supervisor.RoleSecondary)

	srv := NewServer("127.0.0.1:0", reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `duovisor_child_spawns_total{role="secondary"} 1`) {
		t.Errorf("metrics output missing spawn counter:\n%s", rec.Body.String())
	}
}
