package server

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oakfield-energy/battery-dispatch/actuator"
	"github.com/oakfield-energy/battery-dispatch/config"
	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
	"github.com/oakfield-energy/battery-dispatch/orchestrator"
	"github.com/oakfield-energy/battery-dispatch/telemetry"
)

func TestNewDisabledWhenPortNonPositive(t *testing.T) {
	if s := New(nil, 0); s != nil {
		t.Errorf("New with port 0 = %v, want nil", s)
	}
	if s := New(nil, -1); s != nil {
		t.Errorf("New with negative port = %v, want nil", s)
	}
}

func TestNilServerMethodsAreNoops(t *testing.T) {
	var s *Server
	if err := s.Start(); err != nil {
		t.Errorf("Start on nil server: %v", err)
	}
	if err := s.Stop(nil); err != nil {
		t.Errorf("Stop on nil server: %v", err)
	}
	s.Broadcast() // must not panic
}

func newTestScheduler(t *testing.T) *orchestrator.Scheduler {
	t.Helper()
	cfg := config.DefaultConfig()
	return orchestrator.New(cfg, dispatchmodel.BatteryConfig{CapacityWh: cfg.StorageSizeWh, InitialEnergyWh: cfg.InitialEnergyWh},
		log.New(io.Discard, "", 0), nil, telemetry.NewMemorySource(nil), nil, nil, actuator.NoopActuator{})
}

func TestHealthHandlerReportsUnhealthyWhenNotRunning(t *testing.T) {
	sched := newTestScheduler(t)
	s := New(sched, 1) // port value unused directly in handler tests

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d (scheduler never started)", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthHandlerRejectsNonGet(t *testing.T) {
	sched := newTestScheduler(t)
	s := New(sched, 1)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestBuildStatusDataOmitsScheduleWhenNoneSolved(t *testing.T) {
	sched := newTestScheduler(t)
	s := New(sched, 1)

	data := s.buildStatusData()
	if _, ok := data["schedule"]; ok {
		t.Error("buildStatusData included a schedule key with no solved schedule")
	}
}

func TestStatusHandlerOK(t *testing.T) {
	sched := newTestScheduler(t)
	s := New(sched, 1)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.statusHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
