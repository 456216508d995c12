package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromReaderDefaults(t *testing.T) {
	r := strings.NewReader(`{"grid_area": "SE3"}`)
	cfg, err := LoadConfigFromReader(r)
	if err != nil {
		t.Fatalf("LoadConfigFromReader: %v", err)
	}
	if cfg.StorageSizeWh != DefaultConfig().StorageSizeWh {
		t.Errorf("expected default storage_size_wh to survive, got %v", cfg.StorageSizeWh)
	}
	if cfg.GridArea != "SE3" {
		t.Errorf("grid_area = %q, want SE3", cfg.GridArea)
	}
}

func TestLoadConfigFromReaderDurations(t *testing.T) {
	r := strings.NewReader(`{"replan_interval": "30m", "solver_timeout": "5s"}`)
	cfg, err := LoadConfigFromReader(r)
	if err != nil {
		t.Fatalf("LoadConfigFromReader: %v", err)
	}
	if cfg.ReplanInterval != 30*time.Minute {
		t.Errorf("replan_interval = %v, want 30m", cfg.ReplanInterval)
	}
	if cfg.SolverTimeout != 5*time.Second {
		t.Errorf("solver_timeout = %v, want 5s", cfg.SolverTimeout)
	}
}

func TestValidateRejectsBadInitialEnergy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialEnergyWh = cfg.StorageSizeWh + 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for initial_energy > storage_size_wh")
	}
}

func TestValidateRejectsBadLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Location = "Not/AZone"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for invalid location")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	got, err := LoadConfigFromReader(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("LoadConfigFromReader round-trip: %v", err)
	}
	if got.ReplanInterval != cfg.ReplanInterval {
		t.Errorf("round-tripped replan_interval = %v, want %v", got.ReplanInterval, cfg.ReplanInterval)
	}
}

func TestHasEV(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HasEV() {
		t.Errorf("default config should not have EV configured")
	}
	cfg.EVMaxCapacityWh = 75000
	if !cfg.HasEV() {
		t.Errorf("expected HasEV true once ev_max_capacity_wh is set")
	}
}
