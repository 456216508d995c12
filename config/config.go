// Package config loads and validates the JSON configuration document that
// seeds every run of the dispatch engine: tariff constants, battery/EV
// sizing, fetch endpoints, and the ambient timeouts and ports.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Config is the persisted, operator-editable configuration for a run.
type Config struct {
	// Location / grid
	GridArea  string  `json:"grid_area"`
	Location  string  `json:"location"` // time.LoadLocation name, e.g. "Europe/Stockholm"
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Battery sizing (§6)
	StorageSizeWh      float64 `json:"storage_size_wh"`
	InitialEnergyWh    float64 `json:"initial_energy"`
	MaxChargeSpeedW    float64 `json:"max_charge_speed_w"`
	MaxDischargeSpeedW float64 `json:"max_discharge_speed_w"`
	FuseCapacityW      float64 `json:"fuse_capacity_w"`

	// Optional EV fields
	EVMaxCapacityWh          float64 `json:"ev_max_capacity_wh,omitempty"`
	EVMaxChargeSpeedW        float64 `json:"ev_max_charge_speed_w,omitempty"`
	EVMaxChargePriceKrPerKWh float64 `json:"ev_max_charge_price_kr_per_kwh,omitempty"`

	// Tariff constants (SEK/kWh), §4.A
	DeliveryFee float64 `json:"delivery_fee"`
	EnergyTax   float64 `json:"energy_tax"`
	GridBenefit float64 `json:"grid_benefit"`
	TaxRebate   float64 `json:"tax_rebate"`

	// Price provider
	PriceBaseURL string        `json:"price_base_url"`
	UserAgent    string        `json:"user_agent"`
	HTTPTimeout  time.Duration `json:"http_timeout"`

	// Orchestrator timing
	ReplanInterval  time.Duration `json:"replan_interval"`
	ExecuteInterval time.Duration `json:"execute_interval"`
	SolverTimeout   time.Duration `json:"solver_timeout"`

	// Telemetry / evaluator persistence
	PostgresConnString string `json:"postgres_conn_string"`

	// Model artifacts
	PVModelPath   string `json:"pv_model_path"`
	LoadModelPath string `json:"load_model_path"`

	// Actuator
	BatteryModbusAddress string `json:"battery_modbus_address"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// Health/status server
	HealthCheckPort int `json:"health_check_port"`

	// Schedule output
	ScheduleOutputPath string `json:"schedule_output_path"`
}

// DefaultConfig returns the hard-coded fallback used when no config file is
// present — §6: "Missing file falls back to hard-coded defaults with a
// warning."
func DefaultConfig() *Config {
	return &Config{
		GridArea:           "SE3",
		Location:           "Europe/Stockholm",
		Latitude:           59.33,
		Longitude:          18.06,
		StorageSizeWh:      10000,
		InitialEnergyWh:    5000,
		MaxChargeSpeedW:    5000,
		MaxDischargeSpeedW: 5000,
		FuseCapacityW:      11000,
		DeliveryFee:        0.40,
		EnergyTax:          0.40,
		GridBenefit:        0.0,
		TaxRebate:          0.60,
		PriceBaseURL:       "https://www.elprisetjustnu.se/api/v1/prices",
		UserAgent:          "battery-dispatch/1.0 (ops@oakfield-energy.example)",
		HTTPTimeout:        10 * time.Second,
		ReplanInterval:     15 * time.Minute,
		ExecuteInterval:    5 * time.Minute,
		SolverTimeout:      10 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
		HealthCheckPort:    0,
		ScheduleOutputPath: "schedule.json",
	}
}

// LoadConfig loads configuration from a JSON file. A missing file is not
// itself an error here — callers that want the §6 "fall back with a
// warning" behavior should check os.IsNotExist and use DefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads and validates configuration from an io.Reader,
// starting from DefaultConfig so unset fields keep sane values.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to filename as indented JSON.
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()
	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter writes the configuration as indented JSON.
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}
	return nil
}

// Validate checks that the configuration values are physically and
// contractually sane (§3 BatteryConfig invariants: 0 <= E0 <= C_b, powers
// non-negative).
func (c *Config) Validate() error {
	if c.GridArea == "" {
		return fmt.Errorf("grid_area cannot be empty")
	}
	if c.Location == "" {
		return fmt.Errorf("location cannot be empty")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be within [-90, 90], got: %f", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be within [-180, 180], got: %f", c.Longitude)
	}
	if _, err := time.LoadLocation(c.Location); err != nil {
		return fmt.Errorf("invalid location %q: %w", c.Location, err)
	}
	if c.StorageSizeWh < 0 {
		return fmt.Errorf("storage_size_wh must be non-negative, got: %f", c.StorageSizeWh)
	}
	if c.InitialEnergyWh < 0 || c.InitialEnergyWh > c.StorageSizeWh {
		return fmt.Errorf("initial_energy must be within [0, storage_size_wh], got: %f", c.InitialEnergyWh)
	}
	if c.MaxChargeSpeedW < 0 {
		return fmt.Errorf("max_charge_speed_w must be non-negative, got: %f", c.MaxChargeSpeedW)
	}
	if c.MaxDischargeSpeedW < 0 {
		return fmt.Errorf("max_discharge_speed_w must be non-negative, got: %f", c.MaxDischargeSpeedW)
	}
	if c.FuseCapacityW < 0 {
		return fmt.Errorf("fuse_capacity_w must be non-negative, got: %f", c.FuseCapacityW)
	}
	if c.EVMaxCapacityWh < 0 {
		return fmt.Errorf("ev_max_capacity_wh must be non-negative, got: %f", c.EVMaxCapacityWh)
	}
	if c.EVMaxChargeSpeedW < 0 {
		return fmt.Errorf("ev_max_charge_speed_w must be non-negative, got: %f", c.EVMaxChargeSpeedW)
	}
	if c.PriceBaseURL == "" {
		return fmt.Errorf("price_base_url cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be greater than 0, got: %s", c.HTTPTimeout)
	}
	if c.SolverTimeout <= 0 {
		return fmt.Errorf("solver_timeout must be greater than 0, got: %s", c.SolverTimeout)
	}
	if c.ReplanInterval <= 0 {
		return fmt.Errorf("replan_interval must be greater than 0, got: %s", c.ReplanInterval)
	}
	if c.ExecuteInterval <= 0 {
		return fmt.Errorf("execute_interval must be greater than 0, got: %s", c.ExecuteInterval)
	}
	if c.HealthCheckPort < 0 || c.HealthCheckPort > 65535 {
		return fmt.Errorf("health_check_port must be between 0 and 65535, got: %d", c.HealthCheckPort)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}
	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log_format: %s, must be one of: text, json", c.LogFormat)
	}

	return nil
}

// HasEV reports whether EV fields were configured.
func (c *Config) HasEV() bool {
	return c.EVMaxCapacityWh > 0
}

// Loc loads and returns the configured timezone. Validate already confirmed
// it parses, so this is only called after a successful load.
func (c *Config) Loc() *time.Location {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MarshalJSON implements custom JSON marshaling so duration fields round-trip
// as Go duration strings rather than nanosecond integers.
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		HTTPTimeout     string `json:"http_timeout"`
		ReplanInterval  string `json:"replan_interval"`
		ExecuteInterval string `json:"execute_interval"`
		SolverTimeout   string `json:"solver_timeout"`
	}{
		Alias:           (*Alias)(c),
		HTTPTimeout:     c.HTTPTimeout.String(),
		ReplanInterval:  c.ReplanInterval.String(),
		ExecuteInterval: c.ExecuteInterval.String(),
		SolverTimeout:   c.SolverTimeout.String(),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling to parse duration
// fields from their string form.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		HTTPTimeout     string `json:"http_timeout"`
		ReplanInterval  string `json:"replan_interval"`
		ExecuteInterval string `json:"execute_interval"`
		SolverTimeout   string `json:"solver_timeout"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	var err error
	if aux.HTTPTimeout != "" {
		if c.HTTPTimeout, err = time.ParseDuration(aux.HTTPTimeout); err != nil {
			return fmt.Errorf("invalid http_timeout: %w", err)
		}
	}
	if aux.ReplanInterval != "" {
		if c.ReplanInterval, err = time.ParseDuration(aux.ReplanInterval); err != nil {
			return fmt.Errorf("invalid replan_interval: %w", err)
		}
	}
	if aux.ExecuteInterval != "" {
		if c.ExecuteInterval, err = time.ParseDuration(aux.ExecuteInterval); err != nil {
			return fmt.Errorf("invalid execute_interval: %w", err)
		}
	}
	if aux.SolverTimeout != "" {
		if c.SolverTimeout, err = time.ParseDuration(aux.SolverTimeout); err != nil {
			return fmt.Errorf("invalid solver_timeout: %w", err)
		}
	}

	return nil
}

// String returns an indented JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
