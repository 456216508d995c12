package dispatchmodel

import (
	"sync/atomic"
	"time"
)

// Activity is one of the eight flow-shape labels the classifier (package
// activity) assigns to a solved slot.
type Activity string

const (
	ActivityCharge             Activity = "charge"
	ActivityChargeSolarSurplus Activity = "charge_solar_surplus"
	ActivityChargeLimit        Activity = "charge_limit"
	ActivityDischarge          Activity = "discharge"
	ActivityDischargeForHome   Activity = "discharge_for_home"
	ActivityDischargeLimit     Activity = "discharge_limit"
	ActivitySelfConsumption    Activity = "self_consumption"
	ActivityIdle               Activity = "idle"
)

// TimeslotItem is the per-slot output record assembled by the orchestrator
// after the dispatch LP solves and the activity classifier runs.
type TimeslotItem struct {
	StartTime     time.Time `json:"start_time"`
	SpotPrice     float64   `json:"spot_price"`
	BatteryFlowWh float64   `json:"battery_flow_wh"`
	BatterySOCWh  float64   `json:"battery_soc_wh"`
	BatterySOCPct float64   `json:"battery_soc_pct"`
	HouseNeedWh   float64   `json:"house_need_wh"`
	Activity      Activity  `json:"activity"`
	GridFlowWh    float64   `json:"grid_flow_wh"`

	EVEnergyWh *float64 `json:"ev_energy_wh,omitempty"`
	EVSOCPct   *float64 `json:"ev_soc_pct,omitempty"`
	Amount     *float64 `json:"amount,omitempty"`
}

// BatteryConfig is the immutable-per-run configuration for the battery/EV
// system the dispatch LP optimizes over.
type BatteryConfig struct {
	GridArea string

	CapacityWh      float64 // C_b
	InitialEnergyWh float64 // E0, 0 <= E0 <= CapacityWh
	MaxChargeW      float64
	MaxDischargeW   float64
	FuseCapacityW   float64 // P_fuse

	// EV fields, all optional together.
	HasEV             bool
	EVCapacityWh      float64 // C_ev
	EVMaxChargeW      float64 // P_ev_max
	EVChargePriceCap  float64 // p_ev_cap, SEK/kWh deficit penalty
	EVInitialEnergyWh float64
	EVReadyTime       *time.Time
}

// Schedule is the insertion-ordered, gap-free mapping over [t0, tN) that
// the orchestrator emits after a successful solve. It is built once and
// never mutated afterward.
type Schedule struct {
	RunID       int64          `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Slots       []TimeslotItem `json:"slots"`
}

var runCounter int64

// NextRunID returns a monotonically increasing, process-local run
// identifier: a dependency-free substitute for a UUID. The counter starts
// at 1 in each process, so IDs are not unique across restarts.
func NextRunID() int64 {
	return atomic.AddInt64(&runCounter, 1)
}

// At returns the TimeslotItem for slot time t, or false if t falls outside
// the schedule.
func (s *Schedule) At(t time.Time) (TimeslotItem, bool) {
	for _, item := range s.Slots {
		if item.StartTime.Equal(t) {
			return item, true
		}
	}
	return TimeslotItem{}, false
}
