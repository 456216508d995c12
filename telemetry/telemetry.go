// Package telemetry is the core's one external collaborator for measured
// data: seeding the load forecaster's history buffer (§4.D) and, offline,
// supplying the evaluator (§4.I) with realized energy deltas.
package telemetry

import (
	"context"
	"time"
)

// Sample is one raw power measurement, mirroring the fields the teacher's
// DataSamples collector integrates from Modbus polling.
type Sample struct {
	Timestamp     time.Time
	PVWattsW      float64
	GridWattsW    float64 // + import, - export
	BatteryWattsW float64 // + charging, - discharging
	EVWattsW      float64
	BatterySOCPct float64
}

// HourlyEnergy is one realized clock-hour's energy deltas (Wh), the shape
// the evaluator (§4.I) needs to compute actual vs. hypothetical cost.
type HourlyEnergy struct {
	Hour               time.Time
	GridImportWh       float64
	GridExportWh       float64
	PVWh               float64
	LoadWh             float64
	BatteryChargeWh    float64
	BatteryDischargeWh float64
	BatterySOCStartPct float64
	BatterySOCEndPct   float64
}

// Source is the external telemetry collaborator §6 specifies: recent load
// samples to seed the forecaster, plus realized hourly energy for the
// evaluator's offline cost comparison.
type Source interface {
	// RecentLoadSamples returns up to n of the most recent 5-minute-binned
	// load samples (W) within window of now, oldest first. Per §6 it may
	// return fewer than n; the load forecaster's hour-of-day fallback
	// absorbs the shortfall.
	RecentLoadSamples(ctx context.Context, now time.Time, window time.Duration, bin time.Duration, n int) ([]float64, error)

	// HourlyEnergy returns the realized energy deltas for every clock hour
	// of day (in loc), used by the evaluator.
	HourlyEnergy(ctx context.Context, day time.Time, loc *time.Location) ([]HourlyEnergy, error)

	// RecordSample appends one raw measurement. The orchestrator does not
	// call this directly (actuation/metering is out of core, §1); it exists
	// so a real deployment's metering sidecar can feed the same store the
	// forecaster and evaluator read from.
	RecordSample(ctx context.Context, s Sample) error
}
