package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/oakfield-energy/battery-dispatch/tariff"
	"github.com/oakfield-energy/battery-dispatch/telemetry"
)

// fakeSource is a minimal telemetry.Source test double that serves fixed
// HourlyEnergy rows, mirroring how the teacher's package tests stub out
// collaborators rather than standing up a database.
type fakeSource struct {
	hours []telemetry.HourlyEnergy
}

func (f fakeSource) RecentLoadSamples(ctx context.Context, now time.Time, window, bin time.Duration, n int) ([]float64, error) {
	return nil, nil
}

func (f fakeSource) HourlyEnergy(ctx context.Context, day time.Time, loc *time.Location) ([]telemetry.HourlyEnergy, error) {
	return f.hours, nil
}

func (f fakeSource) RecordSample(ctx context.Context, s telemetry.Sample) error {
	return nil
}

func priceAt(hours ...time.Time) map[time.Time]tariff.Price {
	out := map[time.Time]tariff.Price{}
	for _, h := range hours {
		out[h] = tariff.Price{Buy: 2.0, Sell: 1.0}
	}
	return out
}

func TestEvaluateNoBatteryActivityMatchesHypothetical(t *testing.T) {
	loc := time.UTC
	h0 := time.Date(2026, 7, 1, 0, 0, 0, 0, loc)
	h1 := time.Date(2026, 7, 1, 1, 0, 0, 0, loc)
	src := fakeSource{hours: []telemetry.HourlyEnergy{
		{Hour: h0, GridImportWh: 1000, PVWh: 0, LoadWh: 1000, BatterySOCStartPct: 50, BatterySOCEndPct: 50},
		{Hour: h1, GridExportWh: 500, PVWh: 500, LoadWh: 0, BatterySOCStartPct: 50, BatterySOCEndPct: 50},
	}}

	sp, err := Evaluate(context.Background(), src, priceAt(h0, h1), h0, loc, 10000)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if sp.SOCCarryAdjustmentSEK != 0 {
		t.Errorf("SOCCarryAdjustmentSEK = %v, want 0 (SOC unchanged)", sp.SOCCarryAdjustmentSEK)
	}
	if sp.ActualCostSEK != sp.HypotheticalCostSEK {
		t.Errorf("actual %v != hypothetical %v with no battery throughput", sp.ActualCostSEK, sp.HypotheticalCostSEK)
	}
	if sp.SavingsSEK != 0 {
		t.Errorf("SavingsSEK = %v, want 0", sp.SavingsSEK)
	}
}

func TestEvaluateBatteryShiftsLoadProducesSavings(t *testing.T) {
	loc := time.UTC
	h0 := time.Date(2026, 7, 1, 0, 0, 0, 0, loc)
	// Without the battery this hour would have imported 1000 Wh at Buy=2.0.
	// With the battery discharging to cover it, grid import is zero.
	src := fakeSource{hours: []telemetry.HourlyEnergy{
		{Hour: h0, GridImportWh: 0, PVWh: 0, LoadWh: 1000, BatteryDischargeWh: 1000, BatterySOCStartPct: 80, BatterySOCEndPct: 70},
	}}

	sp, err := Evaluate(context.Background(), src, priceAt(h0), h0, loc, 10000)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	wantHypothetical := 1000.0 / 1000 * 2.0
	if sp.HypotheticalCostSEK != wantHypothetical {
		t.Errorf("HypotheticalCostSEK = %v, want %v", sp.HypotheticalCostSEK, wantHypothetical)
	}
	if sp.SavingsSEK <= 0 {
		t.Errorf("SavingsSEK = %v, want > 0 when the battery avoids a costly import", sp.SavingsSEK)
	}
	// SOC dropped 10 pct of a 10000 Wh bank, valued at the hour's sell price.
	wantCarry := -1000.0 / 1000 * 1.0
	if sp.SOCCarryAdjustmentSEK != wantCarry {
		t.Errorf("SOCCarryAdjustmentSEK = %v, want %v", sp.SOCCarryAdjustmentSEK, wantCarry)
	}
}

func TestEvaluateMissingTariffErrors(t *testing.T) {
	loc := time.UTC
	h0 := time.Date(2026, 7, 1, 0, 0, 0, 0, loc)
	src := fakeSource{hours: []telemetry.HourlyEnergy{{Hour: h0}}}

	if _, err := Evaluate(context.Background(), src, map[time.Time]tariff.Price{}, h0, loc, 10000); err == nil {
		t.Error("Evaluate with no stored tariff for an hour: want error, got nil")
	}
}

func TestEvaluateEmptyDayErrors(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 7, 1, 0, 0, 0, 0, loc)
	src := fakeSource{}

	if _, err := Evaluate(context.Background(), src, nil, day, loc, 10000); err == nil {
		t.Error("Evaluate with no realized energy: want error, got nil")
	}
}
