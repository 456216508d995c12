package activity

import (
	"testing"

	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
)

// TestClassifyDecisionTable exercises each branch of the §4.G table with
// inputs chosen to land precisely in that branch.
func TestClassifyDecisionTable(t *testing.T) {
	cases := []struct {
		name                        string
		batteryFlow, gridFlow, need float64
		want                        dispatchmodel.Activity
	}{
		// battery_flow > 1 and battery_flow <= -need-10
		{"charge_limit", 50, 0, -70, dispatchmodel.ActivityChargeLimit},
		// battery_flow > 1 and battery_flow < -need+5 (not charge_limit)
		{"charge_solar_surplus", 50, 0, -50, dispatchmodel.ActivityChargeSolarSurplus},
		// battery_flow > 1 otherwise
		{"charge_plain", 50, 0, 0, dispatchmodel.ActivityCharge},
		// battery_flow < -1 and -battery_flow <= need-10
		{"discharge_limit", -50, 0, 70, dispatchmodel.ActivityDischargeLimit},
		// battery_flow < -1 and -battery_flow <= need+5 (not discharge_limit)
		{"discharge_for_home", -50, 0, 48, dispatchmodel.ActivityDischargeForHome},
		// battery_flow < -1 otherwise
		{"discharge_plain", -500, 0, 1, dispatchmodel.ActivityDischarge},
		// |battery_flow| <= 1, grid_flow > 0
		{"near_zero_grid_import", 0.5, 10, 0, dispatchmodel.ActivityChargeSolarSurplus},
		// |battery_flow| <= 1, grid_flow < 0
		{"near_zero_grid_export", 0.5, -10, 0, dispatchmodel.ActivityDischargeForHome},
		// otherwise
		{"self_consumption_default", 0, 0, 0, dispatchmodel.ActivitySelfConsumption},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.batteryFlow, c.gridFlow, c.need)
			if got != c.want {
				t.Errorf("Classify(%v, %v, %v) = %v, want %v", c.batteryFlow, c.gridFlow, c.need, got, c.want)
			}
		})
	}
}

func TestClassifyPure(t *testing.T) {
	a := Classify(5, -20, 15)
	b := Classify(5, -20, 15)
	if a != b {
		t.Errorf("Classify is not deterministic: %v != %v", a, b)
	}
}
