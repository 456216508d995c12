// Package activity implements §4.G: labeling a solved slot's flows with a
// human-meaningful activity tag.
package activity

import "github.com/oakfield-energy/battery-dispatch/dispatchmodel"

// Classify is a pure function of the slot's signed battery flow, signed
// grid flow, and net household need (all Wh), matching the §4.G decision
// table exactly. Thresholds (1, 5, 10 Wh) absorb solver tolerance and are
// fixed, not tuned.
func Classify(batteryFlow, gridFlow, need float64) dispatchmodel.Activity {
	switch {
	case batteryFlow > 1 && batteryFlow <= -need-10:
		return dispatchmodel.ActivityChargeLimit
	case batteryFlow > 1 && batteryFlow < -need+5:
		return dispatchmodel.ActivityChargeSolarSurplus
	case batteryFlow > 1:
		return dispatchmodel.ActivityCharge
	case batteryFlow < -1 && -batteryFlow <= need-10:
		return dispatchmodel.ActivityDischargeLimit
	case batteryFlow < -1 && -batteryFlow <= need+5:
		return dispatchmodel.ActivityDischargeForHome
	case batteryFlow < -1:
		return dispatchmodel.ActivityDischarge
	case gridFlow > 0:
		return dispatchmodel.ActivityChargeSolarSurplus
	case gridFlow < 0:
		return dispatchmodel.ActivityDischargeForHome
	default:
		// Open question (spec.md §9): whether self_consumption vs. idle
		// here is intentional or vestigial. Implementation default per
		// spec.md: self_consumption.
		return dispatchmodel.ActivitySelfConsumption
	}
}
