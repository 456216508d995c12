package actuator

import (
	"context"
	"testing"

	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
)

func TestModeForCoversEveryActivity(t *testing.T) {
	cases := []struct {
		activity dispatchmodel.Activity
		want     remoteEMSMode
	}{
		{dispatchmodel.ActivityCharge, modeCommandChargeGrid},
		{dispatchmodel.ActivityChargeLimit, modeCommandChargeGrid},
		{dispatchmodel.ActivityChargeSolarSurplus, modeCommandChargePV},
		{dispatchmodel.ActivityDischarge, modeCommandDischargeESS},
		{dispatchmodel.ActivityDischargeLimit, modeCommandDischargeESS},
		{dispatchmodel.ActivityDischargeForHome, modeCommandDischargeESS},
		{dispatchmodel.ActivitySelfConsumption, modeMaxSelfConsumption},
		{dispatchmodel.ActivityIdle, modeStandby},
	}
	for _, c := range cases {
		if got := modeFor(c.activity); got != c.want {
			t.Errorf("modeFor(%v) = %v, want %v", c.activity, got, c.want)
		}
	}
}

func TestNoopActuatorDiscardsSilently(t *testing.T) {
	var a NoopActuator
	if err := a.Apply(context.Background(), dispatchmodel.TimeslotItem{Activity: dispatchmodel.ActivityCharge}); err != nil {
		t.Errorf("NoopActuator.Apply returned error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("NoopActuator.Close returned error: %v", err)
	}
}
