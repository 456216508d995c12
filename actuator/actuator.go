// Package actuator is the core's other external collaborator (§1): given a
// solved TimeslotItem, it is responsible for making the physical battery do
// what the schedule says. The core never calls this package directly; an
// orchestrator that wants closed-loop execution wires one in.
package actuator

import (
	"context"

	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
)

// BatteryActuator applies one solved slot's flows to hardware.
type BatteryActuator interface {
	Apply(ctx context.Context, item dispatchmodel.TimeslotItem) error
	Close() error
}

// NoopActuator discards every slot. Useful for running the orchestrator
// with --serverOnly or in tests, where the schedule is produced but never
// executed.
type NoopActuator struct{}

func (NoopActuator) Apply(ctx context.Context, item dispatchmodel.TimeslotItem) error { return nil }
func (NoopActuator) Close() error                                                     { return nil }

// remoteEMSMode mirrors the register values a Sigenergy-class hybrid
// inverter's remote EMS control register accepts.
type remoteEMSMode uint16

const (
	modeStandby             remoteEMSMode = 1
	modeMaxSelfConsumption  remoteEMSMode = 2
	modeCommandChargeGrid   remoteEMSMode = 3
	modeCommandChargePV     remoteEMSMode = 4
	modeCommandDischargePV  remoteEMSMode = 5
	modeCommandDischargeESS remoteEMSMode = 6
)

// modeFor maps an activity label to the remote EMS mode that realizes it.
func modeFor(a dispatchmodel.Activity) remoteEMSMode {
	switch a {
	case dispatchmodel.ActivityCharge, dispatchmodel.ActivityChargeLimit:
		return modeCommandChargeGrid
	case dispatchmodel.ActivityChargeSolarSurplus:
		return modeCommandChargePV
	case dispatchmodel.ActivityDischarge, dispatchmodel.ActivityDischargeLimit, dispatchmodel.ActivityDischargeForHome:
		return modeCommandDischargeESS
	case dispatchmodel.ActivitySelfConsumption:
		return modeMaxSelfConsumption
	default:
		return modeStandby
	}
}
