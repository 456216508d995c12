package actuator

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"

	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
)

// Register addresses below mirror a Sigenergy-class inverter's plant
// holding registers: remote EMS enable/mode and the ESS charge/discharge
// power limits. A real
// deployment against different hardware would swap this file only.
const (
	regEnableRemoteEMS   = 40029
	regRemoteEMSMode     = 40031
	regESSMaxChargeKW    = 40032
	regESSMaxDischargeKW = 40034

	plantSlaveAddress = 247
)

// ModbusActuator drives a hybrid inverter's plant-level registers over
// Modbus TCP, adapted from the teacher's SigenModbusClient down to the
// register set this schedule actually needs to write.
type ModbusActuator struct {
	client  modbus.Client
	handler *modbus.TCPClientHandler
}

// NewModbusActuator dials address (host:port) and enables remote EMS
// control, mirroring SigenModbusClient.NewTCPClient + EnableRemoteEMS.
func NewModbusActuator(address string) (*ModbusActuator, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = plantSlaveAddress
	handler.Timeout = 1 * time.Second

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("actuator: connect to %s: %w", address, err)
	}

	a := &ModbusActuator{client: modbus.NewClient(handler), handler: handler}
	if _, err := a.client.WriteSingleRegister(regEnableRemoteEMS, 1); err != nil {
		handler.Close()
		return nil, fmt.Errorf("actuator: enable remote EMS: %w", err)
	}
	return a, nil
}

// Close releases the Modbus connection.
func (a *ModbusActuator) Close() error {
	return a.handler.Close()
}

// Apply sets the EMS mode matching item's activity label and, for charge
// or discharge activities, the corresponding power limit derived from
// battery_flow_wh.
func (a *ModbusActuator) Apply(ctx context.Context, item dispatchmodel.TimeslotItem) error {
	mode := modeFor(item.Activity)
	if _, err := a.client.WriteSingleRegister(regRemoteEMSMode, uint16(mode)); err != nil {
		return fmt.Errorf("actuator: set remote EMS mode: %w", err)
	}

	powerW := item.BatteryFlowWh / dispatchmodel.SlotFraction
	switch {
	case powerW > 0:
		return a.writeKW(regESSMaxChargeKW, powerW/1000)
	case powerW < 0:
		return a.writeKW(regESSMaxDischargeKW, -powerW/1000)
	default:
		return nil
	}
}

func (a *ModbusActuator) writeKW(register uint16, kw float64) error {
	value := uint32(kw * 1000)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, value)
	if _, err := a.client.WriteMultipleRegisters(register, 2, buf); err != nil {
		return fmt.Errorf("actuator: write register %d: %w", register, err)
	}
	return nil
}
