package orchestrator

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
)

// persistSchedule writes schedule to path atomically (write-temp-then-rename,
// §6), rounding every numeric field to two decimals and serializing it as
// the documented persisted form: a mapping from ISO-8601 slot start to
// TimeslotItem, not the in-memory Schedule envelope. RunID/GeneratedAt are
// per-run bookkeeping only (used by GetStatus) and are deliberately excluded
// here so that two replans over identical inputs produce a byte-identical
// file, per §8's round-trip idempotence property.
func persistSchedule(path string, schedule *dispatchmodel.Schedule) error {
	rounded := roundSchedule(schedule)

	data, err := json.MarshalIndent(scheduleToMap(rounded), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".schedule-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}

// scheduleToMap keys each slot by its ISO-8601 start time, the persisted
// shape §6 specifies.
func scheduleToMap(schedule *dispatchmodel.Schedule) map[string]dispatchmodel.TimeslotItem {
	out := make(map[string]dispatchmodel.TimeslotItem, len(schedule.Slots))
	for _, item := range schedule.Slots {
		out[item.StartTime.Format(time.RFC3339)] = item
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func roundSchedule(schedule *dispatchmodel.Schedule) *dispatchmodel.Schedule {
	out := &dispatchmodel.Schedule{
		RunID:       schedule.RunID,
		GeneratedAt: schedule.GeneratedAt,
		Slots:       make([]dispatchmodel.TimeslotItem, len(schedule.Slots)),
	}
	for i, item := range schedule.Slots {
		r := item
		r.SpotPrice = round2(r.SpotPrice)
		r.BatteryFlowWh = round2(r.BatteryFlowWh)
		r.BatterySOCWh = round2(r.BatterySOCWh)
		r.BatterySOCPct = round2(r.BatterySOCPct)
		r.HouseNeedWh = round2(r.HouseNeedWh)
		r.GridFlowWh = round2(r.GridFlowWh)
		if r.EVEnergyWh != nil {
			ev := round2(*r.EVEnergyWh)
			r.EVEnergyWh = &ev
		}
		if r.EVSOCPct != nil {
			pct := round2(*r.EVSOCPct)
			r.EVSOCPct = &pct
		}
		if r.Amount != nil {
			amt := round2(*r.Amount)
			r.Amount = &amt
		}
		out.Slots[i] = r
	}
	return out
}
