package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/oakfield-energy/battery-dispatch/activity"
	"github.com/oakfield-energy/battery-dispatch/dispatch"
	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
	"github.com/oakfield-energy/battery-dispatch/forecast/loadmodel"
	"github.com/oakfield-energy/battery-dispatch/horizon"
	"github.com/oakfield-energy/battery-dispatch/tariff"
)

// recentLoadWindow and recentLoadBin match §6's telemetry-source contract:
// recent_load_samples(window=30m, bin=5m, n=6..10).
const (
	recentLoadWindow = 30 * time.Minute
	recentLoadBin    = 5 * time.Minute
	recentLoadCount  = 10
)

// Replan runs the §4.H 8-step sequence once: fetch prices, plan a horizon,
// seed the load forecaster, build PV/Load series, solve the dispatch LP,
// classify every slot, and persist the result. A horizon outcome of
// "no schedule" or a solver failure leaves the previously persisted
// schedule untouched, per §7.
func (s *Scheduler) Replan(ctx context.Context) error {
	now := time.Now().In(s.loc)
	tNow := dispatchmodel.FloorToSlot(now)

	spotByHour, err := s.priceSource.Fetch(ctx, tNow, s.cfg.GridArea)
	if err != nil {
		s.recordError(err)
		return fmt.Errorf("orchestrator: fetch prices: %w", err)
	}

	plan := horizon.Plan(tNow, spotByHour, s.consts)
	switch plan.Outcome {
	case horizon.OutcomeNoSchedule:
		err := fmt.Errorf("no price data and too early to assume self-consumption")
		s.recordError(err)
		return err
	case horizon.OutcomeSelfConsumption:
		return s.persistSelfConsumption(tNow, plan.HorizonEnd)
	}

	seed, err := s.telemetrySource.RecentLoadSamples(ctx, tNow, recentLoadWindow, recentLoadBin, recentLoadCount)
	if err != nil {
		s.logger.Printf("orchestrator: recent load samples: %v (forecaster starts with no history)", err)
		seed = nil
	}
	forecaster := loadmodel.New(s.loadNet, seed)

	slots := dispatchmodel.Slots(tNow, plan.HorizonEnd.Add(dispatchmodel.SlotDuration), s.loc)
	pvSeries := s.pvModel.Series(slots)

	pvW := make([]float64, len(slots))
	loadW := make([]float64, len(slots))
	prices := make([]tariff.Price, len(slots))
	for i, t := range slots {
		pvW[i] = pvSeries[t]
		loadW[i] = forecaster.Next(t)

		// plan.Prices is keyed in UTC (priceprovider normalizes every parsed
		// timestamp to UTC before it ever reaches a map), so the lookup key
		// must be built the same way rather than in s.loc: time.Time map
		// equality compares Location too, and two equal instants in
		// different Locations are never equal keys.
		hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, s.loc).UTC()
		price, ok := plan.Prices[hour]
		if !ok {
			price = s.consts.Derive(0)
		}
		prices[i] = price
	}

	battery := s.currentBatteryConfig()
	problem, err := dispatch.Build(battery, slots, prices, pvW, loadW)
	if err != nil {
		s.recordError(err)
		return fmt.Errorf("orchestrator: build dispatch problem: %w", err)
	}

	sol, err := dispatch.SolveWithTimeout(problem, s.cfg.SolverTimeout)
	if err != nil {
		s.recordError(err)
		return fmt.Errorf("orchestrator: solve dispatch problem: %w", err)
	}

	items := make([]dispatchmodel.TimeslotItem, len(slots))
	for i, t := range slots {
		items[i] = classifySlot(t, prices[i], battery, sol.Slots[i], loadW[i]-pvW[i])
	}

	schedule := &dispatchmodel.Schedule{
		RunID:       dispatchmodel.NextRunID(),
		GeneratedAt: now,
		Slots:       items,
	}

	if err := persistSchedule(s.cfg.ScheduleOutputPath, schedule); err != nil {
		s.recordError(err)
		return fmt.Errorf("orchestrator: persist schedule: %w", err)
	}

	s.mu.Lock()
	s.schedule = schedule
	s.lastError = nil
	s.mu.Unlock()
	return nil
}

// classifySlot assembles one TimeslotItem from a decoded LP slot result,
// running the §4.G classifier over its signed battery/grid flows. netLoadW
// is consumption minus production for the slot (Load-PV, W); it may be
// negative when PV exceeds load.
func classifySlot(t time.Time, price tariff.Price, battery dispatchmodel.BatteryConfig, r dispatch.SlotResult, netLoadW float64) dispatchmodel.TimeslotItem {
	batteryFlow := r.BatteryChargeWh - r.BatteryDischargeWh
	gridFlow := r.GridImportWh - r.GridExportWh
	needWh := dispatchmodel.ToWh(netLoadW, dispatchmodel.SlotDuration)

	item := dispatchmodel.TimeslotItem{
		StartTime:     t,
		SpotPrice:     price.Spot,
		BatteryFlowWh: batteryFlow,
		BatterySOCWh:  r.BatterySOCWh,
		BatterySOCPct: r.BatterySOCWh / battery.CapacityWh * 100,
		HouseNeedWh:   needWh,
		GridFlowWh:    gridFlow,
		Activity:      activity.Classify(batteryFlow, gridFlow, needWh),
	}
	if r.EVEnergyWh != nil && battery.EVCapacityWh > 0 {
		ev := *r.EVEnergyWh
		pct := ev / battery.EVCapacityWh * 100
		item.EVEnergyWh = &ev
		item.EVSOCPct = &pct
	}
	return item
}

// persistSelfConsumption emits §4.E's fallback: a zero-flow schedule over
// [from, horizonEnd] with SOC held at the current baseline, no LP solve.
func (s *Scheduler) persistSelfConsumption(from, horizonEnd time.Time) error {
	slots := dispatchmodel.Slots(from, horizonEnd.Add(dispatchmodel.SlotDuration), s.loc)
	battery := s.currentBatteryConfig()
	socPct := battery.InitialEnergyWh / battery.CapacityWh * 100

	items := make([]dispatchmodel.TimeslotItem, len(slots))
	for i, t := range slots {
		items[i] = dispatchmodel.TimeslotItem{
			StartTime:     t,
			BatterySOCWh:  battery.InitialEnergyWh,
			BatterySOCPct: socPct,
			Activity:      dispatchmodel.ActivitySelfConsumption,
		}
	}

	schedule := &dispatchmodel.Schedule{
		RunID:       dispatchmodel.NextRunID(),
		GeneratedAt: time.Now().In(s.loc),
		Slots:       items,
	}

	if err := persistSchedule(s.cfg.ScheduleOutputPath, schedule); err != nil {
		s.recordError(err)
		return fmt.Errorf("orchestrator: persist self-consumption schedule: %w", err)
	}

	s.mu.Lock()
	s.schedule = schedule
	s.lastError = nil
	s.mu.Unlock()
	return nil
}

// currentBatteryConfig returns the baseline BatteryConfig with
// InitialEnergyWh (and, if EV-equipped, EVInitialEnergyWh) advanced to the
// last solved slot's SOC, so successive replans pick up where the previous
// one left off rather than restarting from the CLI-supplied seed every
// tick.
func (s *Scheduler) currentBatteryConfig() dispatchmodel.BatteryConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.battery
	if s.schedule == nil || len(s.schedule.Slots) == 0 {
		return cfg
	}
	last := s.schedule.Slots[len(s.schedule.Slots)-1]
	cfg.InitialEnergyWh = last.BatterySOCWh
	if cfg.HasEV && last.EVEnergyWh != nil {
		cfg.EVInitialEnergyWh = *last.EVEnergyWh
	}
	return cfg
}

func (s *Scheduler) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
}

// executeCurrentSlot applies the schedule's slot for "now" to the
// actuator, re-executing only if the previous attempt for that slot
// failed — mirroring the teacher's runMPCExecution carry-forward.
func (s *Scheduler) executeCurrentSlot(ctx context.Context) {
	sched := s.GetSchedule()
	if sched == nil {
		return
	}

	now := dispatchmodel.FloorToSlot(time.Now().In(s.loc))
	item, ok := sched.At(now)
	if !ok {
		return
	}

	s.mu.RLock()
	already := s.lastExecutedSlot != nil && s.lastExecutedSlot.Equal(now)
	s.mu.RUnlock()
	if already {
		return
	}

	if err := s.actuator.Apply(ctx, item); err != nil {
		s.logger.Printf("orchestrator: actuator apply failed for slot %s: %v (will retry next tick)", now, err)
		return
	}

	s.mu.Lock()
	slot := now
	s.lastExecutedSlot = &slot
	s.mu.Unlock()
}
