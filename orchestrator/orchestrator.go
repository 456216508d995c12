// Package orchestrator wires §4.A-G's components into the periodic-task
// pipeline a running deployment actually drives: fetch prices, plan a
// horizon, forecast PV and load, solve the dispatch LP, classify each slot,
// and persist the result — then, on a second tick, apply the current slot
// to hardware.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oakfield-energy/battery-dispatch/actuator"
	"github.com/oakfield-energy/battery-dispatch/config"
	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
	"github.com/oakfield-energy/battery-dispatch/forecast/nnmodel"
	"github.com/oakfield-energy/battery-dispatch/forecast/pvmodel"
	"github.com/oakfield-energy/battery-dispatch/priceprovider"
	"github.com/oakfield-energy/battery-dispatch/tariff"
	"github.com/oakfield-energy/battery-dispatch/telemetry"
)

// PeriodicTask runs runFunc on a ticker, honoring an initial delay and
// reacting to both a context cancellation and an explicit stop signal.
// Mirrors the teacher's scheduler.PeriodicTask shape.
type PeriodicTask struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	runFunc      func()
}

func (pt *PeriodicTask) run(ctx context.Context, stopChan <-chan struct{}, logger *log.Logger) {
	if pt.initialDelay > 0 {
		select {
		case <-time.After(pt.initialDelay):
			pt.runFunc()
		case <-ctx.Done():
			return
		case <-stopChan:
			return
		}
	} else {
		pt.runFunc()
	}

	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] stopped due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] stopped due to stop signal", pt.name)
			return
		}
	}
}

// Status is the read-only snapshot a health/status surface exposes.
type Status struct {
	IsRunning   bool
	HasSchedule bool
	RunID       int64
	GeneratedAt time.Time
	LastError   string
}

// Scheduler is the periodic-task runner that produces and executes
// schedules. Grounded directly on scheduler.MinerScheduler: the same
// sync.RWMutex-guarded state, the same double context/stopChan
// cancellation, a *log.Logger threaded through every task.
type Scheduler struct {
	cfg     *config.Config
	consts  tariff.Constants
	battery dispatchmodel.BatteryConfig
	loc     *time.Location

	priceSource     priceprovider.Source
	telemetrySource telemetry.Source
	pvModel         *pvmodel.Model
	loadNet         *nnmodel.Network
	actuator        actuator.BatteryActuator
	logger          *log.Logger

	mu               sync.RWMutex
	isRunning        bool
	stopChan         chan struct{}
	schedule         *dispatchmodel.Schedule
	lastError        error
	lastExecutedSlot *time.Time
}

// New builds a Scheduler from its already-loaded collaborators. battery is
// the per-run BatteryConfig seeded from CLI flags (--battery_percent,
// --ev_soc_percent, --ev_ready_time); InitialEnergyWh is kept current
// across replans from the most recent solved schedule, mirroring the
// teacher's mpcDecisions/lastExecutedDecision carry-forward.
func New(cfg *config.Config, battery dispatchmodel.BatteryConfig, logger *log.Logger, priceSource priceprovider.Source, telemetrySource telemetry.Source, pvModel *pvmodel.Model, loadNet *nnmodel.Network, act actuator.BatteryActuator) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cfg:             cfg,
		consts:          tariff.ConstantsFromConfig(cfg),
		battery:         battery,
		loc:             cfg.Loc(),
		priceSource:     priceSource,
		telemetrySource: telemetrySource,
		pvModel:         pvModel,
		loadNet:         loadNet,
		actuator:        act,
		logger:          logger,
		stopChan:        make(chan struct{}),
	}
}

// Start launches the replan and execute periodic tasks, blocking until both
// stop. If serverOnly is true, neither task is started (a caller wiring in
// the health/status server alone can still call Start to flip isRunning).
func (s *Scheduler) Start(ctx context.Context, serverOnly bool) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("orchestrator: already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	if serverOnly {
		return nil
	}

	tasks := []PeriodicTask{
		{
			name:         "Replan",
			initialDelay: 0,
			interval:     s.cfg.ReplanInterval,
			runFunc: func() {
				if err := s.Replan(ctx); err != nil {
					s.logger.Printf("orchestrator: replan failed: %v", err)
				}
			},
		},
		{
			name:         "Execute",
			initialDelay: s.cfg.ExecuteInterval,
			interval:     s.cfg.ExecuteInterval,
			runFunc: func() {
				s.executeCurrentSlot(ctx)
			},
		},
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		task := task
		go func() {
			defer wg.Done()
			task.run(ctx, s.stopChan, s.logger)
		}()
	}
	wg.Wait()

	s.stop()
	return nil
}

// Stop signals every running periodic task to return.
func (s *Scheduler) Stop() {
	s.stop()
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// GetSchedule returns the most recently solved schedule, or nil if none has
// solved yet.
func (s *Scheduler) GetSchedule() *dispatchmodel.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// Location returns the configured local timezone slots are keyed in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// GetStatus returns a snapshot suitable for the health/status server.
func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{IsRunning: s.isRunning}
	if s.schedule != nil {
		st.HasSchedule = true
		st.RunID = s.schedule.RunID
		st.GeneratedAt = s.schedule.GeneratedAt
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
