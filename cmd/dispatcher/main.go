// Command dispatcher is the operator-facing entry point: load a config,
// seed the battery/EV state from CLI flags, and run the replan/execute
// orchestrator until a shutdown signal arrives. Grounded on the teacher's
// main.go flag surface and signal-driven shutdown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakfield-energy/battery-dispatch/actuator"
	"github.com/oakfield-energy/battery-dispatch/config"
	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
	"github.com/oakfield-energy/battery-dispatch/forecast/loadmodel"
	"github.com/oakfield-energy/battery-dispatch/forecast/nnmodel"
	"github.com/oakfield-energy/battery-dispatch/forecast/pvmodel"
	"github.com/oakfield-energy/battery-dispatch/orchestrator"
	"github.com/oakfield-energy/battery-dispatch/priceprovider"
	"github.com/oakfield-energy/battery-dispatch/server"
	"github.com/oakfield-energy/battery-dispatch/telemetry"
)

func main() {
	var (
		configFile     = flag.String("config", "config.json", "Configuration file path")
		batteryPercent = flag.Float64("battery_percent", -1, "Current battery SOC percent, seeds E0 (required)")
		evSOCPercent   = flag.Float64("ev_soc_percent", -1, "Current EV SOC percent (optional)")
		evReadyTime    = flag.String("ev_ready_time", "", "EV ready-by time, ISO-8601 (optional)")
		currentSched   = flag.Bool("current-schedule", false, "Print the last written schedule.json and exit")
		serverOnly     = flag.Bool("serverOnly", false, "Run only the health/status server, no periodic replan/execute")
		plotOnly       = flag.Bool("plot_only", false, "unimplemented: plotting is out of scope for this build")
		saveImage      = flag.String("save_image", "", "unimplemented: plotting is out of scope for this build")
		help           = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("config file %q not found, falling back to defaults\n", *configFile)
			cfg = config.DefaultConfig()
		} else {
			fmt.Println("Error loading configuration:", err)
			os.Exit(1)
		}
	}

	if *currentSched {
		os.Exit(printCurrentSchedule(cfg))
	}

	if *plotOnly || *saveImage != "" {
		fmt.Println("plot_only/save_image are not implemented: plotting is out of scope for this build")
		os.Exit(1)
	}

	if !*serverOnly && *batteryPercent < 0 {
		fmt.Println("Error: --battery_percent is required (and must be >= 0) unless --serverOnly is set")
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "[dispatcher] ", log.LstdFlags)

	battery, err := buildBatteryConfig(cfg, *batteryPercent, *evSOCPercent, *evReadyTime)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	priceSource := priceprovider.NewHTTPSource(cfg.PriceBaseURL, cfg.UserAgent, cfg.HTTPTimeout, logger)

	telemetrySource, err := buildTelemetrySource(cfg)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	pvModel, loadNet, err := loadForecastModels(cfg)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	act, err := buildActuator(cfg)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	sched := orchestrator.New(cfg, battery, logger, priceSource, telemetrySource, pvModel, loadNet, act)
	srv := server.New(sched, cfg.HealthCheckPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !*serverOnly {
		if err := sched.Replan(ctx); err != nil {
			fmt.Println("Error: initial replan failed:", err)
			os.Exit(1)
		}
		logger.Printf("Initial schedule written to %s", cfg.ScheduleOutputPath)
	}

	if err := srv.Start(); err != nil {
		fmt.Println("Error starting health/status server:", err)
		os.Exit(1)
	}

	go func() {
		if err := sched.Start(ctx, *serverOnly); err != nil {
			if err != context.Canceled {
				logger.Printf("orchestrator error: %v", err)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Printf("dispatcher started. Press Ctrl+C to stop...")
	<-sigChan

	logger.Printf("shutdown signal received, stopping...")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	act.Close()

	logger.Printf("dispatcher stopped")
}

func printCurrentSchedule(cfg *config.Config) int {
	data, err := os.ReadFile(cfg.ScheduleOutputPath)
	if err != nil {
		fmt.Println("Error reading schedule:", err)
		return 1
	}
	// schedule.json is persisted as a mapping from ISO-8601 slot start to
	// TimeslotItem (§6), not the in-memory Schedule envelope, so it decodes
	// straight into that shape rather than dispatchmodel.Schedule.
	var slots map[string]dispatchmodel.TimeslotItem
	if err := json.Unmarshal(data, &slots); err != nil {
		fmt.Println("Error parsing schedule:", err)
		return 1
	}
	out, _ := json.MarshalIndent(slots, "", "  ")
	fmt.Println(string(out))
	return 0
}

func buildBatteryConfig(cfg *config.Config, batteryPercent, evSOCPercent float64, evReadyTime string) (dispatchmodel.BatteryConfig, error) {
	battery := dispatchmodel.BatteryConfig{
		GridArea:      cfg.GridArea,
		CapacityWh:    cfg.StorageSizeWh,
		MaxChargeW:    cfg.MaxChargeSpeedW,
		MaxDischargeW: cfg.MaxDischargeSpeedW,
		FuseCapacityW: cfg.FuseCapacityW,
	}
	if batteryPercent >= 0 {
		battery.InitialEnergyWh = batteryPercent / 100 * cfg.StorageSizeWh
	} else {
		battery.InitialEnergyWh = cfg.InitialEnergyWh
	}

	if !cfg.HasEV() {
		return battery, nil
	}

	battery.HasEV = true
	battery.EVCapacityWh = cfg.EVMaxCapacityWh
	battery.EVMaxChargeW = cfg.EVMaxChargeSpeedW
	battery.EVChargePriceCap = cfg.EVMaxChargePriceKrPerKWh
	if evSOCPercent >= 0 {
		battery.EVInitialEnergyWh = evSOCPercent / 100 * cfg.EVMaxCapacityWh
	}
	if evReadyTime != "" {
		t, err := time.Parse(time.RFC3339, evReadyTime)
		if err != nil {
			return battery, fmt.Errorf("invalid --ev_ready_time %q: %w", evReadyTime, err)
		}
		battery.EVReadyTime = &t
	}
	return battery, nil
}

func buildTelemetrySource(cfg *config.Config) (telemetry.Source, error) {
	if cfg.PostgresConnString == "" {
		return telemetry.NewMemorySource(nil), nil
	}
	src, err := telemetry.NewPostgresSource(cfg.PostgresConnString)
	if err != nil {
		return nil, fmt.Errorf("connect telemetry store: %w", err)
	}
	return src, nil
}

func loadForecastModels(cfg *config.Config) (*pvmodel.Model, *nnmodel.Network, error) {
	pvData, err := os.ReadFile(cfg.PVModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read PV model artifact %q: %w", cfg.PVModelPath, err)
	}
	pvNet, err := nnmodel.Load(pvData, pvmodel.FeatureWidth)
	if err != nil {
		return nil, nil, fmt.Errorf("load PV model: %w", err)
	}

	loadData, err := os.ReadFile(cfg.LoadModelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read load model artifact %q: %w", cfg.LoadModelPath, err)
	}
	loadNet, err := nnmodel.Load(loadData, loadmodel.FeatureWidth)
	if err != nil {
		return nil, nil, fmt.Errorf("load load model: %w", err)
	}

	return pvmodel.New(pvNet, cfg.Latitude, cfg.Longitude), loadNet, nil
}

func buildActuator(cfg *config.Config) (actuator.BatteryActuator, error) {
	if cfg.BatteryModbusAddress == "" {
		return actuator.NoopActuator{}, nil
	}
	act, err := actuator.NewModbusActuator(cfg.BatteryModbusAddress)
	if err != nil {
		return nil, fmt.Errorf("connect battery actuator: %w", err)
	}
	return act, nil
}

func showHelp() {
	fmt.Println("dispatcher - residential battery/PV/EV/grid dispatch optimization engine")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  dispatcher [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run with a known battery SOC")
	fmt.Println("  dispatcher --battery_percent=55")
	fmt.Println()
	fmt.Println("  # Run with an EV charging target")
	fmt.Println("  dispatcher --battery_percent=55 --ev_soc_percent=30 --ev_ready_time=2026-08-01T07:00:00+02:00")
	fmt.Println()
	fmt.Println("  # Print the last written schedule and exit")
	fmt.Println("  dispatcher --current-schedule")
	fmt.Println()
	fmt.Println("  # Run only the health/status server")
	fmt.Println("  dispatcher --serverOnly")
}
