// Command evaluator runs the §4.I offline cost comparison for one day:
// fetch that day's prices, read the day's realized telemetry, compute
// actual vs. hypothetical cost, and persist the resulting summary point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/oakfield-energy/battery-dispatch/config"
	"github.com/oakfield-energy/battery-dispatch/evaluator"
	"github.com/oakfield-energy/battery-dispatch/priceprovider"
	"github.com/oakfield-energy/battery-dispatch/tariff"
	"github.com/oakfield-energy/battery-dispatch/telemetry"
)

func main() {
	var (
		configFile = flag.String("config", "config.json", "Configuration file path")
		dayFlag    = flag.String("day", "", "Day to evaluate, YYYY-MM-DD (default: yesterday)")
	)
	flag.Parse()

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

	if cfg.PostgresConnString == "" {
		fmt.Println("Error: postgres_conn_string must be set to run the evaluator")
		os.Exit(1)
	}

	loc := cfg.Loc()
	day := time.Now().In(loc).AddDate(0, 0, -1)
	if *dayFlag != "" {
		day, err = time.ParseInLocation("2006-01-02", *dayFlag, loc)
		if err != nil {
			fmt.Println("Error: invalid --day:", err)
			os.Exit(1)
		}
	}

	logger := log.New(os.Stdout, "[evaluator] ", log.LstdFlags)

	telemetrySource, err := telemetry.NewPostgresSource(cfg.PostgresConnString)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer telemetrySource.Close()

	priceSource := priceprovider.NewHTTPSource(cfg.PriceBaseURL, cfg.UserAgent, cfg.HTTPTimeout, logger)
	consts := tariff.ConstantsFromConfig(cfg)

	ctx := context.Background()
	spotByHour, err := priceSource.Fetch(ctx, day, cfg.GridArea)
	if err != nil {
		fmt.Println("Error fetching prices:", err)
		os.Exit(1)
	}
	prices := make(map[time.Time]tariff.Price, len(spotByHour))
	for hour, spot := range spotByHour {
		prices[hour] = consts.Derive(spot)
	}

	sp, err := evaluator.Evaluate(ctx, telemetrySource, prices, day, loc, cfg.StorageSizeWh)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	writer, err := evaluator.NewPostgresWriter(cfg.PostgresConnString)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	defer writer.Close()

	if err := writer.Save(ctx, *sp); err != nil {
		fmt.Println("Error saving summary point:", err)
		os.Exit(1)
	}

	fmt.Printf("%s: actual=%.2f SEK hypothetical=%.2f SEK savings=%.2f SEK\n",
		sp.Day.Format("2006-01-02"), sp.ActualCostSEK, sp.HypotheticalCostSEK, sp.SavingsSEK)
}
