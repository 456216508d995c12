// Package evaluator implements §4.I: an offline pipeline that compares
// realized cost with the battery in the loop against a hypothetical
// PV-self-consumption-only baseline, using nothing but recorded telemetry
// and stored prices.
package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/oakfield-energy/battery-dispatch/tariff"
	"github.com/oakfield-energy/battery-dispatch/telemetry"
)

// SummaryPoint is one day's evaluation result, the record the evaluator
// writes once per day.
type SummaryPoint struct {
	Day                   time.Time
	ActualCostSEK         float64
	HypotheticalCostSEK   float64
	SavingsSEK            float64
	SOCCarryAdjustmentSEK float64
}

// Evaluate computes day's SummaryPoint from src's realized hourly energy
// and the hour-keyed tariffs in prices. storageCapacityWh is needed to
// convert the day's start/end SOC percentages into a Wh delta for the
// carry adjustment.
func Evaluate(ctx context.Context, src telemetry.Source, prices map[time.Time]tariff.Price, day time.Time, loc *time.Location, storageCapacityWh float64) (*SummaryPoint, error) {
	hours, err := src.HourlyEnergy(ctx, day, loc)
	if err != nil {
		return nil, fmt.Errorf("evaluator: fetch hourly energy: %w", err)
	}
	if len(hours) == 0 {
		return nil, fmt.Errorf("evaluator: no realized energy for %s", day.Format("2006-01-02"))
	}

	var actual, hypothetical float64
	for _, h := range hours {
		// prices is keyed in UTC (priceprovider normalizes every parsed
		// timestamp before it reaches a map); match that here rather than
		// trust h.Hour's Location, since time.Time map equality compares
		// Location along with the instant.
		price, ok := prices[h.Hour.UTC()]
		if !ok {
			return nil, fmt.Errorf("evaluator: no stored tariff for hour %s", h.Hour)
		}

		actual += h.GridImportWh/1000*price.Buy - h.GridExportWh/1000*price.Sell

		net := h.LoadWh - h.PVWh
		if net > 0 {
			hypothetical += net / 1000 * price.Buy
		} else {
			hypothetical += net / 1000 * price.Sell
		}
	}

	first, last := hours[0], hours[len(hours)-1]
	socDeltaWh := (last.BatterySOCEndPct - first.BatterySOCStartPct) / 100 * storageCapacityWh
	lastPrice := prices[last.Hour.UTC()]
	carryAdjustment := socDeltaWh / 1000 * lastPrice.Sell

	return &SummaryPoint{
		Day:                   day,
		ActualCostSEK:         actual - carryAdjustment,
		HypotheticalCostSEK:   hypothetical,
		SavingsSEK:            hypothetical - (actual - carryAdjustment),
		SOCCarryAdjustmentSEK: carryAdjustment,
	}, nil
}
