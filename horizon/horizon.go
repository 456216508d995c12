// Package horizon implements §4.E: deciding when to plan, how far, and
// whether to extend a thin price map with a mean-price fill.
package horizon

import (
	"time"

	"github.com/oakfield-energy/battery-dispatch/tariff"
)

// Outcome is the horizon planner's decision, letting callers switch on it
// without re-deriving the §4.E rules.
type Outcome int

const (
	// OutcomeNoSchedule means planning must abort: no price data and it's
	// too early in the day to fall back safely.
	OutcomeNoSchedule Outcome = iota
	// OutcomeSelfConsumption means emit a 24h zero-flow schedule with no
	// LP solve: no price data, but late enough in the day to be safe.
	OutcomeSelfConsumption
	// OutcomeOptimize means proceed to build and solve the dispatch LP,
	// possibly over an extended price map.
	OutcomeOptimize
)

// minEntriesBeforeExtend is the §4.E threshold below which the price map
// gets extended with a mean-price fill.
const minEntriesBeforeExtend = 7

// noDataCutoffHour is the local hour before which an empty price map means
// "abort", and at/after which it means "safe to assume self-consumption".
const noDataCutoffHour = 17

// Result is the planner's output: the decision, the (possibly extended)
// price map, and the horizon end.
type Result struct {
	Outcome Outcome
	Prices  map[time.Time]tariff.Price
	HorizonEnd time.Time
}

// Plan implements §4.E given the current slot and the fetched spot-price
// map (hour-keyed), and the tariff constants used to derive a Price from a
// mean-fill spot value.
func Plan(now time.Time, spotByHour map[time.Time]float64, consts tariff.Constants) Result {
	if len(spotByHour) == 0 {
		if now.Hour() < noDataCutoffHour {
			return Result{Outcome: OutcomeNoSchedule}
		}
		return Result{
			Outcome:    OutcomeSelfConsumption,
			HorizonEnd: now.Add(24 * time.Hour),
		}
	}

	extended := spotByHour
	if len(spotByHour) < minEntriesBeforeExtend {
		extended = extend(spotByHour)
	}

	prices := make(map[time.Time]tariff.Price, len(extended))
	var horizonEnd time.Time
	for hour, spot := range extended {
		prices[hour] = consts.Derive(spot)
		end := hour.Add(time.Hour).Add(-5 * time.Minute)
		if end.After(horizonEnd) {
			horizonEnd = end
		}
	}

	return Result{Outcome: OutcomeOptimize, Prices: prices, HorizonEnd: horizonEnd}
}

// extend fills the price map forward by 24 hours at 1-hour steps, using
// tariff(mean(spot_prices(P))) for any hour not already present.
func extend(spotByHour map[time.Time]float64) map[time.Time]float64 {
	var latest time.Time
	var sum float64
	for hour, spot := range spotByHour {
		if hour.After(latest) {
			latest = hour
		}
		sum += spot
	}
	mean := sum / float64(len(spotByHour))

	out := make(map[time.Time]float64, len(spotByHour)+24)
	for hour, spot := range spotByHour {
		out[hour] = spot
	}

	end := latest.Add(24 * time.Hour)
	for h := latest.Add(time.Hour); !h.After(end); h = h.Add(time.Hour) {
		if _, ok := out[h]; !ok {
			out[h] = mean
		}
	}

	return out
}
