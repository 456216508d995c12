// Package loadmodel implements §4.D: the autoregressive household load
// forecaster, seeded from recent telemetry and fed strictly chronologically
// so its lag/rolling features stay well defined (§9 "Cyclic temporal
// data" — parallelizing across slots would break the recursion).
package loadmodel

import (
	"math"
	"time"

	"github.com/oakfield-energy/battery-dispatch/forecast/nnmodel"
)

// historyCap is the buffer cap §4.D step 4 specifies: "Cap buffer at 15
// entries (drop oldest)."
const historyCap = 15

// lagCount is the number of lag features (L1..L5).
const lagCount = 5

// rollingWindow is the window used for the rolling mean/std feature.
const rollingWindow = 6

// FeatureWidth is the total input width: 4 cyclic features (minute-of-day
// sin/cos, day-of-week sin/cos; there is no day-of-year feature, and the
// hour of day is carried by minute-of-day rather than a separate pair — see
// DESIGN.md) + 5 lags + 2 rolling stats.
const FeatureWidth = 4 + lagCount + 2

// Forecaster is the stateful iterator §9 recommends: Next is fed one slot
// at a time, in chronological order, and never called concurrently.
type Forecaster struct {
	net     *nnmodel.Network
	history []float64 // chronological, oldest first, capped at historyCap
}

// New seeds a Forecaster from recent telemetry samples (oldest first, per
// §6's telemetry.Source contract). Fewer than the requested window is
// tolerated — the forecaster simply starts with thinner history and falls
// back to the hour-of-day table until enough lags accumulate.
func New(net *nnmodel.Network, seedSamples []float64) *Forecaster {
	history := make([]float64, 0, historyCap)
	start := 0
	if len(seedSamples) > historyCap {
		start = len(seedSamples) - historyCap
	}
	history = append(history, seedSamples[start:]...)
	return &Forecaster{net: net, history: history}
}

// Next predicts load (W) for slot t, appends the prediction to the history
// buffer, and returns it. Output order matches the order Next is called in.
func (f *Forecaster) Next(t time.Time) float64 {
	var prediction float64

	if len(f.history) < lagCount || len(f.history) < rollingWindow {
		prediction = hourOfDayFallback(t)
	} else {
		features := f.buildFeatures(t)
		out := f.net.Forward(features)[0]
		if out < 0 {
			out = 0
		}
		prediction = out
	}

	f.append(prediction)
	return prediction
}

func (f *Forecaster) append(v float64) {
	f.history = append(f.history, v)
	if len(f.history) > historyCap {
		f.history = f.history[len(f.history)-historyCap:]
	}
}

// buildFeatures assembles the cyclic + lag + rolling feature row. Callers
// must ensure enough history exists before calling this.
func (f *Forecaster) buildFeatures(t time.Time) []float64 {
	minuteOfDay := float64(t.Hour()*60 + t.Minute())
	weekday := float64(t.Weekday())

	features := make([]float64, 0, FeatureWidth)
	features = append(features,
		math.Sin(2*math.Pi*minuteOfDay/1440),
		math.Cos(2*math.Pi*minuteOfDay/1440),
		math.Sin(2*math.Pi*weekday/7),
		math.Cos(2*math.Pi*weekday/7),
	)

	n := len(f.history)
	for lag := 1; lag <= lagCount; lag++ {
		features = append(features, f.history[n-lag])
	}

	window := f.history[n-rollingWindow:]
	mean, std := meanStd(window)
	features = append(features, mean, std)

	return features
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	std = math.Sqrt(sqDiff / n)
	return mean, std
}

// hourOfDayFallback implements §4.D step 2's fixed lookup table, used
// whenever history is too thin to assemble lag/rolling features.
func hourOfDayFallback(t time.Time) float64 {
	h := t.Hour()
	switch {
	case h >= 6 && h <= 8:
		return 800
	case h >= 17 && h <= 21:
		return 1200
	case h >= 22 || h <= 5:
		return 300
	default:
		return 600
	}
}
