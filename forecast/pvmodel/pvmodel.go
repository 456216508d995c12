// Package pvmodel implements §4.C: predicting per-slot PV output from
// cyclic time features via a pre-trained point regressor, clipped to the
// physically plausible sunrise/sunset window.
package pvmodel

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/oakfield-energy/battery-dispatch/forecast/nnmodel"
)

// FeatureWidth is the number of cyclic features §4.C assembles per slot:
// sin/cos(minute-of-day), sin/cos(day-of-year).
const FeatureWidth = 4

// Model predicts PV power (W) for a slot, given cyclic time features plus
// sun-position gating.
type Model struct {
	net       *nnmodel.Network
	latitude  float64
	longitude float64
}

// New wraps a loaded network with the site's coordinates.
func New(net *nnmodel.Network, latitude, longitude float64) *Model {
	return &Model{net: net, latitude: latitude, longitude: longitude}
}

// Features builds the four cyclic time features §4.C specifies for slot t.
func Features(t time.Time) []float64 {
	minuteOfDay := float64(t.Hour()*60 + t.Minute())
	dayOfYear := float64(t.YearDay())
	return []float64{
		math.Sin(2 * math.Pi * minuteOfDay / 1440),
		math.Cos(2 * math.Pi * minuteOfDay / 1440),
		math.Sin(2 * math.Pi * dayOfYear / 365),
		math.Cos(2 * math.Pi * dayOfYear / 365),
	}
}

// Series computes PV output in watts for every slot in times, clamped to
// max(0, prediction) and additionally zeroed outside [sunrise, sunset] as a
// physical sanity backstop around the ML forecast.
func (m *Model) Series(times []time.Time) map[time.Time]float64 {
	out := make(map[time.Time]float64, len(times))
	for _, t := range times {
		out[t] = m.predictOne(t)
	}
	return out
}

func (m *Model) predictOne(t time.Time) float64 {
	sunTimes := suncalc.GetTimes(t, m.latitude, m.longitude)
	sunrise := sunTimes["sunrise"].Value
	sunset := sunTimes["sunset"].Value
	if t.Before(sunrise) || t.After(sunset) {
		return 0
	}

	pred := m.net.Forward(Features(t))[0]
	if pred < 0 {
		return 0
	}
	return pred
}
