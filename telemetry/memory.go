package telemetry

import (
	"context"
	"sort"
	"time"
)

// MemorySource is an in-process Source backed by a slice of samples. It
// implements the same bucketing/derivation rules as PostgresSource, so
// orchestrator and forecaster tests can exercise the real aggregation
// logic without a database.
type MemorySource struct {
	samples []Sample
}

// NewMemorySource seeds a MemorySource with already-collected samples.
func NewMemorySource(samples []Sample) *MemorySource {
	cp := append([]Sample(nil), samples...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Timestamp.Before(cp[j].Timestamp) })
	return &MemorySource{samples: cp}
}

// RecordSample appends s, keeping the slice time-ordered.
func (m *MemorySource) RecordSample(ctx context.Context, s Sample) error {
	i := sort.Search(len(m.samples), func(i int) bool { return m.samples[i].Timestamp.After(s.Timestamp) })
	m.samples = append(m.samples, Sample{})
	copy(m.samples[i+1:], m.samples[i:])
	m.samples[i] = s
	return nil
}

// RecentLoadSamples buckets samples within [now-window, now] into bin-wide
// buckets and returns up to n derived loads, oldest first.
func (m *MemorySource) RecentLoadSamples(ctx context.Context, now time.Time, window, bin time.Duration, n int) ([]float64, error) {
	from := now.Add(-window)
	buckets := map[int64][]Sample{}
	var order []int64
	for _, s := range m.samples {
		if s.Timestamp.Before(from) || s.Timestamp.After(now) {
			continue
		}
		key := s.Timestamp.Unix() / int64(bin.Seconds())
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], s)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var loads []float64
	for _, key := range order {
		bucket := buckets[key]
		var pv, grid, battery, ev float64
		for _, s := range bucket {
			pv += s.PVWattsW
			grid += s.GridWattsW
			battery += s.BatteryWattsW
			ev += s.EVWattsW
		}
		count := float64(len(bucket))
		loads = append(loads, loadFromComponents(pv/count, grid/count, battery/count, ev/count))
	}

	if len(loads) > n {
		loads = loads[len(loads)-n:]
	}
	return loads, nil
}

// HourlyEnergy is not required by any in-memory test scenario; it returns
// an empty result rather than panic, since MemorySource exists to seed the
// load forecaster, not to back the evaluator.
func (m *MemorySource) HourlyEnergy(ctx context.Context, day time.Time, loc *time.Location) ([]HourlyEnergy, error) {
	return nil, nil
}
