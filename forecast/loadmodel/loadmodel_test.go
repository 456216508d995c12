package loadmodel

import (
	"testing"
	"time"

	"github.com/oakfield-energy/battery-dispatch/forecast/nnmodel"
)

func constantNetwork(value float64) *nnmodel.Network {
	weights := make([]float64, FeatureWidth)
	return &nnmodel.Network{
		Layers: []nnmodel.Layer{
			{Weights: [][]float64{weights}, Biases: []float64{value}},
		},
	}
}

func TestNextFallsBackWithoutHistory(t *testing.T) {
	f := New(constantNetwork(999), nil)
	slot := time.Date(2026, 7, 31, 7, 0, 0, 0, time.UTC) // 06-08 -> 800W fallback
	got := f.Next(slot)
	if got != 800 {
		t.Errorf("Next with no history at 07:00 = %v, want 800 (hour-of-day fallback)", got)
	}
}

func TestHourOfDayFallbackTable(t *testing.T) {
	cases := []struct {
		hour int
		want float64
	}{
		{6, 800}, {8, 800},
		{17, 1200}, {21, 1200},
		{22, 300}, {2, 300}, {5, 300},
		{12, 600},
	}
	for _, c := range cases {
		got := hourOfDayFallback(time.Date(2026, 7, 31, c.hour, 0, 0, 0, time.UTC))
		if got != c.want {
			t.Errorf("hourOfDayFallback(hour=%d) = %v, want %v", c.hour, got, c.want)
		}
	}
}

func TestNextUsesModelOnceHistorySufficient(t *testing.T) {
	f := New(constantNetwork(123), []float64{100, 200, 300, 400, 500, 600})
	slot := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	got := f.Next(slot)
	if got != 123 {
		t.Errorf("Next with sufficient history = %v, want constant model output 123", got)
	}
}

func TestNextClampsNegativeToZero(t *testing.T) {
	f := New(constantNetwork(-50), []float64{100, 200, 300, 400, 500, 600})
	got := f.Next(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	if got != 0 {
		t.Errorf("Next with negative model output = %v, want 0", got)
	}
}

func TestHistoryBufferCappedAt15(t *testing.T) {
	seed := make([]float64, 20)
	for i := range seed {
		seed[i] = float64(i)
	}
	f := New(constantNetwork(1), seed)
	if len(f.history) != historyCap {
		t.Fatalf("seeded history length = %d, want %d (capped)", len(f.history), historyCap)
	}
	// Oldest entries should have been dropped, keeping the most recent 15.
	if f.history[0] != 5 {
		t.Errorf("history[0] = %v, want 5 (first of the most recent 15)", f.history[0])
	}
}

func TestNextOutputOrderMatchesInputOrder(t *testing.T) {
	f := New(constantNetwork(1), []float64{100, 200, 300, 400, 500, 600})
	slots := []time.Time{
		time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 31, 12, 5, 0, 0, time.UTC),
		time.Date(2026, 7, 31, 12, 10, 0, 0, time.UTC),
	}
	for _, s := range slots {
		if got := f.Next(s); got != 1 {
			t.Errorf("Next(%v) = %v, want 1", s, got)
		}
	}
}
