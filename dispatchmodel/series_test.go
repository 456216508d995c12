package dispatchmodel

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestSlotsDense(t *testing.T) {
	loc := mustLoc(t)
	from := time.Date(2026, 7, 31, 10, 2, 0, 0, loc)
	to := time.Date(2026, 7, 31, 10, 20, 0, 0, loc)

	slots := Slots(from, to, loc)

	want := []time.Time{
		time.Date(2026, 7, 31, 10, 0, 0, 0, loc),
		time.Date(2026, 7, 31, 10, 5, 0, 0, loc),
		time.Date(2026, 7, 31, 10, 10, 0, 0, loc),
		time.Date(2026, 7, 31, 10, 15, 0, 0, loc),
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i, s := range slots {
		if !s.Equal(want[i]) {
			t.Errorf("slot %d = %v, want %v", i, s, want[i])
		}
	}
}

func TestFloorToSlot(t *testing.T) {
	loc := mustLoc(t)
	cases := []struct {
		in, want time.Time
	}{
		{time.Date(2026, 7, 31, 10, 2, 30, 0, loc), time.Date(2026, 7, 31, 10, 0, 0, 0, loc)},
		{time.Date(2026, 7, 31, 10, 4, 59, 0, loc), time.Date(2026, 7, 31, 10, 0, 0, 0, loc)},
		{time.Date(2026, 7, 31, 10, 5, 0, 0, loc), time.Date(2026, 7, 31, 10, 5, 0, 0, loc)},
	}
	for _, c := range cases {
		got := FloorToSlot(c.in)
		if !got.Equal(c.want) {
			t.Errorf("FloorToSlot(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestToWh(t *testing.T) {
	cases := []struct {
		watts float64
		d     time.Duration
		want  float64
	}{
		{60, time.Minute, 1},
		{100, 30 * time.Minute, 50},
		{-10, time.Hour, -10},
	}
	for _, c := range cases {
		got := ToWh(c.watts, c.d)
		if diff := got - c.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("ToWh(%v, %v) = %v, want %v", c.watts, c.d, got, c.want)
		}
	}
}

func TestSeriesAtAndSet(t *testing.T) {
	loc := mustLoc(t)
	times := []time.Time{
		time.Date(2026, 7, 31, 0, 0, 0, 0, loc),
		time.Date(2026, 7, 31, 0, 5, 0, 0, loc),
	}
	values := []float64{1, 2}
	s := NewSeries(times, values)

	if v, ok := s.At(times[1]); !ok || v != 2 {
		t.Fatalf("At(times[1]) = %v, %v; want 2, true", v, ok)
	}

	s.Set(times[0], 42)
	if v, _ := s.At(times[0]); v != 42 {
		t.Errorf("after Set, At(times[0]) = %v, want 42", v)
	}

	missing := time.Date(2026, 7, 31, 0, 10, 0, 0, loc)
	if _, ok := s.At(missing); ok {
		t.Errorf("At(missing) ok = true, want false")
	}
}

func TestSeriesLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on length mismatch")
		}
	}()
	NewSeries([]time.Time{time.Now()}, []float64{1, 2})
}
