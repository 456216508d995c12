package priceprovider

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchMergesTodayAndTomorrow(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/2026/07-31_SE3.json":
			w.Write([]byte(`[{"time_start":"2026-07-31T00:00:00+02:00","SEK_per_kWh":0.5}]`))
		case "/2026/08-01_SE3.json":
			w.Write([]byte(`[{"time_start":"2026-08-01T00:00:00+02:00","SEK_per_kWh":0.7}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, "test-agent/1.0", 5*time.Second, log.New(io.Discard, "", 0))
	day := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	prices, err := src.Fetch(context.Background(), day, "SE3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d prices, want 2", len(prices))
	}
	if len(requested) != 2 {
		t.Fatalf("got %d requests, want 2", len(requested))
	}
}

func TestFetch404IsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, "test-agent/1.0", 5*time.Second, log.New(io.Discard, "", 0))
	day := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	prices, err := src.Fetch(context.Background(), day, "SE3")
	if err != nil {
		t.Fatalf("Fetch returned error for 404: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("got %d prices, want 0", len(prices))
	}
}

func TestFetchMalformedEntrySkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/2026/07-31_SE3.json":
			w.Write([]byte(`[{"time_start":"not-a-time","SEK_per_kWh":0.5},{"time_start":"2026-07-31T01:00:00+02:00","SEK_per_kWh":0.6}]`))
		case "/2026/08-01_SE3.json":
			w.Write([]byte(`[{"time_start":"not-a-time","SEK_per_kWh":0.5},{"time_start":"2026-08-01T01:00:00+02:00","SEK_per_kWh":0.6}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL, "test-agent/1.0", 5*time.Second, log.New(io.Discard, "", 0))
	day := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	prices, err := src.Fetch(context.Background(), day, "SE3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d prices (one bad-time entry per day expected to be skipped), want 2", len(prices))
	}
}
