// Package priceprovider implements §4.B: fetching day-ahead spot prices for
// a grid area and merging the "today" and "tomorrow" windows into a single
// hour-keyed map.
package priceprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Source is the external collaborator the orchestrator depends on.
type Source interface {
	Fetch(ctx context.Context, day time.Time, gridArea string) (map[time.Time]float64, error)
}

// dayPriceEntry mirrors one element of the price service's JSON array.
type dayPriceEntry struct {
	TimeStart  string  `json:"time_start"`
	SEKPerKWh  float64 `json:"SEK_per_kWh"`
}

// HTTPSource fetches `GET {base}/{yyyy}/{MM-dd}_{area}.json`, grounded on
// the teacher's entsoe.APIClient/meteo.Client shape: a timeout-bound
// http.Client, context-aware requests, and an explicit User-Agent.
type HTTPSource struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewHTTPSource builds an HTTPSource with a bounded http.Client.
func NewHTTPSource(baseURL, userAgent string, timeout time.Duration, logger *log.Logger) *HTTPSource {
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPSource{
		BaseURL:    baseURL,
		UserAgent:  userAgent,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// Fetch implements §4.B: fetches day and day+1, merging into at most 48
// hour-keyed entries. A missing/failed day is logged and treated as empty
// rather than aborting the whole fetch — partial data is acceptable here,
// the horizon planner (§4.E) decides what to do with it.
func (s *HTTPSource) Fetch(ctx context.Context, day time.Time, gridArea string) (map[time.Time]float64, error) {
	result := make(map[time.Time]float64, 48)

	s.fetchOneDay(ctx, day, gridArea, result)
	s.fetchOneDay(ctx, day.AddDate(0, 0, 1), gridArea, result)

	return result, nil
}

func (s *HTTPSource) fetchOneDay(ctx context.Context, day time.Time, gridArea string, into map[time.Time]float64) {
	url := fmt.Sprintf("%s/%04d/%02d-%02d_%s.json", s.BaseURL, day.Year(), day.Month(), day.Day(), gridArea)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.Logger.Printf("priceprovider: building request for %s: %v", url, err)
		return
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		s.Logger.Printf("priceprovider: fetching %s: %v", url, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		s.Logger.Printf("priceprovider: %s returned 404, treating as empty", url)
		return
	}
	if resp.StatusCode != http.StatusOK {
		s.Logger.Printf("priceprovider: %s returned status %d", url, resp.StatusCode)
		return
	}

	var entries []dayPriceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		s.Logger.Printf("priceprovider: decoding %s: %v", url, err)
		return
	}

	for _, e := range entries {
		t, err := time.Parse(time.RFC3339, e.TimeStart)
		if err != nil {
			s.Logger.Printf("priceprovider: skipping entry with bad time_start %q: %v", e.TimeStart, err)
			continue
		}
		// Normalize to UTC: time.Time equality (and map-key equality) compares
		// Location along with the instant, and RFC3339 parses into a
		// fixed-offset Location that would never compare equal to a key built
		// from any other Location, even for the same instant.
		into[t.UTC()] = e.SEKPerKWh
	}
}
