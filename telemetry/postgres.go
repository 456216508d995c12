package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresSource is the Source implementation for a real deployment,
// grounded on the teacher's `mpc_persistence.go` prepared-statement +
// transaction pattern: raw samples land in one table, reads aggregate them
// into the bins each caller needs.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource opens a connection pool against connString (a
// lib/pq-format DSN) and verifies connectivity.
func NewPostgresSource(connString string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: ping postgres: %w", err)
	}
	return &PostgresSource{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *PostgresSource) Close() error {
	return p.db.Close()
}

// RecordSample upserts one raw measurement, keyed by timestamp.
func (p *PostgresSource) RecordSample(ctx context.Context, s Sample) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO telemetry_samples (ts, pv_w, grid_w, battery_w, ev_w, battery_soc_pct)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ts) DO UPDATE SET
			pv_w = EXCLUDED.pv_w,
			grid_w = EXCLUDED.grid_w,
			battery_w = EXCLUDED.battery_w,
			ev_w = EXCLUDED.ev_w,
			battery_soc_pct = EXCLUDED.battery_soc_pct
	`, s.Timestamp, s.PVWattsW, s.GridWattsW, s.BatteryWattsW, s.EVWattsW, s.BatterySOCPct)
	if err != nil {
		return fmt.Errorf("telemetry: record sample: %w", err)
	}
	return nil
}

// RecordSamples upserts a batch of measurements inside a single
// transaction, mirroring saveMPCDecisions's batch-upsert shape.
func (p *PostgresSource) RecordSamples(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("telemetry: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO telemetry_samples (ts, pv_w, grid_w, battery_w, ev_w, battery_soc_pct)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ts) DO UPDATE SET
			pv_w = EXCLUDED.pv_w,
			grid_w = EXCLUDED.grid_w,
			battery_w = EXCLUDED.battery_w,
			ev_w = EXCLUDED.ev_w,
			battery_soc_pct = EXCLUDED.battery_soc_pct
	`)
	if err != nil {
		return fmt.Errorf("telemetry: prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, s.Timestamp, s.PVWattsW, s.GridWattsW, s.BatteryWattsW, s.EVWattsW, s.BatterySOCPct); err != nil {
			return fmt.Errorf("telemetry: insert sample at %s: %w", s.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("telemetry: commit transaction: %w", err)
	}
	return nil
}

// RecentLoadSamples aggregates raw samples into bin-wide buckets within
// [now-window, now], derives load per bucket using the same identity the
// teacher's IntegrateSamples applies (load = pv + battery_discharge +
// grid_import - battery_charge - grid_export - ev), and returns at most the
// n most recent buckets, oldest first.
func (p *PostgresSource) RecentLoadSamples(ctx context.Context, now time.Time, window, bin time.Duration, n int) ([]float64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT
			avg(pv_w) AS pv_w,
			avg(grid_w) AS grid_w,
			avg(battery_w) AS battery_w,
			avg(ev_w) AS ev_w
		FROM telemetry_samples
		WHERE ts >= $1 AND ts <= $2
		GROUP BY floor(extract(epoch FROM ts) / $3)
		ORDER BY floor(extract(epoch FROM ts) / $3) ASC
	`, now.Add(-window), now, bin.Seconds())
	if err != nil {
		return nil, fmt.Errorf("telemetry: query recent load samples: %w", err)
	}
	defer rows.Close()

	var loads []float64
	for rows.Next() {
		var pv, grid, battery, ev float64
		if err := rows.Scan(&pv, &grid, &battery, &ev); err != nil {
			return nil, fmt.Errorf("telemetry: scan load bucket: %w", err)
		}
		loads = append(loads, loadFromComponents(pv, grid, battery, ev))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("telemetry: iterate load buckets: %w", err)
	}

	if len(loads) > n {
		loads = loads[len(loads)-n:]
	}
	return loads, nil
}

// loadFromComponents applies the same load-from-flows identity the
// teacher's DataSamples.IntegrateSamples uses.
func loadFromComponents(pv, grid, battery, ev float64) float64 {
	gridImport, gridExport := 0.0, 0.0
	if grid > 0 {
		gridImport = grid
	} else if grid < 0 {
		gridExport = -grid
	}
	batteryCharge, batteryDischarge := 0.0, 0.0
	if battery > 0 {
		batteryCharge = battery
	} else if battery < 0 {
		batteryDischarge = -battery
	}
	return pv + batteryDischarge + gridImport - batteryCharge - gridExport - ev
}

// HourlyEnergy aggregates every clock hour of day (in loc) into realized
// Wh deltas for the evaluator.
func (p *PostgresSource) HourlyEnergy(ctx context.Context, day time.Time, loc *time.Location) ([]HourlyEnergy, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := p.db.QueryContext(ctx, `
		SELECT
			date_trunc('hour', ts AT TIME ZONE $3) AS hour,
			avg(pv_w), avg(grid_w), avg(battery_w), avg(ev_w),
			min(battery_soc_pct), max(battery_soc_pct)
		FROM telemetry_samples
		WHERE ts >= $1 AND ts < $2
		GROUP BY hour
		ORDER BY hour ASC
	`, dayStart, dayEnd, loc.String())
	if err != nil {
		return nil, fmt.Errorf("telemetry: query hourly energy: %w", err)
	}
	defer rows.Close()

	var out []HourlyEnergy
	for rows.Next() {
		var hour time.Time
		var pv, grid, battery, ev, socMin, socMax float64
		if err := rows.Scan(&hour, &pv, &grid, &battery, &ev, &socMin, &socMax); err != nil {
			return nil, fmt.Errorf("telemetry: scan hourly energy: %w", err)
		}
		// lib/pq hands back scanned timestamps in its own Location; normalize
		// to UTC so this matches the price map's keys (see priceprovider),
		// since time.Time map lookups compare Location along with the instant.
		hour = hour.UTC()
		gridImport, gridExport := 0.0, 0.0
		if grid > 0 {
			gridImport = grid
		} else if grid < 0 {
			gridExport = -grid
		}
		batteryCharge, batteryDischarge := 0.0, 0.0
		if battery > 0 {
			batteryCharge = battery
		} else if battery < 0 {
			batteryDischarge = -battery
		}
		load := loadFromComponents(pv, grid, battery, ev)
		out = append(out, HourlyEnergy{
			Hour:               hour,
			GridImportWh:       gridImport,
			GridExportWh:       gridExport,
			PVWh:               pv,
			LoadWh:             load,
			BatteryChargeWh:    batteryCharge,
			BatteryDischargeWh: batteryDischarge,
			BatterySOCStartPct: socMin,
			BatterySOCEndPct:   socMax,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("telemetry: iterate hourly energy: %w", err)
	}
	return out, nil
}
