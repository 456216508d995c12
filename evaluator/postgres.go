package evaluator

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresWriter persists SummaryPoints, one row per day, using the same
// prepared-upsert-in-a-transaction shape telemetry.PostgresSource uses for
// raw samples.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection pool against connString and verifies
// connectivity.
func NewPostgresWriter(connString string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("evaluator: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("evaluator: ping postgres: %w", err)
	}
	return &PostgresWriter{db: db}, nil
}

// Close releases the underlying connection pool.
func (w *PostgresWriter) Close() error {
	return w.db.Close()
}

// Save upserts sp, keyed by day.
func (w *PostgresWriter) Save(ctx context.Context, sp SummaryPoint) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("evaluator: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO evaluation_summary (day, actual_cost_sek, hypothetical_cost_sek, savings_sek, soc_carry_adjustment_sek)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (day) DO UPDATE SET
			actual_cost_sek = EXCLUDED.actual_cost_sek,
			hypothetical_cost_sek = EXCLUDED.hypothetical_cost_sek,
			savings_sek = EXCLUDED.savings_sek,
			soc_carry_adjustment_sek = EXCLUDED.soc_carry_adjustment_sek
	`)
	if err != nil {
		return fmt.Errorf("evaluator: prepare statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, sp.Day, sp.ActualCostSEK, sp.HypotheticalCostSEK, sp.SavingsSEK, sp.SOCCarryAdjustmentSEK); err != nil {
		return fmt.Errorf("evaluator: upsert summary point for %s: %w", sp.Day.Format("2006-01-02"), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("evaluator: commit transaction: %w", err)
	}
	return nil
}

// Latest loads the n most recently written summary points, newest last.
func (w *PostgresWriter) Latest(ctx context.Context, n int) ([]SummaryPoint, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT day, actual_cost_sek, hypothetical_cost_sek, savings_sek, soc_carry_adjustment_sek
		FROM evaluation_summary
		ORDER BY day DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("evaluator: query summary points: %w", err)
	}
	defer rows.Close()

	var out []SummaryPoint
	for rows.Next() {
		var sp SummaryPoint
		if err := rows.Scan(&sp.Day, &sp.ActualCostSEK, &sp.HypotheticalCostSEK, &sp.SavingsSEK, &sp.SOCCarryAdjustmentSEK); err != nil {
			return nil, fmt.Errorf("evaluator: scan summary point: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evaluator: iterate summary points: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
