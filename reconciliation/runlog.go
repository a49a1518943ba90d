package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxPersistedErrors caps the error list stored per run; the count fields
// still reflect the full totals.
const maxPersistedErrors = 20

// ErrRunNotFound is returned when no run exists for the requested date.
var ErrRunNotFound = errors.New("reconciliation: run not found")

// RunRepository persists reconciliation run summaries.
type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// Create writes one completed run summary.
func (r *RunRepository) Create(ctx context.Context, run Run) error {
	errs := run.Errors
	if len(errs) > maxPersistedErrors {
		errs = errs[:maxPersistedErrors]
	}
	if errs == nil {
		errs = []RunError{}
	}
	body, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("reconciliation: marshal run errors: %w", err)
	}

	const query = `
		INSERT INTO reconciliation_runs
			(id, run_date, processed, successful, unpaid, not_found, errors, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Date,
		run.Processed,
		run.Successful,
		run.Unpaid,
		run.NotFound,
		body,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("reconciliation: insert run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent run for a business date, so an operator
// or a re-trigger guard can see what the last attempt did.
func (r *RunRepository) LatestRun(ctx context.Context, date time.Time) (Run, error) {
	const query = `
		SELECT id, run_date, processed, successful, unpaid, not_found, errors, started_at, completed_at
		FROM reconciliation_runs
		WHERE run_date = $1
		ORDER BY started_at DESC
		LIMIT 1
	`
	var (
		run  Run
		body []byte
	)
	err := r.pool.QueryRow(ctx, query, date).Scan(
		&run.ID,
		&run.Date,
		&run.Processed,
		&run.Successful,
		&run.Unpaid,
		&run.NotFound,
		&body,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("reconciliation: latest run: %w", err)
	}
	if err := json.Unmarshal(body, &run.Errors); err != nil {
		return Run{}, fmt.Errorf("reconciliation: unmarshal run errors: %w", err)
	}
	return run, nil
}
