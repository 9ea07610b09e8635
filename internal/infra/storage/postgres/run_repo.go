package postgres

import (
	"context"
	"fmt"
	"time"
)

// Run records one collection run for auditing and incremental reports.
type Run struct {
	ID              string    `db:"id"`
	WindowStart     time.Time `db:"window_start"`
	WindowEnd       time.Time `db:"window_end"`
	StartedAt       time.Time `db:"started_at"`
	FinishedAt      time.Time `db:"finished_at"`
	ActivityCount   int       `db:"activity_count"`
	SkippedProjects int       `db:"skipped_projects"`
	Status          string    `db:"status"`
}

// Run statuses.
const (
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// RunRepo persists collection runs.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert stores a finished run.
func (r *RunRepo) Insert(ctx context.Context, run Run) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO runs (id, window_start, window_end, started_at, finished_at, activity_count, skipped_projects, status)
		 VALUES (:id, :window_start, :window_end, :started_at, :finished_at, :activity_count, :skipped_projects, :status)`,
		run)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Latest returns the most recent runs, newest first.
func (r *RunRepo) Latest(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []Run
	err := r.db.SelectContext(ctx, &runs,
		`SELECT id, window_start, window_end, started_at, finished_at, activity_count, skipped_projects, status
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
