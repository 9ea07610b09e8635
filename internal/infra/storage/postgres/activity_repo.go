package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/daybook-dev/daybook/internal/core/domain"
)

// ActivityRepo persists normalized activities.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates an activity repository.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

type activityRow struct {
	ID          string    `db:"id"`
	Source      string    `db:"source"`
	Kind        string    `db:"kind"`
	Timestamp   time.Time `db:"ts"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Author      string    `db:"author"`
	AuthorEmail string    `db:"author_email"`
	URL         string    `db:"url"`
	Project     string    `db:"project"`
	Metadata    []byte    `db:"metadata"`
	RunID       string    `db:"run_id"`
}

const upsertActivity = `
INSERT INTO activities (id, source, kind, ts, title, description, author, author_email, url, project, metadata, run_id)
VALUES (:id, :source, :kind, :ts, :title, :description, :author, :author_email, :url, :project, :metadata, :run_id)
ON CONFLICT (id) DO UPDATE SET
	ts = EXCLUDED.ts,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	metadata = EXCLUDED.metadata,
	run_id = EXCLUDED.run_id`

// Upsert stores activities, replacing earlier versions of the same
// items so a re-run of the same day stays idempotent.
func (r *ActivityRepo) Upsert(ctx context.Context, runID string, activities []domain.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, a := range activities {
		row, err := toRow(a, runID)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, upsertActivity, row); err != nil {
			return fmt.Errorf("failed to upsert activity %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// ListByWindow returns activities inside the window, oldest first.
func (r *ActivityRepo) ListByWindow(ctx context.Context, w domain.ReportWindow) ([]domain.Activity, error) {
	var rows []activityRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, source, kind, ts, title, description, author, author_email, url, project, metadata, run_id
		 FROM activities WHERE ts >= $1 AND ts <= $2 ORDER BY ts`,
		w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}

	activities := make([]domain.Activity, 0, len(rows))
	for _, row := range rows {
		a, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, nil
}

func toRow(a domain.Activity, runID string) (activityRow, error) {
	metadata := []byte("{}")
	if len(a.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(a.Metadata)
		if err != nil {
			return activityRow{}, fmt.Errorf("failed to marshal metadata for %s: %w", a.ID, err)
		}
	}
	return activityRow{
		ID:          a.ID,
		Source:      string(a.Source),
		Kind:        string(a.Kind),
		Timestamp:   a.Timestamp.UTC(),
		Title:       a.Title,
		Description: a.Description,
		Author:      a.Author,
		AuthorEmail: a.AuthorEmail,
		URL:         a.URL,
		Project:     a.Project,
		Metadata:    metadata,
		RunID:       runID,
	}, nil
}

func fromRow(row activityRow) (domain.Activity, error) {
	var metadata map[string]any
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return domain.Activity{}, fmt.Errorf("failed to unmarshal metadata for %s: %w", row.ID, err)
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}
	return domain.Activity{
		ID:          row.ID,
		Source:      domain.SourceType(row.Source),
		Kind:        domain.ActivityKind(row.Kind),
		Timestamp:   row.Timestamp.UTC(),
		Title:       row.Title,
		Description: row.Description,
		Author:      row.Author,
		AuthorEmail: row.AuthorEmail,
		URL:         row.URL,
		Project:     row.Project,
		Metadata:    metadata,
	}, nil
}
