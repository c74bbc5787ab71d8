package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/charquest/ml-service/internal/storage/models"
)

// TrainingRunRepository handles training run history operations.
type TrainingRunRepository struct {
	db *sql.DB
}

// NewTrainingRunRepository creates a new TrainingRunRepository.
func NewTrainingRunRepository(db *sql.DB) *TrainingRunRepository {
	return &TrainingRunRepository{db: db}
}

// Record inserts a completed training run. A missing ID is filled in.
func (r *TrainingRunRepository) Record(ctx context.Context, run *models.TrainingRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CompletedAt.IsZero() {
		run.CompletedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO training_runs
			(id, snapshot_id, n_samples, classifier_accuracy, difficulty_r2,
			 degraded_split, metrics_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var snapshotID any
	if run.SnapshotID != "" {
		snapshotID = run.SnapshotID
	}

	_, err := r.db.ExecContext(ctx, query,
		run.ID, snapshotID, run.NSamples, run.ClassifierAccuracy, run.DifficultyR2,
		run.DegradedSplit, run.MetricsJSON, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record training run: %w", err)
	}
	return nil
}

// Latest returns the most recently completed run, or nil when none
// exists.
func (r *TrainingRunRepository) Latest(ctx context.Context) (*models.TrainingRun, error) {
	query := `
		SELECT id, snapshot_id, n_samples, classifier_accuracy, difficulty_r2,
		       degraded_split, metrics_json, started_at, completed_at
		FROM training_runs
		ORDER BY completed_at DESC, id DESC
		LIMIT 1
	`

	run, err := scanTrainingRun(r.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest training run: %w", err)
	}
	return run, nil
}

// List returns completed runs, newest first. A non-positive limit
// returns all rows.
func (r *TrainingRunRepository) List(ctx context.Context, limit int) ([]*models.TrainingRun, error) {
	query := `
		SELECT id, snapshot_id, n_samples, classifier_accuracy, difficulty_r2,
		       degraded_split, metrics_json, started_at, completed_at
		FROM training_runs
		ORDER BY completed_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Ignore error on cleanup

	var runs []*models.TrainingRun
	for rows.Next() {
		run, err := scanTrainingRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training run rows: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrainingRun(row rowScanner) (*models.TrainingRun, error) {
	var run models.TrainingRun
	var snapshotID sql.NullString
	var metrics sql.NullString

	err := row.Scan(
		&run.ID, &snapshotID, &run.NSamples, &run.ClassifierAccuracy,
		&run.DifficultyR2, &run.DegradedSplit, &metrics,
		&run.StartedAt, &run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	run.SnapshotID = snapshotID.String
	run.MetricsJSON = metrics.String
	return &run, nil
}
