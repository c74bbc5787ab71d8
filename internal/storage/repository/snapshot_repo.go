// Package repository implements SQL-backed data access for model
// snapshots and training history.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/charquest/ml-service/internal/storage/models"
)

// SnapshotRepository handles persisted model snapshot operations.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save inserts a snapshot. A missing ID or CreatedAt is filled in.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.ModelSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO model_snapshots (id, kind, format_version, encrypted, blob, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ID, snapshot.Kind, snapshot.FormatVersion, snapshot.Encrypted,
		snapshot.Blob, snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot of the given kind, or nil
// when none exists.
func (r *SnapshotRepository) Latest(ctx context.Context, kind string) (*models.ModelSnapshot, error) {
	query := `
		SELECT id, kind, format_version, encrypted, blob, created_at
		FROM model_snapshots
		WHERE kind = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var snapshot models.ModelSnapshot
	err := r.db.QueryRowContext(ctx, query, kind).Scan(
		&snapshot.ID, &snapshot.Kind, &snapshot.FormatVersion, &snapshot.Encrypted,
		&snapshot.Blob, &snapshot.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// Get returns a snapshot by ID, or nil when it does not exist.
func (r *SnapshotRepository) Get(ctx context.Context, id string) (*models.ModelSnapshot, error) {
	query := `
		SELECT id, kind, format_version, encrypted, blob, created_at
		FROM model_snapshots
		WHERE id = ?
	`

	var snapshot models.ModelSnapshot
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&snapshot.ID, &snapshot.Kind, &snapshot.FormatVersion, &snapshot.Encrypted,
		&snapshot.Blob, &snapshot.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snapshot, nil
}

// List returns snapshot metadata of the given kind, newest first. The
// blob column is not loaded. A non-positive limit returns all rows.
func (r *SnapshotRepository) List(ctx context.Context, kind string, limit int) ([]*models.ModelSnapshot, error) {
	query := `
		SELECT id, kind, format_version, encrypted, created_at
		FROM model_snapshots
		WHERE kind = ?
		ORDER BY created_at DESC, id DESC
	`
	args := []any{kind}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Ignore error on cleanup

	var snapshots []*models.ModelSnapshot
	for rows.Next() {
		var snapshot models.ModelSnapshot
		if err := rows.Scan(
			&snapshot.ID, &snapshot.Kind, &snapshot.FormatVersion,
			&snapshot.Encrypted, &snapshot.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot rows: %w", err)
	}
	return snapshots, nil
}

// Prune deletes snapshots of the given kind beyond the newest keep
// rows. It returns the number of deleted snapshots.
func (r *SnapshotRepository) Prune(ctx context.Context, kind string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM model_snapshots
		WHERE kind = ? AND id NOT IN (
			SELECT id FROM model_snapshots
			WHERE kind = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`

	result, err := r.db.ExecContext(ctx, query, kind, kind, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned snapshots: %w", err)
	}
	return int(deleted), nil
}
