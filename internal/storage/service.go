package storage

import (
	"github.com/charquest/ml-service/internal/storage/repository"
)

// Service bundles the database connection with its repositories.
type Service struct {
	db *DB

	Snapshots    *repository.SnapshotRepository
	TrainingRuns *repository.TrainingRunRepository
}

// NewService creates a Service over an open database.
func NewService(db *DB) *Service {
	return &Service{
		db:           db,
		Snapshots:    repository.NewSnapshotRepository(db.Conn()),
		TrainingRuns: repository.NewTrainingRunRepository(db.Conn()),
	}
}

// DB returns the underlying database handle.
func (s *Service) DB() *DB {
	return s.db
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}
