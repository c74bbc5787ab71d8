// Package models defines the data structures persisted by the storage
// layer.
package models

import "time"

// Snapshot kinds recognized by the snapshot repository.
const (
	SnapshotKindCharacterTree       = "character_tree"
	SnapshotKindDifficultyRegressor = "difficulty_regressor"
	SnapshotKindNaiveBayes          = "naive_bayes"
)

// ModelSnapshot is one serialized trained model. Blob holds the
// model's own serialization format; Encrypted marks blobs sealed with
// the storage encryption helpers.
type ModelSnapshot struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	FormatVersion int       `json:"format_version"`
	Encrypted     bool      `json:"encrypted"`
	Blob          []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrainingRun records one completed training pass and the snapshot it
// produced.
type TrainingRun struct {
	ID                 string    `json:"id"`
	SnapshotID         string    `json:"snapshot_id,omitempty"`
	NSamples           int       `json:"n_samples"`
	ClassifierAccuracy *float64  `json:"classifier_accuracy,omitempty"`
	DifficultyR2       *float64  `json:"difficulty_r2,omitempty"`
	DegradedSplit      bool      `json:"degraded_split"`
	MetricsJSON        string    `json:"-"`
	StartedAt          time.Time `json:"started_at"`
	CompletedAt        time.Time `json:"completed_at"`
}
