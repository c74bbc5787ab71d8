package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/charquest/ml-service/internal/characters"
	"github.com/charquest/ml-service/internal/storage"
	"github.com/charquest/ml-service/internal/storage/models"
)

// SnapshotStore persists serialized model state.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *models.ModelSnapshot) error
	Latest(ctx context.Context, kind string) (*models.ModelSnapshot, error)
}

// RunStore records training run history.
type RunStore interface {
	Record(ctx context.Context, run *models.TrainingRun) error
}

// ServiceOptions configures a Service. All fields are optional: a
// zero-value Service trains and predicts in memory only.
type ServiceOptions struct {
	// Snapshots, when set, receives a snapshot of each model after a
	// successful training run.
	Snapshots SnapshotStore

	// Runs, when set, receives one history row per training run.
	Runs RunStore

	// Encryption, when set, seals snapshot blobs before they reach the
	// store and unseals them on load.
	Encryption *storage.EncryptionConfig

	// Linear configures the difficulty regressor sibling.
	Linear LinearOptions
}

// Service owns the trained models and serializes access to them.
// Training and loading take the write lock; predictions and
// introspection share the read lock, so a training run never exposes
// half-updated state to readers.
type Service struct {
	mu sync.RWMutex

	config *ModelConfig
	opts   ServiceOptions

	tree      *CharacterTree
	regressor *DifficultyRegressor
	bayes     *NaiveBayes
}

// NewService creates a Service with untrained models.
func NewService(config *ModelConfig, opts ServiceOptions) *Service {
	if config == nil {
		config = DefaultModelConfig()
	}
	return &Service{
		config:    config,
		opts:      opts,
		tree:      NewCharacterTree(config),
		regressor: NewDifficultyRegressor(),
		bayes:     NewNaiveBayes(),
	}
}

// Train fits all three models from the records, then persists
// snapshots and a run row when stores are configured. Persistence
// failures are logged and do not fail the training run.
func (s *Service) Train(ctx context.Context, records []characters.Character) (*TrainingMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now().UTC()

	tree := NewCharacterTree(s.config)
	metrics, err := tree.Train(records)
	if err != nil {
		return nil, err
	}

	regressor := NewDifficultyRegressor()
	linearMetrics, err := regressor.Train(records, s.opts.Linear)
	if err != nil {
		return nil, fmt.Errorf("difficulty regressor: %w", err)
	}

	bayes := NewNaiveBayes()
	if _, err := bayes.Train(records); err != nil {
		return nil, fmt.Errorf("naive bayes: %w", err)
	}

	s.tree = tree
	s.regressor = regressor
	s.bayes = bayes

	s.persistRun(ctx, metrics, linearMetrics, started)

	return metrics, nil
}

func (s *Service) persistRun(ctx context.Context, metrics *TrainingMetrics, linearMetrics *LinearMetrics, started time.Time) {
	var snapshotID string

	if s.opts.Snapshots != nil {
		snapshotID = s.saveSnapshots(ctx)
	}

	if s.opts.Runs == nil {
		return
	}

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		log.Printf("training run metrics encode failed: %v", err)
		metricsJSON = nil
	}

	accuracy := metrics.Classifier.TestAccuracy
	r2 := linearMetrics.TrainR2
	run := &models.TrainingRun{
		SnapshotID:         snapshotID,
		NSamples:           metrics.NTrainingSamples + metrics.NTestSamples,
		ClassifierAccuracy: &accuracy,
		DifficultyR2:       &r2,
		DegradedSplit:      metrics.DegradedSplit,
		MetricsJSON:        string(metricsJSON),
		StartedAt:          started,
		CompletedAt:        time.Now().UTC(),
	}
	if err := s.opts.Runs.Record(ctx, run); err != nil {
		log.Printf("training run record failed: %v", err)
	}
}

// saveSnapshots persists each model and returns the tree snapshot ID
// for the run row. Failed saves are logged and skipped.
func (s *Service) saveSnapshots(ctx context.Context) string {
	treeID := s.saveSnapshot(ctx, models.SnapshotKindCharacterTree, s.tree.Serialize)
	s.saveSnapshot(ctx, models.SnapshotKindDifficultyRegressor, s.regressor.Serialize)
	s.saveSnapshot(ctx, models.SnapshotKindNaiveBayes, s.bayes.Serialize)
	return treeID
}

func (s *Service) saveSnapshot(ctx context.Context, kind string, serialize func() ([]byte, error)) string {
	blob, err := serialize()
	if err != nil {
		log.Printf("snapshot %s serialize failed: %v", kind, err)
		return ""
	}

	encrypted := false
	if s.opts.Encryption != nil {
		sealed, err := storage.EncryptData(blob, s.opts.Encryption)
		if err != nil {
			log.Printf("snapshot %s encrypt failed: %v", kind, err)
			return ""
		}
		blob = sealed
		encrypted = true
	}

	snapshot := &models.ModelSnapshot{
		Kind:          kind,
		FormatVersion: stateFormatVersion,
		Encrypted:     encrypted,
		Blob:          blob,
	}
	if err := s.opts.Snapshots.Save(ctx, snapshot); err != nil {
		log.Printf("snapshot %s save failed: %v", kind, err)
		return ""
	}
	return snapshot.ID
}

// LoadLatest restores the most recent snapshots from the store. It
// returns true when a character tree snapshot was found and loaded.
// Missing sibling snapshots leave those models untrained.
func (s *Service) LoadLatest(ctx context.Context) (bool, error) {
	if s.opts.Snapshots == nil {
		return false, fmt.Errorf("no snapshot store configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	treeBlob, err := s.fetchBlob(ctx, models.SnapshotKindCharacterTree)
	if err != nil {
		return false, err
	}
	if treeBlob == nil {
		return false, nil
	}

	tree := NewCharacterTree(s.config)
	if err := tree.Deserialize(treeBlob); err != nil {
		return false, fmt.Errorf("character tree snapshot: %w", err)
	}

	regressor := NewDifficultyRegressor()
	if blob, err := s.fetchBlob(ctx, models.SnapshotKindDifficultyRegressor); err != nil {
		return false, err
	} else if blob != nil {
		if err := regressor.Deserialize(blob); err != nil {
			return false, fmt.Errorf("difficulty regressor snapshot: %w", err)
		}
	}

	bayes := NewNaiveBayes()
	if blob, err := s.fetchBlob(ctx, models.SnapshotKindNaiveBayes); err != nil {
		return false, err
	} else if blob != nil {
		if err := bayes.Deserialize(blob); err != nil {
			return false, fmt.Errorf("naive bayes snapshot: %w", err)
		}
	}

	s.tree = tree
	s.regressor = regressor
	s.bayes = bayes
	return true, nil
}

func (s *Service) fetchBlob(ctx context.Context, kind string) ([]byte, error) {
	snapshot, err := s.opts.Snapshots.Latest(ctx, kind)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}

	blob := snapshot.Blob
	if snapshot.Encrypted {
		if s.opts.Encryption == nil {
			return nil, fmt.Errorf("snapshot %s is encrypted but no password is configured", kind)
		}
		blob, err = storage.DecryptData(blob, s.opts.Encryption)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", kind, err)
		}
	}
	return blob, nil
}

// LoadBlob replaces the character tree from a serialized blob, e.g.
// one produced by SaveFile.
func (s *Service) LoadBlob(data []byte) error {
	tree := NewCharacterTree(s.config)
	if err := tree.Deserialize(data); err != nil {
		return err
	}

	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
	return nil
}

// Trained reports whether the character tree is ready to predict.
func (s *Service) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Trained()
}

// PredictCharacter ranks candidate characters for a record.
func (s *Service) PredictCharacter(record characters.Character, topK int) ([]Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.PredictCharacter(record, topK)
}

// PredictDifficulty estimates tree-based difficulty for a record.
func (s *Service) PredictDifficulty(record characters.Character) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.PredictDifficulty(record)
}

// PredictGuessCount estimates the linear guess-count difficulty.
func (s *Service) PredictGuessCount(record characters.Character) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regressor.Predict(record)
}

// PredictGenre ranks genre labels for a record.
func (s *Service) PredictGenre(record characters.Character, topK int) ([]FieldPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bayes.PredictGenre(record, topK)
}

// PredictUniverse ranks universe labels for a record.
func (s *Service) PredictUniverse(record characters.Character, topK int) ([]FieldPrediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bayes.PredictUniverse(record, topK)
}

// Metrics returns the metrics of the last completed training run, or
// nil before the first run.
func (s *Service) Metrics() *TrainingMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Metrics()
}

// Info summarizes the current model state.
func (s *Service) Info() *ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Info()
}

// FeatureImportance returns the top weighted classifier features.
func (s *Service) FeatureImportance(topN int) ([]FeatureImportance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.FeatureImportance(topN)
}

// DecisionRules renders the classifier's decision paths as text.
func (s *Service) DecisionRules(maxDepth int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.DecisionRules(maxDepth)
}

// RenderDiagram renders a tree diagram as base64-encoded HTML.
func (s *Service) RenderDiagram(which string, maxDepth int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.RenderDiagram(which, maxDepth)
}

// ImportanceChart renders the feature importance bar chart as an HTML
// document.
func (s *Service) ImportanceChart(topN int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.ImportanceChart(topN)
}

// Serialize encodes the character tree state for file export.
func (s *Service) Serialize() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Serialize()
}
