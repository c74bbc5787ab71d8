package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// stateFormatVersion identifies the serialized state layout. Blobs
// written with a different version are rejected as corrupt rather than
// partially loaded.
const stateFormatVersion = 1

// modelState is the serialized form of a CharacterTree: every fitted
// sub-component travels together as one atomic unit.
type modelState struct {
	FormatVersion     int               `json:"format_version"`
	Config            *ModelConfig      `json:"config"`
	Assembler         *FeatureAssembler `json:"assembler"`
	LabelEncoder      *LabelEncoder     `json:"label_encoder"`
	Classifier        *DecisionTree     `json:"classifier"`
	Regressor         *DecisionTree     `json:"regressor"`
	ClassNames        []string          `json:"class_names"`
	TrainedClassifier bool              `json:"trained_classifier"`
	TrainedRegressor  bool              `json:"trained_regressor"`
	Metrics           *TrainingMetrics  `json:"metrics"`
}

// Serialize encodes the full fitted state as one JSON blob.
func (m *CharacterTree) Serialize() ([]byte, error) {
	state := modelState{
		FormatVersion:     stateFormatVersion,
		Config:            m.config,
		Assembler:         m.assembler,
		LabelEncoder:      m.labelEncoder,
		Classifier:        m.classifier,
		Regressor:         m.regressor,
		ClassNames:        m.classNames,
		TrainedClassifier: m.trainedClassifier,
		TrainedRegressor:  m.trainedRegressor,
		Metrics:           m.metrics,
	}

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize model state: %w", err)
	}
	return data, nil
}

// Deserialize replaces the full fitted state from a blob produced by
// Serialize. Loading is all-or-nothing: the blob is decoded and
// validated into a detached state first, so a corrupt blob never
// leaves the model partially mutated.
func (m *CharacterTree) Deserialize(data []byte) error {
	state := modelState{
		Assembler:    NewFeatureAssembler(0),
		LabelEncoder: NewLabelEncoder("character"),
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	if state.FormatVersion != stateFormatVersion {
		return fmt.Errorf("%w: format version %d, expected %d", ErrCorruptState, state.FormatVersion, stateFormatVersion)
	}
	if state.Config == nil || state.Assembler == nil || state.LabelEncoder == nil {
		return fmt.Errorf("%w: missing required fields", ErrCorruptState)
	}
	if state.TrainedClassifier && (state.Classifier == nil || len(state.Classifier.Nodes) == 0) {
		return fmt.Errorf("%w: trained classifier flag set but no classifier present", ErrCorruptState)
	}
	if state.TrainedRegressor && (state.Regressor == nil || len(state.Regressor.Nodes) == 0) {
		return fmt.Errorf("%w: trained regressor flag set but no regressor present", ErrCorruptState)
	}
	if state.TrainedClassifier && !state.Assembler.Fitted() {
		return fmt.Errorf("%w: trained model without fitted feature assembler", ErrCorruptState)
	}

	m.config = state.Config
	m.assembler = state.Assembler
	m.labelEncoder = state.LabelEncoder
	m.classifier = state.Classifier
	m.regressor = state.Regressor
	m.classNames = state.ClassNames
	m.trainedClassifier = state.TrainedClassifier
	m.trainedRegressor = state.TrainedRegressor
	m.metrics = state.Metrics
	return nil
}

// SaveFile writes the serialized state to disk via a temporary file
// and rename, so readers never observe a half-written blob.
func (m *CharacterTree) SaveFile(path string) error {
	data, err := m.Serialize()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close model file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move model file into place: %w", err)
	}
	return nil
}

// LoadFile reads a serialized state from disk and replaces the current
// state.
func (m *CharacterTree) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}
	return m.Deserialize(data)
}
