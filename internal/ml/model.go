// Package ml implements the character classification and difficulty
// estimation models behind the guessing game: feature engineering,
// decision tree training, introspection views, and persistence, plus
// the simpler linear-regression and naive-Bayes siblings.
package ml

import (
	"fmt"
	"sort"

	"github.com/charquest/ml-service/internal/characters"
)

// ModelConfig holds the decision tree hyperparameters and the feature
// space bounds for a CharacterTree.
type ModelConfig struct {
	// Tree hyperparameters shared by the classifier and regressor.
	Tree TreeParams `json:"tree"`

	// VocabSize bounds the TF-IDF vocabulary of the classifier path.
	VocabSize int `json:"vocab_size"`

	// Seed drives every randomized step (split shuffle, CV folds).
	Seed int64 `json:"seed"`
}

// DefaultModelConfig returns the production defaults.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		Tree:      DefaultTreeParams(),
		VocabSize: 50,
		Seed:      42,
	}
}

const (
	// minTrainingRecords is the smallest data set Train accepts.
	minTrainingRecords = 1

	// splitThreshold is the record count above which a genuine
	// train/test split is attempted.
	splitThreshold = 5

	// cvThreshold is the record count at which cross-validation runs.
	cvThreshold = 10

	// testFraction is the held-out share of a genuine split.
	testFraction = 0.2
)

// CharacterTree pairs a decision tree classifier (character identity)
// with a decision tree regressor (difficulty score), trained jointly
// from one feature matrix. It owns exactly one FeatureAssembler
// configuration; encoders and vectorizer are fit once, inside Train,
// and frozen afterwards so training and inference always agree on
// feature indices.
//
// A CharacterTree has no internal locking. The caller serializes Train
// and Deserialize against all other operations (see Service).
type CharacterTree struct {
	config *ModelConfig

	assembler    *FeatureAssembler
	labelEncoder *LabelEncoder
	classifier   *DecisionTree
	regressor    *DecisionTree

	classNames        []string
	trainedClassifier bool
	trainedRegressor  bool
	metrics           *TrainingMetrics
}

// ClassifierMetrics reports classification quality after training.
type ClassifierMetrics struct {
	TrainAccuracy float64   `json:"train_accuracy"`
	TestAccuracy  float64   `json:"test_accuracy"`
	CVScores      []float64 `json:"cv_scores"`
	CVMean        *float64  `json:"cv_mean"`
	CVStd         *float64  `json:"cv_std"`
	NClasses      int       `json:"n_classes"`
	NFeatures     int       `json:"n_features"`
	TreeDepth     int       `json:"tree_depth"`
	NLeaves       int       `json:"n_leaves"`
}

// RegressorMetrics reports regression quality after training.
type RegressorMetrics struct {
	TrainR2   float64 `json:"train_r2"`
	TestR2    float64 `json:"test_r2"`
	TreeDepth int     `json:"tree_depth"`
	NLeaves   int     `json:"n_leaves"`
}

// TrainingMetrics is the result of one training run. DegradedSplit is
// true when the data set was too small or imbalanced for a genuine
// split; the train and test partitions are then identical and test
// metrics must not be over-interpreted.
type TrainingMetrics struct {
	Classifier       ClassifierMetrics `json:"classifier"`
	Regressor        RegressorMetrics  `json:"regressor"`
	NTrainingSamples int               `json:"n_training_samples"`
	NTestSamples     int               `json:"n_test_samples"`
	DegradedSplit    bool              `json:"degraded_split"`
}

// Prediction is one ranked classification result.
type Prediction struct {
	Character   string  `json:"character"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

// NewCharacterTree creates an untrained model.
func NewCharacterTree(config *ModelConfig) *CharacterTree {
	if config == nil {
		config = DefaultModelConfig()
	}
	return &CharacterTree{
		config:       config,
		assembler:    NewFeatureAssembler(config.VocabSize),
		labelEncoder: NewLabelEncoder("character"),
	}
}

// Config returns the model configuration.
func (m *CharacterTree) Config() *ModelConfig {
	return m.config
}

// Trained reports whether both models have been fit.
func (m *CharacterTree) Trained() bool {
	return m.trainedClassifier && m.trainedRegressor
}

// Train fits both models from the given records and transitions the
// model to the trained state. Encoders and the vectorizer are re-fit
// from scratch on every call, so the frozen feature space always
// matches the trees grown from it; the previous fitted state is
// replaced only after every training step has succeeded.
func (m *CharacterTree) Train(records []characters.Character) (*TrainingMetrics, error) {
	if len(records) < minTrainingRecords {
		return nil, &InsufficientDataError{Count: len(records), Min: minTrainingRecords}
	}

	assembler := NewFeatureAssembler(m.config.VocabSize)
	x, ids, difficulties, err := assembler.Assemble(records, true)
	if err != nil {
		return nil, err
	}

	labelEncoder := NewLabelEncoder("character")
	labelEncoder.Fit(ids)
	codes, err := labelEncoder.Transform(ids)
	if err != nil {
		return nil, err
	}

	yClass := make([]float64, len(codes))
	classTotals := make(map[int]int, len(codes))
	for i, code := range codes {
		yClass[i] = float64(code)
		classTotals[code]++
	}

	canSplit := len(records) > splitThreshold
	for _, count := range classTotals {
		if count < 2 {
			canSplit = false
			break
		}
	}

	var trainIdx, testIdx []int
	if canSplit {
		trainIdx, testIdx = stratifiedSplit(codes, testFraction, m.config.Seed)
	} else {
		trainIdx = make([]int, len(records))
		for i := range trainIdx {
			trainIdx[i] = i
		}
		testIdx = trainIdx
	}

	gather := func(indices []int, y []float64) ([][]float64, []float64) {
		gx := make([][]float64, len(indices))
		gy := make([]float64, len(indices))
		for i, idx := range indices {
			gx[i] = x[idx]
			gy[i] = y[idx]
		}
		return gx, gy
	}

	nClasses := len(labelEncoder.Classes())

	classifier := newDecisionTree(TreeClassifier, m.config.Tree, nClasses)
	trainX, trainYClass := gather(trainIdx, yClass)
	if err := classifier.Fit(trainX, trainYClass); err != nil {
		return nil, err
	}

	regressor := newDecisionTree(TreeRegressor, m.config.Tree, 0)
	_, trainYReg := gather(trainIdx, difficulties)
	if err := regressor.Fit(trainX, trainYReg); err != nil {
		return nil, err
	}

	// On a degraded split the full set doubles as the evaluation
	// partition; report it once so the sample counts sum to the record
	// count.
	nTest := len(testIdx)
	if !canSplit {
		nTest = 0
	}

	metrics := &TrainingMetrics{
		Classifier: ClassifierMetrics{
			TrainAccuracy: accuracyScore(classifier, x, yClass, trainIdx),
			TestAccuracy:  accuracyScore(classifier, x, yClass, testIdx),
			CVScores:      []float64{},
			NClasses:      nClasses,
			NFeatures:     assembler.Width(),
			TreeDepth:     classifier.Depth(),
			NLeaves:       classifier.LeafCount(),
		},
		Regressor: RegressorMetrics{
			TrainR2:   r2Score(regressor, x, difficulties, trainIdx),
			TestR2:    r2Score(regressor, x, difficulties, testIdx),
			TreeDepth: regressor.Depth(),
			NLeaves:   regressor.LeafCount(),
		},
		NTrainingSamples: len(trainIdx),
		NTestSamples:     nTest,
		DegradedSplit:    !canSplit,
	}

	if canSplit && len(records) >= cvThreshold {
		k := nClasses
		if k > 5 {
			k = 5
		}
		if k >= 2 {
			scores := crossValAccuracy(m.config.Tree, x, yClass, nClasses, k, m.config.Seed)
			if len(scores) > 0 {
				mean, std := meanStd(scores)
				metrics.Classifier.CVScores = scores
				metrics.Classifier.CVMean = &mean
				metrics.Classifier.CVStd = &std
			}
		}
	}

	m.assembler = assembler
	m.labelEncoder = labelEncoder
	m.classifier = classifier
	m.regressor = regressor
	m.classNames = labelEncoder.Classes()
	m.trainedClassifier = true
	m.trainedRegressor = true
	m.metrics = metrics

	return metrics, nil
}

// PredictCharacter ranks the topK most likely character identities for
// a record. Only labels with positive probability are returned, in
// non-increasing probability order; ties keep class-code order.
func (m *CharacterTree) PredictCharacter(record characters.Character, topK int) ([]Prediction, error) {
	if !m.trainedClassifier {
		return nil, ErrNotTrained
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}

	features, err := m.assembler.AssembleOne(record)
	if err != nil {
		return nil, err
	}

	probs := m.classifier.PredictProba(features)

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})

	predictions := make([]Prediction, 0, topK)
	for _, classCode := range order {
		if len(predictions) == topK || probs[classCode] <= 0 {
			break
		}
		predictions = append(predictions, Prediction{
			Character:   m.classNames[classCode],
			Probability: probs[classCode],
			Confidence:  probs[classCode] * 100,
		})
	}
	return predictions, nil
}

// PredictDifficulty estimates a record's difficulty, clipped to the
// valid 0-10 range.
func (m *CharacterTree) PredictDifficulty(record characters.Character) (float64, error) {
	if !m.trainedRegressor {
		return 0, ErrNotTrained
	}

	features, err := m.assembler.AssembleOne(record)
	if err != nil {
		return 0, err
	}
	return clipDifficulty(m.regressor.Predict(features)), nil
}

// clipDifficulty clamps a raw regression output to the 0-10 scale.
func clipDifficulty(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// Metrics returns the metrics of the most recent training run, or nil
// before training.
func (m *CharacterTree) Metrics() *TrainingMetrics {
	return m.metrics
}

// ClassNames returns the sorted character identities the classifier
// knows about.
func (m *CharacterTree) ClassNames() []string {
	out := make([]string, len(m.classNames))
	copy(out, m.classNames)
	return out
}

// ModelInfo summarizes the fitted state for status endpoints.
type ModelInfo struct {
	Trained          bool     `json:"trained"`
	NClasses         int      `json:"n_classes"`
	Classes          []string `json:"classes"`
	NFeatures        int      `json:"n_features"`
	FeatureNames     []string `json:"feature_names"`
	TrainAccuracy    float64  `json:"train_accuracy"`
	TestAccuracy     float64  `json:"test_accuracy"`
	TrainR2          float64  `json:"train_r2"`
	TestR2           float64  `json:"test_r2"`
	CVMean           *float64 `json:"cv_mean"`
	ClassifierDepth  int      `json:"classifier_depth"`
	ClassifierLeaves int      `json:"classifier_leaves"`
	RegressorDepth   int      `json:"regressor_depth"`
	RegressorLeaves  int      `json:"regressor_leaves"`
	DegradedSplit    bool     `json:"degraded_split"`
	UniverseClasses  []string `json:"universe_classes"`
	GenreClasses     []string `json:"genre_classes"`
}

// Info reports the current fitted state.
func (m *CharacterTree) Info() *ModelInfo {
	info := &ModelInfo{
		Trained:      m.Trained(),
		Classes:      m.ClassNames(),
		NClasses:     len(m.classNames),
		NFeatures:    len(m.assembler.FeatureNames()),
		FeatureNames: m.assembler.FeatureNames(),
	}
	if m.assembler.Fitted() {
		info.UniverseClasses = m.assembler.UniverseClasses()
		info.GenreClasses = m.assembler.GenreClasses()
	}
	if m.metrics != nil {
		info.TrainAccuracy = m.metrics.Classifier.TrainAccuracy
		info.TestAccuracy = m.metrics.Classifier.TestAccuracy
		info.TrainR2 = m.metrics.Regressor.TrainR2
		info.TestR2 = m.metrics.Regressor.TestR2
		info.CVMean = m.metrics.Classifier.CVMean
		info.ClassifierDepth = m.metrics.Classifier.TreeDepth
		info.ClassifierLeaves = m.metrics.Classifier.NLeaves
		info.RegressorDepth = m.metrics.Regressor.TreeDepth
		info.RegressorLeaves = m.metrics.Regressor.NLeaves
		info.DegradedSplit = m.metrics.DegradedSplit
	}
	return info
}
