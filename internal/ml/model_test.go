package ml

import (
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"testing"
)

func trainedTestModel(t *testing.T) *CharacterTree {
	t.Helper()
	model := NewCharacterTree(nil)
	if _, err := model.Train(testRecords()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return model
}

func TestTrainSmallDatasetDegradesSplit(t *testing.T) {
	model := NewCharacterTree(nil)

	metrics, err := model.Train(testRecords())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if !model.Trained() {
		t.Error("Trained() = false after successful Train")
	}
	if !metrics.DegradedSplit {
		t.Error("DegradedSplit = false, want true for 3 records")
	}
	if metrics.NTrainingSamples != 3 || metrics.NTestSamples != 0 {
		t.Errorf("sample counts = (%d, %d), want (3, 0) when train and test coincide",
			metrics.NTrainingSamples, metrics.NTestSamples)
	}
	if metrics.Classifier.NClasses != 3 {
		t.Errorf("NClasses = %d, want 3", metrics.Classifier.NClasses)
	}
	if metrics.Classifier.TrainAccuracy != 1.0 {
		t.Errorf("TrainAccuracy = %v, want 1.0 on separable single-sample classes", metrics.Classifier.TrainAccuracy)
	}
	if len(metrics.Classifier.CVScores) != 0 || metrics.Classifier.CVMean != nil {
		t.Error("cross-validation should not run on a degraded split")
	}
}

func TestTrainSampleCountsSumToRecordCount(t *testing.T) {
	records := testRecords()
	model := NewCharacterTree(nil)

	metrics, err := model.Train(records)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if sum := metrics.NTrainingSamples + metrics.NTestSamples; sum != len(records) {
		t.Errorf("NTrainingSamples + NTestSamples = %d, want %d", sum, len(records))
	}
}

func TestPredictCharacterRecoversTrainingRecords(t *testing.T) {
	model := trainedTestModel(t)

	for _, record := range testRecords() {
		preds, err := model.PredictCharacter(record, 3)
		if err != nil {
			t.Fatalf("PredictCharacter(%s) error = %v", record.ID, err)
		}
		if len(preds) == 0 {
			t.Fatalf("PredictCharacter(%s) returned no predictions", record.ID)
		}
		if preds[0].Character != record.ID {
			t.Errorf("top prediction for %s = %s", record.ID, preds[0].Character)
		}
		if preds[0].Probability != 1.0 {
			t.Errorf("top probability for %s = %v, want 1.0 from a pure leaf", record.ID, preds[0].Probability)
		}
	}
}

func TestPredictCharacterContract(t *testing.T) {
	model := trainedTestModel(t)
	record := testRecords()[0]

	preds, err := model.PredictCharacter(record, 10)
	if err != nil {
		t.Fatalf("PredictCharacter() error = %v", err)
	}
	for i, p := range preds {
		if p.Probability <= 0 {
			t.Errorf("prediction %d has non-positive probability %v", i, p.Probability)
		}
		if p.Confidence != p.Probability*100 {
			t.Errorf("prediction %d confidence = %v, want %v", i, p.Confidence, p.Probability*100)
		}
		if i > 0 && preds[i-1].Probability < p.Probability {
			t.Errorf("predictions not sorted by descending probability at %d", i)
		}
	}

	one, err := model.PredictCharacter(record, 1)
	if err != nil {
		t.Fatalf("PredictCharacter(topK=1) error = %v", err)
	}
	if len(one) != 1 {
		t.Errorf("topK=1 returned %d predictions", len(one))
	}
}

func TestPredictCharacterInvalidTopK(t *testing.T) {
	model := trainedTestModel(t)

	if _, err := model.PredictCharacter(testRecords()[0], 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("PredictCharacter(topK=0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestPredictBeforeTraining(t *testing.T) {
	model := NewCharacterTree(nil)
	record := testRecords()[0]

	if _, err := model.PredictCharacter(record, 3); !errors.Is(err, ErrNotTrained) {
		t.Errorf("PredictCharacter() error = %v, want ErrNotTrained", err)
	}
	if _, err := model.PredictDifficulty(record); !errors.Is(err, ErrNotTrained) {
		t.Errorf("PredictDifficulty() error = %v, want ErrNotTrained", err)
	}
	if _, err := model.FeatureImportance(5); !errors.Is(err, ErrNotTrained) {
		t.Errorf("FeatureImportance() error = %v, want ErrNotTrained", err)
	}
	if _, err := model.DecisionRules(3); !errors.Is(err, ErrNotTrained) {
		t.Errorf("DecisionRules() error = %v, want ErrNotTrained", err)
	}
}

func TestTrainRejectsEmptyInput(t *testing.T) {
	model := NewCharacterTree(nil)

	_, err := model.Train(nil)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Train(nil) error = %v, want InsufficientDataError", err)
	}
	if insufficient.Count != 0 {
		t.Errorf("Count = %d, want 0", insufficient.Count)
	}
	if model.Trained() {
		t.Error("model reports trained after failed Train")
	}
}

func TestPredictDifficultyWithinRange(t *testing.T) {
	model := trainedTestModel(t)

	for _, record := range testRecords() {
		got, err := model.PredictDifficulty(record)
		if err != nil {
			t.Fatalf("PredictDifficulty(%s) error = %v", record.ID, err)
		}
		if got < 0 || got > 10 {
			t.Errorf("PredictDifficulty(%s) = %v, outside 0-10", record.ID, got)
		}
	}
}

func TestClipDifficulty(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-1.5, 0},
		{0, 0},
		{5.3, 5.3},
		{10, 10},
		{12.7, 10},
	}
	for _, tt := range tests {
		if got := clipDifficulty(tt.in); got != tt.want {
			t.Errorf("clipDifficulty(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPredictUnknownUniverse(t *testing.T) {
	model := trainedTestModel(t)

	record := testRecords()[0]
	record.Universe = "Dragon Ball"

	if _, err := model.PredictCharacter(record, 3); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("PredictCharacter() error = %v, want ErrUnknownCategory", err)
	}
}

func TestInfoReflectsTraining(t *testing.T) {
	model := NewCharacterTree(nil)

	info := model.Info()
	if info.Trained {
		t.Error("Info().Trained = true before training")
	}

	if _, err := model.Train(testRecords()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	info = model.Info()
	if !info.Trained {
		t.Error("Info().Trained = false after training")
	}
	wantClasses := []string{"batman", "iron-man", "spider-man"}
	if len(info.Classes) != len(wantClasses) {
		t.Fatalf("Classes = %v, want %v", info.Classes, wantClasses)
	}
	for i, want := range wantClasses {
		if info.Classes[i] != want {
			t.Errorf("Classes[%d] = %s, want %s", i, info.Classes[i], want)
		}
	}
	if info.NFeatures != len(info.FeatureNames) {
		t.Errorf("NFeatures = %d, want %d", info.NFeatures, len(info.FeatureNames))
	}
	if !info.DegradedSplit {
		t.Error("Info().DegradedSplit = false, want true for 3 records")
	}
	if len(info.UniverseClasses) != 2 {
		t.Errorf("UniverseClasses = %v, want 2 entries", info.UniverseClasses)
	}
}

func TestFeatureImportanceRanked(t *testing.T) {
	model := trainedTestModel(t)

	ranked, err := model.FeatureImportance(10)
	if err != nil {
		t.Fatalf("FeatureImportance() error = %v", err)
	}
	if len(ranked) == 0 {
		t.Fatal("FeatureImportance() returned nothing for a trained model")
	}

	total := 0.0
	for i, fi := range ranked {
		if fi.Importance <= 0 {
			t.Errorf("importance %d for %s is %v, zero scores must be excluded", i, fi.Feature, fi.Importance)
		}
		if i > 0 && ranked[i-1].Importance < fi.Importance {
			t.Errorf("importances not sorted descending at %d", i)
		}
		total += fi.Importance
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("importances sum to %v, want 1.0", total)
	}

	if _, err := model.FeatureImportance(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("FeatureImportance(0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestDecisionRulesFormat(t *testing.T) {
	model := trainedTestModel(t)

	rules, err := model.DecisionRules(5)
	if err != nil {
		t.Fatalf("DecisionRules() error = %v", err)
	}
	if !strings.Contains(rules, "|--- ") {
		t.Errorf("rules missing branch markers:\n%s", rules)
	}
	if !strings.Contains(rules, "class: ") {
		t.Errorf("rules missing leaf classes:\n%s", rules)
	}

	shallow, err := model.DecisionRules(1)
	if err != nil {
		t.Fatalf("DecisionRules(1) error = %v", err)
	}
	if len(shallow) > len(rules) {
		t.Error("depth-limited rules longer than full rules")
	}
}

func TestRenderDiagram(t *testing.T) {
	model := trainedTestModel(t)

	for _, which := range []string{DiagramClassifier, DiagramRegressor} {
		encoded, err := model.RenderDiagram(which, 3)
		if err != nil {
			t.Fatalf("RenderDiagram(%s) error = %v", which, err)
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			t.Fatalf("RenderDiagram(%s) output is not base64: %v", which, err)
		}
		if len(raw) == 0 {
			t.Errorf("RenderDiagram(%s) produced empty output", which)
		}
	}

	if _, err := model.RenderDiagram("boosted", 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("RenderDiagram(boosted) error = %v, want ErrInvalidArgument", err)
	}
}

func TestImportanceChartRendered(t *testing.T) {
	model := trainedTestModel(t)

	html, err := model.ImportanceChart(5)
	if err != nil {
		t.Fatalf("ImportanceChart() error = %v", err)
	}
	if !strings.Contains(string(html), "Feature Importance") {
		t.Error("chart output missing title")
	}
}
