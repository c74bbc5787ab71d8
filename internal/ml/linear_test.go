package ml

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/charquest/ml-service/internal/characters"
)

func TestGenerateSyntheticScoresDeterministic(t *testing.T) {
	records := testRecords()

	first := GenerateSyntheticScores(records, 42, 0.5)
	second := GenerateSyntheticScores(records, 42, 0.5)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed produced different scores: %v vs %v", first, second)
	}

	other := GenerateSyntheticScores(records, 7, 0.5)
	if reflect.DeepEqual(first, other) {
		t.Error("different seeds produced identical noisy scores")
	}
}

func TestGenerateSyntheticScoresClamped(t *testing.T) {
	records := []characters.Character{
		{ID: "stacked", Name: "An Extremely Long Character Name", Powers: make([]string, 40)},
		{ID: "plain", Name: "Spider-Man", Aliases: make([]string, 30)},
	}

	scores := GenerateSyntheticScores(records, 1, 0)
	if scores[0] != 15 {
		t.Errorf("power-stacked score = %v, want clamp at 15", scores[0])
	}
	if scores[1] != 1 {
		t.Errorf("alias-stacked score = %v, want clamp at 1", scores[1])
	}
}

func TestGenerateSyntheticScoresPopularDiscount(t *testing.T) {
	base := characters.Character{ID: "a", Powers: []string{"x", "y", "z"}, Aliases: []string{"p", "q"}}

	popular := base
	popular.Name = "Batman"
	obscure := base
	obscure.Name = "Squirrel"

	scores := GenerateSyntheticScores([]characters.Character{popular, obscure}, 0, 0)
	if got := scores[1] - scores[0]; got != 2.0 {
		t.Errorf("popularity discount = %v, want 2.0", got)
	}
}

func TestDifficultyRegressorTrainPredict(t *testing.T) {
	reg := NewDifficultyRegressor()

	metrics, err := reg.Train(testRecords(), LinearOptions{SyntheticTargets: true, Seed: 42})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if !reg.Trained() {
		t.Error("Trained() = false after Train")
	}
	if metrics.NSamples != 3 {
		t.Errorf("NSamples = %d, want 3", metrics.NSamples)
	}
	if len(metrics.Weights) != len(linearFeatureNames) {
		t.Errorf("Weights has %d entries, want %d", len(metrics.Weights), len(linearFeatureNames))
	}
	for _, name := range linearFeatureNames {
		if _, ok := metrics.Weights[name]; !ok {
			t.Errorf("Weights missing feature %q", name)
		}
	}

	for _, record := range testRecords() {
		got, err := reg.Predict(record)
		if err != nil {
			t.Fatalf("Predict(%s) error = %v", record.ID, err)
		}
		if got < 1 || got > 15 {
			t.Errorf("Predict(%s) = %v, outside 1-15", record.ID, got)
		}
	}
}

func TestDifficultyRegressorNoiseFreeFit(t *testing.T) {
	reg := NewDifficultyRegressor()

	// Three samples against seven parameters leave the least-squares
	// system underdetermined, so noise-free targets fit exactly.
	metrics, err := reg.Train(testRecords(), LinearOptions{SyntheticTargets: true, NoiseStd: 0})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if metrics.TrainR2 < 0.99 {
		t.Errorf("TrainR2 = %v, want near 1.0 on noise-free targets", metrics.TrainR2)
	}
}

func TestDifficultyRegressorRecordedTargets(t *testing.T) {
	reg := NewDifficultyRegressor()

	if _, err := reg.Train(testRecords(), LinearOptions{}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if _, err := reg.Predict(testRecords()[0]); err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
}

func TestDifficultyRegressorNotTrained(t *testing.T) {
	reg := NewDifficultyRegressor()
	if _, err := reg.Predict(testRecords()[0]); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Predict() error = %v, want ErrNotTrained", err)
	}
}

func TestDifficultyRegressorEmptyInput(t *testing.T) {
	reg := NewDifficultyRegressor()
	var insufficient *InsufficientDataError
	if _, err := reg.Train(nil, LinearOptions{}); !errors.As(err, &insufficient) {
		t.Errorf("Train(nil) error = %v, want InsufficientDataError", err)
	}
}

func TestDifficultyRegressorRoundTrip(t *testing.T) {
	original := NewDifficultyRegressor()
	if _, err := original.Train(testRecords(), LinearOptions{SyntheticTargets: true, Seed: 42, NoiseStd: 0.5}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	blob, err := original.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	restored := NewDifficultyRegressor()
	if err := restored.Deserialize(blob); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	for _, record := range testRecords() {
		want, _ := original.Predict(record)
		got, err := restored.Predict(record)
		if err != nil {
			t.Fatalf("restored Predict(%s) error = %v", record.ID, err)
		}
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("Predict(%s) = %v after round trip, want %v", record.ID, got, want)
		}
	}
}

func TestDifficultyRegressorRejectsBadBlob(t *testing.T) {
	reg := NewDifficultyRegressor()

	if err := reg.Deserialize([]byte("{broken")); !errors.Is(err, ErrCorruptState) {
		t.Errorf("Deserialize(broken) error = %v, want ErrCorruptState", err)
	}
	if err := reg.Deserialize([]byte(`{"trained": true, "weights": [1.0]}`)); !errors.Is(err, ErrCorruptState) {
		t.Errorf("Deserialize(short weights) error = %v, want ErrCorruptState", err)
	}
}
