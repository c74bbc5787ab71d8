package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/charquest/ml-service/internal/characters"
)

func bayesRecords() []characters.Character {
	records := testRecords()
	records = append(records,
		characters.Character{
			ID:          "gandalf",
			Name:        "Gandalf",
			Quote:       "You shall not pass",
			Description: "A wandering wizard of Middle-earth",
			Universe:    "Middle-earth",
			Genre:       "fantasy",
		},
		characters.Character{
			ID:          "frodo",
			Name:        "Frodo",
			Quote:       "I will take the ring to Mordor",
			Description: "A hobbit carrying a terrible burden through Middle-earth",
			Universe:    "Middle-earth",
			Genre:       "fantasy",
		},
	)
	return records
}

func TestNaiveBayesTrainMetrics(t *testing.T) {
	nb := NewNaiveBayes()

	metrics, err := nb.Train(bayesRecords())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if !nb.Trained() {
		t.Error("Trained() = false after Train")
	}
	if metrics.NSamples != 5 {
		t.Errorf("NSamples = %d, want 5", metrics.NSamples)
	}
	if metrics.NGenres != 2 {
		t.Errorf("NGenres = %d, want 2", metrics.NGenres)
	}
	if metrics.NUniverses != 3 {
		t.Errorf("NUniverses = %d, want 3", metrics.NUniverses)
	}
	if metrics.VocabularySize == 0 {
		t.Error("VocabularySize = 0")
	}
	if metrics.GenreAccuracy < 0 || metrics.GenreAccuracy > 1 {
		t.Errorf("GenreAccuracy = %v, outside 0-1", metrics.GenreAccuracy)
	}
}

func TestNaiveBayesPredictGenre(t *testing.T) {
	nb := NewNaiveBayes()
	if _, err := nb.Train(bayesRecords()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	probe := characters.Character{
		Name:        "Legolas",
		Quote:       "A wizard and a hobbit walk through Middle-earth",
		Description: "An elf of Middle-earth",
	}

	preds, err := nb.PredictGenre(probe, 2)
	if err != nil {
		t.Fatalf("PredictGenre() error = %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("PredictGenre() returned %d labels, want 2", len(preds))
	}
	if preds[0].Label != "fantasy" {
		t.Errorf("top genre = %s, want fantasy", preds[0].Label)
	}
	if preds[0].Probability < preds[1].Probability {
		t.Error("predictions not sorted by descending probability")
	}
}

func TestNaiveBayesPredictUniverse(t *testing.T) {
	nb := NewNaiveBayes()
	if _, err := nb.Train(bayesRecords()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	probe := characters.Character{
		Name:        "Miles Morales",
		Quote:       "With great power comes great responsibility",
		Description: "A young hero who swings between buildings",
	}

	preds, err := nb.PredictUniverse(probe, 3)
	if err != nil {
		t.Fatalf("PredictUniverse() error = %v", err)
	}
	if preds[0].Label != "Marvel" {
		t.Errorf("top universe = %s, want Marvel", preds[0].Label)
	}

	total := 0.0
	for _, p := range preds {
		total += p.Probability
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("probabilities sum to %v, want 1.0 over all 3 universes", total)
	}
}

func TestNaiveBayesTopKTruncation(t *testing.T) {
	nb := NewNaiveBayes()
	if _, err := nb.Train(bayesRecords()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	preds, err := nb.PredictUniverse(bayesRecords()[0], 1)
	if err != nil {
		t.Fatalf("PredictUniverse() error = %v", err)
	}
	if len(preds) != 1 {
		t.Errorf("topK=1 returned %d labels", len(preds))
	}

	if _, err := nb.PredictGenre(bayesRecords()[0], 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("PredictGenre(topK=0) error = %v, want ErrInvalidArgument", err)
	}
}

func TestNaiveBayesNotTrained(t *testing.T) {
	nb := NewNaiveBayes()

	if _, err := nb.PredictGenre(testRecords()[0], 1); !errors.Is(err, ErrNotTrained) {
		t.Errorf("PredictGenre() error = %v, want ErrNotTrained", err)
	}
	if _, err := nb.PredictUniverse(testRecords()[0], 1); !errors.Is(err, ErrNotTrained) {
		t.Errorf("PredictUniverse() error = %v, want ErrNotTrained", err)
	}
}

func TestNaiveBayesEmptyInput(t *testing.T) {
	nb := NewNaiveBayes()
	var insufficient *InsufficientDataError
	if _, err := nb.Train(nil); !errors.As(err, &insufficient) {
		t.Errorf("Train(nil) error = %v, want InsufficientDataError", err)
	}
}

func TestNaiveBayesRoundTrip(t *testing.T) {
	original := NewNaiveBayes()
	if _, err := original.Train(bayesRecords()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	blob, err := original.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	restored := NewNaiveBayes()
	if err := restored.Deserialize(blob); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	for _, record := range bayesRecords() {
		want, _ := original.PredictGenre(record, 2)
		got, err := restored.PredictGenre(record, 2)
		if err != nil {
			t.Fatalf("restored PredictGenre(%s) error = %v", record.ID, err)
		}
		if len(got) != len(want) {
			t.Fatalf("PredictGenre(%s) length %d after round trip, want %d", record.ID, len(got), len(want))
		}
		for i := range got {
			if got[i].Label != want[i].Label || math.Abs(got[i].Probability-want[i].Probability) > 1e-12 {
				t.Errorf("PredictGenre(%s)[%d] = %+v after round trip, want %+v", record.ID, i, got[i], want[i])
			}
		}
	}
}

func TestNaiveBayesRejectsBadBlob(t *testing.T) {
	nb := NewNaiveBayes()
	if err := nb.Deserialize([]byte("{broken")); !errors.Is(err, ErrCorruptState) {
		t.Errorf("Deserialize(broken) error = %v, want ErrCorruptState", err)
	}
}
