package ml

import (
	"errors"
	"reflect"
	"testing"

	"github.com/charquest/ml-service/internal/characters"
)

func testRecords() []characters.Character {
	spiderDifficulty := 3.0
	batmanDifficulty := 4.0
	return []characters.Character{
		{
			ID:          "spider-man",
			Name:        "Spider-Man",
			Quote:       "With great power comes great responsibility",
			Description: "A young hero who swings between buildings",
			Universe:    "Marvel",
			Genre:       "superhero",
			Powers:      []string{"wall-crawling", "spider-sense", "super strength"},
			Difficulty:  &spiderDifficulty,
		},
		{
			ID:          "iron-man",
			Name:        "Iron Man",
			Quote:       "I am Iron Man",
			Description: "Genius billionaire in a powered suit of armor",
			Universe:    "Marvel",
			Genre:       "superhero",
			Powers:      []string{"powered armor", "flight"},
		},
		{
			ID:          "batman",
			Name:        "Batman",
			Quote:       "I am vengeance",
			Description: "The dark knight detective of Gotham",
			Universe:    "DC",
			Genre:       "superhero",
			Powers:      []string{"intellect", "martial arts", "gadgets"},
			Difficulty:  &batmanDifficulty,
		},
	}
}

func TestAssembleLayoutAndTargets(t *testing.T) {
	records := testRecords()
	a := NewFeatureAssembler(50)

	matrix, ids, difficulties, err := a.Assemble(records, true)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	wantWidth := 4 + a.vectorizer.VocabularySize() + 2
	for i, row := range matrix {
		if len(row) != wantWidth {
			t.Errorf("row %d width = %d, want %d", i, len(row), wantWidth)
		}
	}
	if a.Width() != wantWidth {
		t.Errorf("Width() = %d, want %d", a.Width(), wantWidth)
	}

	if want := []string{"spider-man", "iron-man", "batman"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	// Missing difficulty falls back to the default.
	if want := []float64{3, characters.DefaultDifficulty, 4}; !reflect.DeepEqual(difficulties, want) {
		t.Errorf("difficulties = %v, want %v", difficulties, want)
	}

	// Scalar prefix of the first record.
	first := matrix[0]
	if first[0] != 3 {
		t.Errorf("powers_count = %f, want 3", first[0])
	}
	if first[1] != float64(len("Spider-Man")) {
		t.Errorf("name_length = %f, want %d", first[1], len("Spider-Man"))
	}

	// Categorical suffix: Marvel sorts after DC.
	last := first[len(first)-2:]
	if last[0] != 1 {
		t.Errorf("universe code = %f, want 1 (Marvel)", last[0])
	}
	if last[1] != 0 {
		t.Errorf("genre code = %f, want 0 (superhero)", last[1])
	}
}

func TestAssembleFeatureNamesFrozen(t *testing.T) {
	a := NewFeatureAssembler(50)
	if _, _, _, err := a.Assemble(testRecords(), true); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	names := a.FeatureNames()
	if len(names) != a.Width() {
		t.Fatalf("len(FeatureNames()) = %d, want %d", len(names), a.Width())
	}
	if names[0] != "powers_count" || names[1] != "name_length" {
		t.Errorf("leading names = %v, want scalar features first", names[:2])
	}
	if names[4] != "tfidf_0" {
		t.Errorf("names[4] = %q, want tfidf_0", names[4])
	}
	if names[len(names)-2] != "universe" || names[len(names)-1] != "genre" {
		t.Errorf("trailing names = %v, want universe, genre", names[len(names)-2:])
	}
}

func TestAssembleTransformIdempotent(t *testing.T) {
	records := testRecords()
	a := NewFeatureAssembler(50)

	fitMatrix, _, _, err := a.Assemble(records, true)
	if err != nil {
		t.Fatalf("fit Assemble() error = %v", err)
	}

	again, _, _, err := a.Assemble(records, false)
	if err != nil {
		t.Fatalf("transform Assemble() error = %v", err)
	}
	if !reflect.DeepEqual(fitMatrix, again) {
		t.Error("transform after fit produced a different matrix for the same records")
	}
}

func TestAssembleRejectsMissingID(t *testing.T) {
	records := testRecords()
	records[1].ID = ""

	a := NewFeatureAssembler(50)
	_, _, _, err := a.Assemble(records, true)
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("Assemble() error = %v, want ErrInvalidRecord", err)
	}

	var invalidErr *InvalidRecordError
	if !errors.As(err, &invalidErr) || invalidErr.Index != 1 {
		t.Errorf("error = %v, want InvalidRecordError at index 1", err)
	}
}

func TestAssembleUnknownCategoryAtTransform(t *testing.T) {
	a := NewFeatureAssembler(50)
	if _, _, _, err := a.Assemble(testRecords(), true); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	unseen := characters.Character{
		ID:       "goku",
		Name:     "Goku",
		Universe: "Dragon Ball",
		Genre:    "superhero",
	}
	_, err := a.AssembleOne(unseen)
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("AssembleOne() error = %v, want ErrUnknownCategory", err)
	}
}

func TestAssembleBeforeFit(t *testing.T) {
	a := NewFeatureAssembler(50)
	_, _, _, err := a.Assemble(testRecords(), false)
	if !errors.Is(err, ErrNotFitted) {
		t.Errorf("Assemble(fit=false) before fit error = %v, want ErrNotFitted", err)
	}
}

func TestAssembleRejectsRefit(t *testing.T) {
	a := NewFeatureAssembler(50)
	if _, _, _, err := a.Assemble(testRecords(), true); err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	_, _, _, err := a.Assemble(testRecords(), true)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("second Assemble(fit=true) error = %v, want ErrInvalidArgument", err)
	}
	if !a.Fitted() {
		t.Error("rejected re-fit cleared the fitted state")
	}
}
