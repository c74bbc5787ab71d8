package ml

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and splits on punctuation",
			text: "With great Power!",
			want: []string{"with", "great", "power", "with great", "great power"},
		},
		{
			name: "drops single character words",
			text: "I am a hero",
			want: []string{"am", "hero", "am hero"},
		},
		{
			name: "drops single non-ascii letters by rune count",
			text: "é ça va",
			want: []string{"ça", "va", "ça va"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTFIDFVocabularyOrderAndCap(t *testing.T) {
	v := NewTFIDFVectorizer(3)
	v.Fit([]string{"spider spider web", "web web web bat"})

	if got := v.VocabularySize(); got != 3 {
		t.Fatalf("VocabularySize() = %d, want 3", got)
	}

	// Columns must be alphabetical regardless of frequency ranking.
	rows, err := v.Transform([]string{"web"})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if len(rows[0]) != 3 {
		t.Fatalf("row width = %d, want 3", len(rows[0]))
	}
}

func TestTFIDFRowsAreL2Normalized(t *testing.T) {
	v := NewTFIDFVectorizer(50)
	v.Fit([]string{
		"with great power comes great responsibility",
		"the dark knight of gotham",
	})

	rows, err := v.Transform([]string{"great power and responsibility"})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	norm := 0.0
	for _, val := range rows[0] {
		norm += val * val
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Errorf("row norm = %f, want 1", math.Sqrt(norm))
	}
}

func TestTFIDFOutOfVocabularyIsZeroRow(t *testing.T) {
	v := NewTFIDFVectorizer(50)
	v.Fit([]string{"spider web crawler"})

	rows, err := v.Transform([]string{"completely unrelated words"})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	for col, val := range rows[0] {
		if val != 0 {
			t.Errorf("column %d = %f, want 0 for out-of-vocabulary text", col, val)
		}
	}
}

func TestTFIDFTransformBeforeFit(t *testing.T) {
	v := NewTFIDFVectorizer(50)
	if _, err := v.Transform([]string{"anything"}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Transform() before Fit error = %v, want ErrNotFitted", err)
	}
}

func TestTFIDFDeterministic(t *testing.T) {
	corpus := []string{
		"with great power comes great responsibility",
		"genius billionaire playboy philanthropist",
		"the dark knight detective",
	}

	a := NewTFIDFVectorizer(50)
	a.Fit(corpus)
	b := NewTFIDFVectorizer(50)
	b.Fit(corpus)

	rowsA, _ := a.Transform(corpus)
	rowsB, _ := b.Transform(corpus)
	if !reflect.DeepEqual(rowsA, rowsB) {
		t.Error("two fits over the same corpus produced different matrices")
	}
}

func TestTFIDFJSONRoundTrip(t *testing.T) {
	v := NewTFIDFVectorizer(50)
	v.Fit([]string{"with great power", "dark knight"})

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	restored := NewTFIDFVectorizer(0)
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	orig, _ := v.Transform([]string{"great power"})
	back, _ := restored.Transform([]string{"great power"})
	if !reflect.DeepEqual(orig, back) {
		t.Error("restored vectorizer produced different output")
	}
}
