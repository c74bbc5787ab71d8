package ml

import (
	"encoding/json"
	"fmt"

	"github.com/charquest/ml-service/internal/characters"
)

// scalarFeatureNames are the leading numeric columns of every feature
// vector, in emission order.
var scalarFeatureNames = []string{
	"powers_count",
	"name_length",
	"quote_length",
	"description_length",
}

// categoricalFeatureNames are the trailing integer-coded columns, in
// emission order.
var categoricalFeatureNames = []string{"universe", "genre"}

// FeatureAssembler builds the fixed-order feature matrix consumed by
// the predictor pair. It is the single source of truth for feature
// ordering and width: layout is the four numeric scalars, then the
// TF-IDF block, then the two integer-coded categoricals. The assembler
// is fit exactly once (inside training); every later transform emits
// vectors of identical length and column order.
type FeatureAssembler struct {
	vectorizer      *TFIDFVectorizer
	universeEncoder *LabelEncoder
	genreEncoder    *LabelEncoder
	featureNames    []string
	fitted          bool
}

// NewFeatureAssembler creates an unfitted assembler with the given
// text vocabulary bound.
func NewFeatureAssembler(vocabSize int) *FeatureAssembler {
	return &FeatureAssembler{
		vectorizer:      NewTFIDFVectorizer(vocabSize),
		universeEncoder: NewLabelEncoder("universe"),
		genreEncoder:    NewLabelEncoder("genre"),
	}
}

// combinedText concatenates the record's free-text fields for the
// vectorizer, treating absent fields as empty strings.
func combinedText(c *characters.Character) string {
	return fmt.Sprintf("%s %s %s", c.Quote, c.Name, c.Description)
}

// Assemble builds the feature matrix plus the raw classification
// targets (character IDs) and regression targets (difficulty scores).
//
// With fit=true it fits the vectorizer and categorical encoders and
// freezes the feature-name list; records missing an ID are rejected
// with an InvalidRecordError. With fit=false it transforms through the
// already-fit sub-components, rejecting unseen categorical values.
func (a *FeatureAssembler) Assemble(records []characters.Character, fit bool) ([][]float64, []string, []float64, error) {
	if !fit && !a.fitted {
		return nil, nil, nil, fmt.Errorf("feature assembler: %w", ErrNotFitted)
	}
	if fit && a.fitted {
		// The feature layout is frozen on first fit; a fresh assembler
		// is required to fit a new corpus.
		return nil, nil, nil, fmt.Errorf("%w: feature assembler is already fitted", ErrInvalidArgument)
	}

	texts := make([]string, len(records))
	universes := make([]string, len(records))
	genres := make([]string, len(records))
	for i := range records {
		texts[i] = combinedText(&records[i])
		universes[i] = records[i].UniverseOrUnknown()
		genres[i] = records[i].GenreOrUnknown()
	}

	if fit {
		for i := range records {
			if records[i].ID == "" {
				return nil, nil, nil, &InvalidRecordError{Index: i, Field: "id"}
			}
		}
		a.vectorizer.Fit(texts)
		a.universeEncoder.Fit(universes)
		a.genreEncoder.Fit(genres)
		a.freezeFeatureNames()
		a.fitted = true
	}

	tfidf, err := a.vectorizer.Transform(texts)
	if err != nil {
		return nil, nil, nil, err
	}
	universeCodes, err := a.universeEncoder.Transform(universes)
	if err != nil {
		return nil, nil, nil, err
	}
	genreCodes, err := a.genreEncoder.Transform(genres)
	if err != nil {
		return nil, nil, nil, err
	}

	width := a.Width()
	matrix := make([][]float64, len(records))
	ids := make([]string, len(records))
	difficulties := make([]float64, len(records))

	for i := range records {
		rec := &records[i]

		row := make([]float64, 0, width)
		row = append(row,
			float64(len(rec.Powers)),
			float64(len(rec.Name)),
			float64(len(rec.Quote)),
			float64(len(rec.Description)),
		)
		row = append(row, tfidf[i]...)
		row = append(row, float64(universeCodes[i]), float64(genreCodes[i]))

		matrix[i] = row
		ids[i] = rec.ID
		difficulties[i] = rec.DifficultyOrDefault()
	}

	return matrix, ids, difficulties, nil
}

// AssembleOne transforms a single record through the frozen
// sub-components.
func (a *FeatureAssembler) AssembleOne(record characters.Character) ([]float64, error) {
	matrix, _, _, err := a.Assemble([]characters.Character{record}, false)
	if err != nil {
		return nil, err
	}
	return matrix[0], nil
}

func (a *FeatureAssembler) freezeFeatureNames() {
	names := make([]string, 0, a.Width())
	names = append(names, scalarFeatureNames...)
	for i := 0; i < a.vectorizer.VocabularySize(); i++ {
		names = append(names, fmt.Sprintf("tfidf_%d", i))
	}
	names = append(names, categoricalFeatureNames...)
	a.featureNames = names
}

// FeatureNames returns the frozen column names. Empty before fit.
func (a *FeatureAssembler) FeatureNames() []string {
	out := make([]string, len(a.featureNames))
	copy(out, a.featureNames)
	return out
}

// Width returns the frozen feature-vector length.
func (a *FeatureAssembler) Width() int {
	return len(scalarFeatureNames) + a.vectorizer.VocabularySize() + len(categoricalFeatureNames)
}

// Fitted reports whether the one-time fit has happened.
func (a *FeatureAssembler) Fitted() bool {
	return a.fitted
}

// UniverseClasses returns the universe labels seen during fit.
func (a *FeatureAssembler) UniverseClasses() []string {
	return a.universeEncoder.Classes()
}

// GenreClasses returns the genre labels seen during fit.
func (a *FeatureAssembler) GenreClasses() []string {
	return a.genreEncoder.Classes()
}

type assemblerState struct {
	Vectorizer      *TFIDFVectorizer `json:"vectorizer"`
	UniverseEncoder *LabelEncoder    `json:"universe_encoder"`
	GenreEncoder    *LabelEncoder    `json:"genre_encoder"`
	FeatureNames    []string         `json:"feature_names"`
	Fitted          bool             `json:"fitted"`
}

// MarshalJSON serializes the full fitted assembler configuration.
func (a *FeatureAssembler) MarshalJSON() ([]byte, error) {
	return json.Marshal(assemblerState{
		Vectorizer:      a.vectorizer,
		UniverseEncoder: a.universeEncoder,
		GenreEncoder:    a.genreEncoder,
		FeatureNames:    a.featureNames,
		Fitted:          a.fitted,
	})
}

// UnmarshalJSON restores the fitted assembler configuration.
func (a *FeatureAssembler) UnmarshalJSON(data []byte) error {
	state := assemblerState{
		Vectorizer:      NewTFIDFVectorizer(0),
		UniverseEncoder: NewLabelEncoder("universe"),
		GenreEncoder:    NewLabelEncoder("genre"),
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	a.vectorizer = state.Vectorizer
	a.universeEncoder = state.UniverseEncoder
	a.genreEncoder = state.GenreEncoder
	a.featureNames = state.FeatureNames
	a.fitted = state.Fitted
	return nil
}
