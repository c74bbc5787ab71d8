package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charquest/ml-service/internal/characters"
)

const bayesVocabSize = 500

// BayesMetrics reports one NaiveBayes training run.
type BayesMetrics struct {
	GenreAccuracy    float64 `json:"genre_accuracy"`
	UniverseAccuracy float64 `json:"universe_accuracy"`
	NGenres          int     `json:"n_genres"`
	NUniverses       int     `json:"n_universes"`
	NSamples         int     `json:"n_samples"`
	VocabularySize   int     `json:"vocabulary_size"`
}

// NaiveBayes classifies free-text character descriptions into genre
// and universe with multinomial naive Bayes over a shared TF-IDF
// vocabulary. It complements CharacterTree for the metadata fields the
// tree consumes as inputs.
type NaiveBayes struct {
	vectorizer      *TFIDFVectorizer
	genreEncoder    *LabelEncoder
	universeEncoder *LabelEncoder
	genreModel      *multinomialNB
	universeModel   *multinomialNB
	trained         bool
}

// NewNaiveBayes creates an untrained classifier pair.
func NewNaiveBayes() *NaiveBayes {
	return &NaiveBayes{}
}

func bayesText(c *characters.Character) string {
	return strings.Join([]string{c.Quote, c.Source, c.Name, c.Description}, " ")
}

// Train fits the vocabulary and both per-field models from scratch.
func (nb *NaiveBayes) Train(records []characters.Character) (*BayesMetrics, error) {
	if len(records) < 1 {
		return nil, &InsufficientDataError{Count: len(records), Min: 1}
	}

	texts := make([]string, len(records))
	genres := make([]string, len(records))
	universes := make([]string, len(records))
	for i := range records {
		texts[i] = bayesText(&records[i])
		genres[i] = records[i].GenreOrUnknown()
		universes[i] = records[i].UniverseOrUnknown()
	}

	vectorizer := NewTFIDFVectorizer(bayesVocabSize)
	vectorizer.Fit(texts)
	x, err := vectorizer.Transform(texts)
	if err != nil {
		return nil, err
	}

	genreEncoder := NewLabelEncoder("genre")
	genreEncoder.Fit(genres)
	genreY, err := genreEncoder.Transform(genres)
	if err != nil {
		return nil, err
	}

	universeEncoder := NewLabelEncoder("universe")
	universeEncoder.Fit(universes)
	universeY, err := universeEncoder.Transform(universes)
	if err != nil {
		return nil, err
	}

	genreModel := newMultinomialNB(1.0)
	genreModel.Fit(x, genreY, len(genreEncoder.Classes()))

	universeModel := newMultinomialNB(1.0)
	universeModel.Fit(x, universeY, len(universeEncoder.Classes()))

	nb.vectorizer = vectorizer
	nb.genreEncoder = genreEncoder
	nb.universeEncoder = universeEncoder
	nb.genreModel = genreModel
	nb.universeModel = universeModel
	nb.trained = true

	return &BayesMetrics{
		GenreAccuracy:    nbAccuracy(genreModel, x, genreY),
		UniverseAccuracy: nbAccuracy(universeModel, x, universeY),
		NGenres:          len(genreEncoder.Classes()),
		NUniverses:       len(universeEncoder.Classes()),
		NSamples:         len(records),
		VocabularySize:   vectorizer.VocabularySize(),
	}, nil
}

// FieldPrediction is one ranked label for a metadata field.
type FieldPrediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// PredictGenre ranks genre labels for a record, most probable first.
func (nb *NaiveBayes) PredictGenre(record characters.Character, topK int) ([]FieldPrediction, error) {
	return nb.predictField(record, topK, nb.genreModel, nb.genreEncoder)
}

// PredictUniverse ranks universe labels for a record, most probable
// first.
func (nb *NaiveBayes) PredictUniverse(record characters.Character, topK int) ([]FieldPrediction, error) {
	return nb.predictField(record, topK, nb.universeModel, nb.universeEncoder)
}

// Trained reports whether Train has completed.
func (nb *NaiveBayes) Trained() bool {
	return nb.trained
}

func (nb *NaiveBayes) predictField(record characters.Character, topK int, model *multinomialNB, encoder *LabelEncoder) ([]FieldPrediction, error) {
	if !nb.trained {
		return nil, ErrNotTrained
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}

	rows, err := nb.vectorizer.Transform([]string{bayesText(&record)})
	if err != nil {
		return nil, err
	}
	probs := model.PredictProba(rows[0])

	classes := encoder.Classes()
	ranked := make([]FieldPrediction, len(probs))
	for i, p := range probs {
		ranked[i] = FieldPrediction{Label: classes[i], Probability: p}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})

	if topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

func nbAccuracy(model *multinomialNB, x [][]float64, y []int) float64 {
	if len(y) == 0 {
		return 0
	}
	correct := 0
	for i, row := range x {
		if model.Predict(row) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// multinomialNB is multinomial naive Bayes with Laplace smoothing over
// nonnegative feature weights.
type multinomialNB struct {
	Alpha          float64     `json:"alpha"`
	ClassLogPrior  []float64   `json:"class_log_prior"`
	FeatureLogProb [][]float64 `json:"feature_log_prob"`
}

func newMultinomialNB(alpha float64) *multinomialNB {
	return &multinomialNB{Alpha: alpha}
}

// Fit estimates class priors and per-class feature log probabilities.
func (m *multinomialNB) Fit(x [][]float64, y []int, nClasses int) {
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}

	classCounts := make([]float64, nClasses)
	featureSums := make([][]float64, nClasses)
	for c := range featureSums {
		featureSums[c] = make([]float64, nFeatures)
	}

	for i, row := range x {
		classCounts[y[i]]++
		for f, v := range row {
			featureSums[y[i]][f] += v
		}
	}

	m.ClassLogPrior = make([]float64, nClasses)
	m.FeatureLogProb = make([][]float64, nClasses)
	total := float64(len(x))

	for c := 0; c < nClasses; c++ {
		m.ClassLogPrior[c] = math.Log(classCounts[c] / total)

		classTotal := 0.0
		for _, v := range featureSums[c] {
			classTotal += v
		}
		denom := classTotal + m.Alpha*float64(nFeatures)

		m.FeatureLogProb[c] = make([]float64, nFeatures)
		for f := 0; f < nFeatures; f++ {
			m.FeatureLogProb[c][f] = math.Log((featureSums[c][f] + m.Alpha) / denom)
		}
	}
}

func (m *multinomialNB) logScores(row []float64) []float64 {
	scores := make([]float64, len(m.ClassLogPrior))
	for c := range scores {
		score := m.ClassLogPrior[c]
		for f, v := range row {
			if v != 0 {
				score += v * m.FeatureLogProb[c][f]
			}
		}
		scores[c] = score
	}
	return scores
}

// Predict returns the most likely class code. Ties resolve to the
// lowest code.
func (m *multinomialNB) Predict(row []float64) int {
	scores := m.logScores(row)
	best := 0
	for c := 1; c < len(scores); c++ {
		if scores[c] > scores[best] {
			best = c
		}
	}
	return best
}

// PredictProba normalizes the log scores into a probability
// distribution over classes.
func (m *multinomialNB) PredictProba(row []float64) []float64 {
	scores := m.logScores(row)

	max := math.Inf(-1)
	for _, s := range scores {
		if s > max {
			max = s
		}
	}

	probs := make([]float64, len(scores))
	sum := 0.0
	for c, s := range scores {
		probs[c] = math.Exp(s - max)
		sum += probs[c]
	}
	for c := range probs {
		probs[c] /= sum
	}
	return probs
}

type naiveBayesState struct {
	Vectorizer      json.RawMessage `json:"vectorizer"`
	GenreEncoder    json.RawMessage `json:"genre_encoder"`
	UniverseEncoder json.RawMessage `json:"universe_encoder"`
	GenreModel      *multinomialNB  `json:"genre_model"`
	UniverseModel   *multinomialNB  `json:"universe_model"`
	Trained         bool            `json:"trained"`
}

// Serialize encodes the fitted state as one JSON blob.
func (nb *NaiveBayes) Serialize() ([]byte, error) {
	if !nb.trained {
		return json.Marshal(naiveBayesState{})
	}

	vec, err := json.Marshal(nb.vectorizer)
	if err != nil {
		return nil, err
	}
	genreEnc, err := json.Marshal(nb.genreEncoder)
	if err != nil {
		return nil, err
	}
	universeEnc, err := json.Marshal(nb.universeEncoder)
	if err != nil {
		return nil, err
	}

	return json.Marshal(naiveBayesState{
		Vectorizer:      vec,
		GenreEncoder:    genreEnc,
		UniverseEncoder: universeEnc,
		GenreModel:      nb.genreModel,
		UniverseModel:   nb.universeModel,
		Trained:         true,
	})
}

// Deserialize replaces the fitted state from a Serialize blob. Nothing
// is modified unless the whole blob decodes and validates.
func (nb *NaiveBayes) Deserialize(data []byte) error {
	var state naiveBayesState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	if !state.Trained {
		nb.vectorizer = nil
		nb.genreEncoder = nil
		nb.universeEncoder = nil
		nb.genreModel = nil
		nb.universeModel = nil
		nb.trained = false
		return nil
	}

	if state.GenreModel == nil || state.UniverseModel == nil {
		return fmt.Errorf("%w: trained flag set with missing models", ErrCorruptState)
	}

	vectorizer := NewTFIDFVectorizer(bayesVocabSize)
	if err := json.Unmarshal(state.Vectorizer, vectorizer); err != nil {
		return fmt.Errorf("%w: vectorizer: %v", ErrCorruptState, err)
	}
	genreEncoder := NewLabelEncoder("genre")
	if err := json.Unmarshal(state.GenreEncoder, genreEncoder); err != nil {
		return fmt.Errorf("%w: genre encoder: %v", ErrCorruptState, err)
	}
	universeEncoder := NewLabelEncoder("universe")
	if err := json.Unmarshal(state.UniverseEncoder, universeEncoder); err != nil {
		return fmt.Errorf("%w: universe encoder: %v", ErrCorruptState, err)
	}

	nb.vectorizer = vectorizer
	nb.genreEncoder = genreEncoder
	nb.universeEncoder = universeEncoder
	nb.genreModel = state.GenreModel
	nb.universeModel = state.UniverseModel
	nb.trained = true
	return nil
}
