package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TFIDFVectorizer maps free text to fixed-width numeric vectors using
// TF-IDF weighting over unigrams and bigrams. The vocabulary is bounded
// by maxFeatures: the highest-frequency terms across the fit corpus are
// kept, with alphabetical tie-breaking, and columns follow alphabetical
// vocabulary order. Output is fully deterministic for a given fit state.
type TFIDFVectorizer struct {
	maxFeatures int
	terms       []string
	index       map[string]int
	idf         []float64
	fitted      bool
}

// NewTFIDFVectorizer creates a vectorizer with a bounded vocabulary.
func NewTFIDFVectorizer(maxFeatures int) *TFIDFVectorizer {
	return &TFIDFVectorizer{maxFeatures: maxFeatures}
}

// tokenize lowercases text and extracts word tokens of two or more
// letters/digits, then appends space-joined bigrams.
func tokenize(text string) []string {
	lower := strings.ToLower(text)

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(words)*2)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		kept = append(kept, w)
		tokens = append(tokens, w)
	}
	for i := 0; i+1 < len(kept); i++ {
		tokens = append(tokens, kept[i]+" "+kept[i+1])
	}
	return tokens
}

// Fit builds the vocabulary and IDF weights from the corpus.
func (v *TFIDFVectorizer) Fit(corpus []string) {
	termCount := make(map[string]int)
	docFreq := make(map[string]int)

	for _, doc := range corpus {
		tokens := tokenize(doc)
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			termCount[tok]++
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}

	// Rank by corpus frequency, ties alphabetical.
	all := make([]string, 0, len(termCount))
	for term := range termCount {
		all = append(all, term)
	}
	sort.Slice(all, func(i, j int) bool {
		if termCount[all[i]] != termCount[all[j]] {
			return termCount[all[i]] > termCount[all[j]]
		}
		return all[i] < all[j]
	})
	if v.maxFeatures > 0 && len(all) > v.maxFeatures {
		all = all[:v.maxFeatures]
	}

	// Columns in alphabetical order of the selected vocabulary.
	sort.Strings(all)

	nDocs := float64(len(corpus))
	v.terms = all
	v.index = make(map[string]int, len(all))
	v.idf = make([]float64, len(all))
	for i, term := range all {
		v.index[term] = i
		v.idf[i] = math.Log((1+nDocs)/(1+float64(docFreq[term]))) + 1
	}
	v.fitted = true
}

// Transform maps the corpus to a matrix of shape (len(corpus),
// VocabularySize()). Out-of-vocabulary terms contribute zero weight.
// Each row is L2-normalized.
func (v *TFIDFVectorizer) Transform(corpus []string) ([][]float64, error) {
	if !v.fitted {
		return nil, fmt.Errorf("tfidf vectorizer: %w", ErrNotFitted)
	}

	matrix := make([][]float64, len(corpus))
	for d, doc := range corpus {
		row := make([]float64, len(v.terms))
		for _, tok := range tokenize(doc) {
			if col, ok := v.index[tok]; ok {
				row[col]++
			}
		}

		norm := 0.0
		for col := range row {
			row[col] *= v.idf[col]
			norm += row[col] * row[col]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for col := range row {
				row[col] /= norm
			}
		}
		matrix[d] = row
	}
	return matrix, nil
}

// VocabularySize returns the fitted vocabulary size. Zero before Fit.
func (v *TFIDFVectorizer) VocabularySize() int {
	return len(v.terms)
}

// Fitted reports whether Fit has been called.
func (v *TFIDFVectorizer) Fitted() bool {
	return v.fitted
}

type tfidfState struct {
	MaxFeatures int       `json:"max_features"`
	Terms       []string  `json:"terms"`
	IDF         []float64 `json:"idf"`
	Fitted      bool      `json:"fitted"`
}

// MarshalJSON serializes the fitted vocabulary and IDF weights.
func (v *TFIDFVectorizer) MarshalJSON() ([]byte, error) {
	return json.Marshal(tfidfState{
		MaxFeatures: v.maxFeatures,
		Terms:       v.terms,
		IDF:         v.idf,
		Fitted:      v.fitted,
	})
}

// UnmarshalJSON restores the fitted vocabulary and IDF weights.
func (v *TFIDFVectorizer) UnmarshalJSON(data []byte) error {
	var state tfidfState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if len(state.Terms) != len(state.IDF) {
		return fmt.Errorf("tfidf vocabulary and idf lengths differ: %d vs %d", len(state.Terms), len(state.IDF))
	}

	v.maxFeatures = state.MaxFeatures
	v.terms = state.Terms
	v.idf = state.IDF
	v.fitted = state.Fitted
	v.index = make(map[string]int, len(state.Terms))
	for i, term := range state.Terms {
		v.index[term] = i
	}
	return nil
}
