package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/charquest/ml-service/internal/characters"
)

// linearFeatureNames is the fixed feature layout of the difficulty
// regressor, in emission order.
var linearFeatureNames = []string{
	"powers_count",
	"name_length",
	"universe_code",
	"aliases_count",
	"quote_length",
	"alignment_code",
}

// LinearOptions configures one training run of the DifficultyRegressor.
type LinearOptions struct {
	// SyntheticTargets derives difficulty targets from character
	// attributes instead of recorded scores. Used until enough real
	// game statistics accumulate.
	SyntheticTargets bool

	// NoiseStd is the standard deviation of the Gaussian noise mixed
	// into synthetic targets to simulate game variance. Zero disables
	// the noise, making synthetic runs fully reproducible.
	NoiseStd float64

	// Seed drives the synthetic noise generator.
	Seed int64
}

// LinearMetrics reports one DifficultyRegressor training run.
type LinearMetrics struct {
	TrainR2   float64            `json:"train_r2"`
	NSamples  int                `json:"n_samples"`
	Weights   map[string]float64 `json:"weights"`
	Intercept float64            `json:"intercept"`
}

// DifficultyRegressor predicts how many guesses a character takes on
// average: a linear regression over six scalar features with standard
// scaling. It is the simpler sibling of the CharacterTree regressor
// and follows the same lifecycle (fit once inside Train, predict
// afterwards).
type DifficultyRegressor struct {
	scaler  *standardScaler
	weights []float64 // weights[0] is the intercept
	trained bool
}

// NewDifficultyRegressor creates an untrained regressor.
func NewDifficultyRegressor() *DifficultyRegressor {
	return &DifficultyRegressor{}
}

// linearFeatures extracts the fixed scalar feature vector.
func linearFeatures(c *characters.Character) []float64 {
	universeCode := 0.0
	switch c.Universe {
	case "Marvel":
		universeCode = 1
	case "DC":
		universeCode = 2
	}

	alignmentCode := 3.0
	switch c.Alignment {
	case "hero", "":
		alignmentCode = 1
	case "villain":
		alignmentCode = 2
	}

	return []float64{
		float64(len(c.Powers)),
		float64(len(c.Name)),
		universeCode,
		float64(len(c.Aliases)),
		float64(len(c.Quote)),
		alignmentCode,
	}
}

// GenerateSyntheticScores derives difficulty targets from character
// attributes, optionally mixing in seeded Gaussian noise. Scores are
// clamped to the 1-15 guess scale.
func GenerateSyntheticScores(records []characters.Character, seed int64, noiseStd float64) []float64 {
	rng := rand.New(rand.NewSource(seed))

	popular := map[string]bool{
		"Spider-Man": true, "Batman": true, "Superman": true,
		"Iron Man": true, "Captain America": true,
	}

	scores := make([]float64, len(records))
	for i := range records {
		rec := &records[i]
		score := 5.0

		// More powers make a character harder to pin down; aliases
		// give players extra ways in.
		score += (float64(len(rec.Powers)) - 3) * 0.3
		score -= (float64(len(rec.Aliases)) - 2) * 0.5
		if len(rec.Name) > 12 {
			score += 1.0
		}
		if popular[rec.Name] {
			score -= 2.0
		}

		if noiseStd > 0 {
			score += rng.NormFloat64() * noiseStd
		}

		scores[i] = math.Max(1, math.Min(15, score))
	}
	return scores
}

// Train fits the regressor. With SyntheticTargets the targets come
// from GenerateSyntheticScores; otherwise each record's recorded
// difficulty is used.
func (r *DifficultyRegressor) Train(records []characters.Character, opts LinearOptions) (*LinearMetrics, error) {
	if len(records) < 1 {
		return nil, &InsufficientDataError{Count: len(records), Min: 1}
	}

	x := make([][]float64, len(records))
	for i := range records {
		x[i] = linearFeatures(&records[i])
	}

	var y []float64
	if opts.SyntheticTargets {
		y = GenerateSyntheticScores(records, opts.Seed, opts.NoiseStd)
	} else {
		y = make([]float64, len(records))
		for i := range records {
			y[i] = records[i].DifficultyOrDefault()
		}
	}

	scaler := newStandardScaler()
	scaler.Fit(x)
	scaled := scaler.Transform(x)

	weights, err := fitLeastSquares(scaled, y)
	if err != nil {
		return nil, err
	}

	r.scaler = scaler
	r.weights = weights
	r.trained = true

	preds := make([]float64, len(scaled))
	for i, row := range scaled {
		preds[i] = r.raw(row)
	}

	named := make(map[string]float64, len(linearFeatureNames))
	for i, name := range linearFeatureNames {
		named[name] = weights[i+1]
	}

	return &LinearMetrics{
		TrainR2:   r2Values(preds, y),
		NSamples:  len(records),
		Weights:   named,
		Intercept: weights[0],
	}, nil
}

// Predict estimates the guess-count difficulty for a record, clamped
// to the 1-15 scale the synthetic targets live on.
func (r *DifficultyRegressor) Predict(record characters.Character) (float64, error) {
	if !r.trained {
		return 0, ErrNotTrained
	}

	scaled := r.scaler.Transform([][]float64{linearFeatures(&record)})
	return math.Max(1, math.Min(15, r.raw(scaled[0]))), nil
}

// Trained reports whether Train has completed.
func (r *DifficultyRegressor) Trained() bool {
	return r.trained
}

func (r *DifficultyRegressor) raw(scaled []float64) float64 {
	out := r.weights[0]
	for i, v := range scaled {
		out += r.weights[i+1] * v
	}
	return out
}

type difficultyRegressorState struct {
	Scaler  *standardScaler `json:"scaler"`
	Weights []float64       `json:"weights"`
	Trained bool            `json:"trained"`
}

// Serialize encodes the fitted state as one JSON blob.
func (r *DifficultyRegressor) Serialize() ([]byte, error) {
	return json.Marshal(difficultyRegressorState{
		Scaler:  r.scaler,
		Weights: r.weights,
		Trained: r.trained,
	})
}

// Deserialize replaces the fitted state from a Serialize blob.
func (r *DifficultyRegressor) Deserialize(data []byte) error {
	var state difficultyRegressorState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if state.Trained && (state.Scaler == nil || len(state.Weights) != len(linearFeatureNames)+1) {
		return fmt.Errorf("%w: trained flag set with incomplete regressor state", ErrCorruptState)
	}

	r.scaler = state.Scaler
	r.weights = state.Weights
	r.trained = state.Trained
	return nil
}

// standardScaler centers features to zero mean and unit variance.
type standardScaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

func newStandardScaler() *standardScaler {
	return &standardScaler{}
}

// Fit learns per-column means and standard deviations.
func (s *standardScaler) Fit(x [][]float64) {
	if len(x) == 0 {
		return
	}

	cols := len(x[0])
	s.Means = make([]float64, cols)
	s.Stds = make([]float64, cols)

	for c := 0; c < cols; c++ {
		sum := 0.0
		for _, row := range x {
			sum += row[c]
		}
		mean := sum / float64(len(x))

		variance := 0.0
		for _, row := range x {
			variance += (row[c] - mean) * (row[c] - mean)
		}
		std := math.Sqrt(variance / float64(len(x)))
		if std == 0 {
			std = 1
		}

		s.Means[c] = mean
		s.Stds[c] = std
	}
}

// Transform scales rows using the learned statistics.
func (s *standardScaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, len(row))
		for c, v := range row {
			scaled[c] = (v - s.Means[c]) / s.Stds[c]
		}
		out[i] = scaled
	}
	return out
}

// fitLeastSquares solves ordinary least squares with an intercept via
// the normal equations. A tiny ridge term keeps the system solvable
// when features are collinear on small data sets.
func fitLeastSquares(x [][]float64, y []float64) ([]float64, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("least squares: %w: %d samples, %d targets", ErrInvalidArgument, n, len(y))
	}
	cols := len(x[0]) + 1 // leading bias column

	// Build X'X and X'y over the augmented design matrix.
	xtx := make([][]float64, cols)
	for i := range xtx {
		xtx[i] = make([]float64, cols)
	}
	xty := make([]float64, cols)

	augmented := func(row []float64, c int) float64 {
		if c == 0 {
			return 1
		}
		return row[c-1]
	}

	for _, row := range x {
		for i := 0; i < cols; i++ {
			vi := augmented(row, i)
			for j := 0; j < cols; j++ {
				xtx[i][j] += vi * augmented(row, j)
			}
		}
	}
	for k, row := range x {
		for i := 0; i < cols; i++ {
			xty[i] += augmented(row, i) * y[k]
		}
	}

	const ridge = 1e-9
	for i := 0; i < cols; i++ {
		xtx[i][i] += ridge
	}

	return solveLinearSystem(xtx, xty)
}

// solveLinearSystem performs Gaussian elimination with partial
// pivoting.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)

	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-15 {
			return nil, fmt.Errorf("least squares: singular system at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	solution := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for col := row + 1; col < n; col++ {
			sum -= a[row][col] * solution[col]
		}
		solution[row] = sum / a[row][row]
	}
	return solution, nil
}

// r2Values is the coefficient of determination over parallel slices.
func r2Values(preds, want []float64) float64 {
	if len(want) == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range want {
		mean += v
	}
	mean /= float64(len(want))

	ssRes := 0.0
	ssTot := 0.0
	for i := range want {
		ssRes += (want[i] - preds[i]) * (want[i] - preds[i])
		ssTot += (want[i] - mean) * (want[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
