package ml

import (
	"math"
	"math/rand"
	"sort"
)

// stratifiedSplit partitions sample indices into train and test sets,
// drawing testFrac of each class (at least one sample, never the whole
// class) so class proportions survive the split. The shuffle is seeded,
// so identical inputs always produce the identical partition.
func stratifiedSplit(labels []int, testFrac float64, seed int64) (trainIdx, testIdx []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		members := byClass[c]
		rng.Shuffle(len(members), func(a, b int) {
			members[a], members[b] = members[b], members[a]
		})

		nTest := int(math.Round(float64(len(members)) * testFrac))
		if nTest < 1 {
			nTest = 1
		}
		if nTest >= len(members) {
			nTest = len(members) - 1
		}

		testIdx = append(testIdx, members[:nTest]...)
		trainIdx = append(trainIdx, members[nTest:]...)
	}

	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return trainIdx, testIdx
}

// kFoldIndices splits n shuffled sample indices into k contiguous
// folds; the shuffle is seeded for reproducibility.
func kFoldIndices(n, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	rng.Shuffle(n, func(a, b int) {
		indices[a], indices[b] = indices[b], indices[a]
	})

	folds := make([][]int, k)
	for i, idx := range indices {
		f := i % k
		folds[f] = append(folds[f], idx)
	}
	return folds
}

// crossValAccuracy computes k-fold cross-validation accuracy for a
// classifier configuration over the full feature matrix.
func crossValAccuracy(params TreeParams, x [][]float64, y []float64, nClasses, k int, seed int64) []float64 {
	folds := kFoldIndices(len(x), k, seed)

	scores := make([]float64, 0, k)
	for f := 0; f < k; f++ {
		holdout := folds[f]
		if len(holdout) == 0 {
			continue
		}

		inHoldout := make(map[int]bool, len(holdout))
		for _, i := range holdout {
			inHoldout[i] = true
		}

		trainX := make([][]float64, 0, len(x)-len(holdout))
		trainY := make([]float64, 0, len(x)-len(holdout))
		for i := range x {
			if !inHoldout[i] {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(trainX) == 0 {
			continue
		}

		fold := newDecisionTree(TreeClassifier, params, nClasses)
		if err := fold.Fit(trainX, trainY); err != nil {
			continue
		}

		correct := 0
		for _, i := range holdout {
			if int(fold.Predict(x[i])) == int(y[i]) {
				correct++
			}
		}
		scores = append(scores, float64(correct)/float64(len(holdout)))
	}
	return scores
}

// accuracyScore is the fraction of exact class matches.
func accuracyScore(tree *DecisionTree, x [][]float64, y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	correct := 0
	for _, i := range indices {
		if int(tree.Predict(x[i])) == int(y[i]) {
			correct++
		}
	}
	return float64(correct) / float64(len(indices))
}

// r2Score is the coefficient of determination of regression
// predictions against true values. A constant-target partition scores
// 1.0 when predictions are exact, matching the degenerate-case
// convention of the training metrics.
func r2Score(tree *DecisionTree, x [][]float64, y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}

	mean := meanOf(y, indices)
	ssRes := 0.0
	ssTot := 0.0
	for _, i := range indices {
		pred := tree.Predict(x[i])
		ssRes += (y[i] - pred) * (y[i] - pred)
		ssTot += (y[i] - mean) * (y[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
