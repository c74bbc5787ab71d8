package ml

import (
	"fmt"
	"sort"
)

// TreeKind selects the split criterion of a DecisionTree.
type TreeKind string

const (
	// TreeClassifier grows with Gini impurity; targets are class codes.
	TreeClassifier TreeKind = "classifier"
	// TreeRegressor grows with variance reduction; targets are values.
	TreeRegressor TreeKind = "regressor"
)

// TreeParams are the growth hyperparameters shared by both trees.
type TreeParams struct {
	// MaxDepth limits tree depth. Zero or negative means unlimited.
	MaxDepth int `json:"max_depth"`
	// MinSamplesSplit is the minimum node size eligible for a split.
	MinSamplesSplit int `json:"min_samples_split"`
	// MinSamplesLeaf is the minimum size of each child of a split.
	MinSamplesLeaf int `json:"min_samples_leaf"`
}

// DefaultTreeParams mirrors the game's production hyperparameters.
func DefaultTreeParams() TreeParams {
	return TreeParams{MaxDepth: 10, MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

// treeNode is one node of a grown tree, stored in a flat slice so the
// whole structure serializes as plain JSON. Feature is -1 for leaves.
type treeNode struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	Samples     int     `json:"samples"`
	Impurity    float64 `json:"impurity"`
	Value       float64 `json:"value"`
	ClassCounts []int   `json:"class_counts,omitempty"`
}

func (n *treeNode) isLeaf() bool { return n.Feature < 0 }

// DecisionTree is a CART tree grown by exhaustive threshold search.
// Growth is deterministic: features are scanned in column order,
// thresholds in ascending value order, and only a strictly better
// impurity decrease replaces the current best split.
type DecisionTree struct {
	Kind      TreeKind   `json:"kind"`
	Params    TreeParams `json:"params"`
	NClasses  int        `json:"n_classes,omitempty"`
	NFeatures int        `json:"n_features"`
	Nodes     []treeNode `json:"nodes"`
}

// newDecisionTree creates an ungrown tree. nClasses is ignored for
// regressors.
func newDecisionTree(kind TreeKind, params TreeParams, nClasses int) *DecisionTree {
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}
	return &DecisionTree{Kind: kind, Params: params, NClasses: nClasses}
}

// Fit grows the tree. For classifiers y holds integer class codes in
// [0, NClasses); for regressors y holds target values.
func (t *DecisionTree) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return fmt.Errorf("decision tree fit: %w: %d samples, %d targets", ErrInvalidArgument, len(x), len(y))
	}

	t.NFeatures = len(x[0])
	t.Nodes = t.Nodes[:0]

	indices := make([]int, len(x))
	for i := range indices {
		indices[i] = i
	}
	t.grow(x, y, indices, 1)
	return nil
}

// grow builds the subtree for the given sample indices and returns its
// node index.
func (t *DecisionTree) grow(x [][]float64, y []float64, indices []int, depth int) int {
	node := treeNode{Feature: -1, Samples: len(indices)}
	node.Impurity = t.impurity(y, indices)
	node.Value = meanOf(y, indices)
	if t.Kind == TreeClassifier {
		node.ClassCounts = t.classCounts(y, indices)
	}

	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, node)

	if node.Impurity == 0 || len(indices) < t.Params.MinSamplesSplit {
		return idx
	}
	if t.Params.MaxDepth > 0 && depth > t.Params.MaxDepth {
		return idx
	}

	feature, threshold, ok := t.bestSplit(x, y, indices, node.Impurity)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	leftIdx := t.grow(x, y, left, depth+1)
	rightIdx := t.grow(x, y, right, depth+1)

	t.Nodes[idx].Feature = feature
	t.Nodes[idx].Threshold = threshold
	t.Nodes[idx].Left = leftIdx
	t.Nodes[idx].Right = rightIdx
	return idx
}

// bestSplit scans all features and candidate thresholds for the split
// with the largest impurity decrease honoring MinSamplesLeaf.
func (t *DecisionTree) bestSplit(x [][]float64, y []float64, indices []int, parentImpurity float64) (int, float64, bool) {
	const epsilon = 1e-12

	bestDecrease := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	n := float64(len(indices))

	order := make([]int, len(indices))
	for f := 0; f < t.NFeatures; f++ {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool {
			if x[order[a]][f] != x[order[b]][f] {
				return x[order[a]][f] < x[order[b]][f]
			}
			return order[a] < order[b]
		})

		for pos := t.Params.MinSamplesLeaf; pos <= len(order)-t.Params.MinSamplesLeaf; pos++ {
			prev := x[order[pos-1]][f]
			cur := x[order[pos]][f]
			if prev == cur {
				continue
			}

			leftImp := t.impurity(y, order[:pos])
			rightImp := t.impurity(y, order[pos:])
			weighted := (float64(pos)*leftImp + float64(len(order)-pos)*rightImp) / n
			decrease := parentImpurity - weighted

			if decrease > bestDecrease+epsilon {
				bestDecrease = decrease
				bestFeature = f
				bestThreshold = prev + (cur-prev)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// impurity is Gini for classifiers and variance for regressors.
func (t *DecisionTree) impurity(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}

	if t.Kind == TreeClassifier {
		counts := t.classCounts(y, indices)
		n := float64(len(indices))
		gini := 1.0
		for _, c := range counts {
			p := float64(c) / n
			gini -= p * p
		}
		return gini
	}

	mean := meanOf(y, indices)
	sse := 0.0
	for _, i := range indices {
		d := y[i] - mean
		sse += d * d
	}
	return sse / float64(len(indices))
}

func (t *DecisionTree) classCounts(y []float64, indices []int) []int {
	counts := make([]int, t.NClasses)
	for _, i := range indices {
		counts[int(y[i])]++
	}
	return counts
}

func meanOf(y []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range indices {
		sum += y[i]
	}
	return sum / float64(len(indices))
}

// leafFor walks the tree to the leaf covering the sample.
func (t *DecisionTree) leafFor(sample []float64) *treeNode {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.isLeaf() {
			return node
		}
		if sample[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Predict returns the leaf value: the majority class code for
// classifiers (lowest code wins ties) or the leaf mean for regressors.
func (t *DecisionTree) Predict(sample []float64) float64 {
	leaf := t.leafFor(sample)
	if t.Kind != TreeClassifier {
		return leaf.Value
	}

	best := 0
	for c, count := range leaf.ClassCounts {
		if count > leaf.ClassCounts[best] {
			best = c
		}
	}
	return float64(best)
}

// PredictProba returns the leaf class distribution.
func (t *DecisionTree) PredictProba(sample []float64) []float64 {
	leaf := t.leafFor(sample)
	probs := make([]float64, t.NClasses)
	if leaf.Samples == 0 {
		return probs
	}
	for c, count := range leaf.ClassCounts {
		probs[c] = float64(count) / float64(leaf.Samples)
	}
	return probs
}

// Depth returns the number of split levels in the grown tree.
func (t *DecisionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	return t.depthFrom(0)
}

func (t *DecisionTree) depthFrom(idx int) int {
	node := &t.Nodes[idx]
	if node.isLeaf() {
		return 0
	}
	left := t.depthFrom(node.Left)
	right := t.depthFrom(node.Right)
	if left > right {
		return left + 1
	}
	return right + 1
}

// LeafCount returns the number of leaves in the grown tree.
func (t *DecisionTree) LeafCount() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].isLeaf() {
			count++
		}
	}
	return count
}

// FeatureImportances returns per-column importance scores computed as
// normalized weighted impurity decrease.
func (t *DecisionTree) FeatureImportances() []float64 {
	importances := make([]float64, t.NFeatures)
	if len(t.Nodes) == 0 {
		return importances
	}

	total := float64(t.Nodes[0].Samples)
	for i := range t.Nodes {
		node := &t.Nodes[i]
		if node.isLeaf() {
			continue
		}
		left := &t.Nodes[node.Left]
		right := &t.Nodes[node.Right]
		n := float64(node.Samples)
		weighted := (float64(left.Samples)*left.Impurity + float64(right.Samples)*right.Impurity) / n
		importances[node.Feature] += (n / total) * (node.Impurity - weighted)
	}

	sum := 0.0
	for _, v := range importances {
		sum += v
	}
	if sum > 0 {
		for i := range importances {
			importances[i] /= sum
		}
	}
	return importances
}
