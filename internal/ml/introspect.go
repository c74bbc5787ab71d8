package ml

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/charquest/ml-service/internal/charts"
)

// Diagram targets accepted by RenderDiagram.
const (
	DiagramClassifier = "classifier"
	DiagramRegressor  = "regressor"
)

// FeatureImportance pairs a frozen feature name with its importance
// score.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FeatureImportance returns the topN features of the trained
// classifier ranked by descending importance. Features with exactly
// zero importance are excluded.
func (m *CharacterTree) FeatureImportance(topN int) ([]FeatureImportance, error) {
	if !m.trainedClassifier {
		return nil, ErrNotTrained
	}
	if topN < 1 {
		return nil, fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidArgument, topN)
	}

	importances := m.classifier.FeatureImportances()
	names := m.assembler.FeatureNames()

	order := make([]int, len(importances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return importances[order[a]] > importances[order[b]]
	})

	ranked := make([]FeatureImportance, 0, topN)
	for _, idx := range order {
		if len(ranked) == topN || importances[idx] <= 0 {
			break
		}
		ranked = append(ranked, FeatureImportance{
			Feature:    names[idx],
			Importance: importances[idx],
		})
	}
	return ranked, nil
}

// DecisionRules renders the trained classifier's branching logic as
// indented text using the frozen feature names, truncated to maxDepth
// levels.
func (m *CharacterTree) DecisionRules(maxDepth int) (string, error) {
	if !m.trainedClassifier {
		return "", ErrNotTrained
	}
	if maxDepth < 1 {
		return "", fmt.Errorf("%w: max_depth must be positive, got %d", ErrInvalidArgument, maxDepth)
	}

	var sb strings.Builder
	m.writeRules(&sb, m.classifier, 0, 0, maxDepth)
	return sb.String(), nil
}

func (m *CharacterTree) writeRules(sb *strings.Builder, tree *DecisionTree, nodeIdx, depth, maxDepth int) {
	node := &tree.Nodes[nodeIdx]
	indent := strings.Repeat("|   ", depth)

	if node.isLeaf() {
		fmt.Fprintf(sb, "%s|--- class: %s\n", indent, m.leafClassName(node))
		return
	}

	if depth >= maxDepth {
		fmt.Fprintf(sb, "%s|--- truncated branch of depth %d\n", indent, tree.depthFrom(nodeIdx))
		return
	}

	name := m.assembler.FeatureNames()[node.Feature]
	fmt.Fprintf(sb, "%s|--- %s <= %.2f\n", indent, name, node.Threshold)
	m.writeRules(sb, tree, node.Left, depth+1, maxDepth)
	fmt.Fprintf(sb, "%s|--- %s >  %.2f\n", indent, name, node.Threshold)
	m.writeRules(sb, tree, node.Right, depth+1, maxDepth)
}

// leafClassName resolves the majority class label of a classifier leaf.
func (m *CharacterTree) leafClassName(node *treeNode) string {
	best := 0
	for c, count := range node.ClassCounts {
		if count > node.ClassCounts[best] {
			best = c
		}
	}
	return m.classNames[best]
}

// RenderDiagram renders a depth-limited diagram of the chosen trained
// model into an in-memory buffer and returns it base64-encoded.
func (m *CharacterTree) RenderDiagram(which string, maxDepth int) (string, error) {
	var tree *DecisionTree
	var title string

	switch which {
	case DiagramClassifier:
		if !m.trainedClassifier {
			return "", ErrNotTrained
		}
		tree = m.classifier
		title = "Decision Tree - Classifier"
	case DiagramRegressor:
		if !m.trainedRegressor {
			return "", ErrNotTrained
		}
		tree = m.regressor
		title = "Decision Tree - Regressor"
	default:
		return "", fmt.Errorf("%w: diagram target must be %q or %q, got %q",
			ErrInvalidArgument, DiagramClassifier, DiagramRegressor, which)
	}
	if maxDepth < 1 {
		return "", fmt.Errorf("%w: max_depth must be positive, got %d", ErrInvalidArgument, maxDepth)
	}

	root := m.diagramNode(tree, 0, 0, maxDepth)

	cfg := charts.DefaultChartConfig()
	cfg.Title = title
	rendered, err := charts.RenderTree(root, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to render tree diagram: %w", err)
	}
	return base64.StdEncoding.EncodeToString(rendered), nil
}

// diagramNode converts a subtree into chart nodes, collapsing branches
// below the depth limit.
func (m *CharacterTree) diagramNode(tree *DecisionTree, nodeIdx, depth, maxDepth int) *charts.TreeNode {
	node := &tree.Nodes[nodeIdx]

	if node.isLeaf() {
		if tree.Kind == TreeClassifier {
			return &charts.TreeNode{
				Name: fmt.Sprintf("class: %s (%d)", m.leafClassName(node), node.Samples),
			}
		}
		return &charts.TreeNode{
			Name: fmt.Sprintf("value: %.2f (%d)", node.Value, node.Samples),
		}
	}

	if depth >= maxDepth {
		return &charts.TreeNode{
			Name: fmt.Sprintf("truncated (depth %d)", tree.depthFrom(nodeIdx)),
		}
	}

	name := m.assembler.FeatureNames()[node.Feature]
	return &charts.TreeNode{
		Name: fmt.Sprintf("%s <= %.2f", name, node.Threshold),
		Children: []*charts.TreeNode{
			m.diagramNode(tree, node.Left, depth+1, maxDepth),
			m.diagramNode(tree, node.Right, depth+1, maxDepth),
		},
	}
}

// ImportanceChart renders the ranked feature importances of the
// trained classifier as a bar chart in an in-memory buffer.
func (m *CharacterTree) ImportanceChart(topN int) ([]byte, error) {
	ranked, err := m.FeatureImportance(topN)
	if err != nil {
		return nil, err
	}

	points := make([]charts.DataPoint, len(ranked))
	for i, fi := range ranked {
		points[i] = charts.DataPoint{Label: fi.Feature, Value: fi.Importance}
	}

	cfg := charts.DefaultChartConfig()
	cfg.Title = "Feature Importance"
	cfg.YAxisLabel = "Importance"
	return charts.RenderImportanceBar(points, cfg)
}
