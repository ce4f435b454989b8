package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

const defaultMaxDepth = 5

type DecisionTree struct {
	nodes    []TreeNode
	maxDepth int
}

type TreeNode struct {
	FeatureIdx  int     `json:"feature_idx"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	ClassLabel  int     `json:"class_label"`
	ClassCounts []int   `json:"class_counts,omitempty"`
	IsLeaf      bool    `json:"is_leaf"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &DecisionTree{maxDepth: maxDepth}
}

func (dt *DecisionTree) Type() string { return ModelTypeDecisionTree }

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	numClasses := len(ClassLabels())
	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return fmt.Errorf("label %d at row %d out of range", label, i)
		}
	}
	maxDepth := dt.maxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	dt.nodes = dt.buildNode(features, labels, 0, maxDepth)
	return nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.nodes) == 0 {
		return TreeNode{}, errors.New("model not trained")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
}

func (dt *DecisionTree) Classify(features []float64) (int, error) {
	if len(features) != len(FeatureNames()) {
		return 0, fmt.Errorf("expected %d features, got %d", len(FeatureNames()), len(features))
	}
	node, err := dt.leaf(features)
	if err != nil {
		return 0, err
	}
	return node.ClassLabel, nil
}

// ClassProbabilities returns the class frequencies of the training rows that
// reached the leaf.
func (dt *DecisionTree) ClassProbabilities(features []float64) ([]float64, error) {
	if len(features) != len(FeatureNames()) {
		return nil, fmt.Errorf("expected %d features, got %d", len(FeatureNames()), len(features))
	}
	node, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(ClassLabels()))
	total := 0
	for _, c := range node.ClassCounts {
		total += c
	}
	if total == 0 {
		probs[node.ClassLabel] = 1
		return probs, nil
	}
	for i, c := range node.ClassCounts {
		if i < len(probs) {
			probs[i] = float64(c) / float64(total)
		}
	}
	return probs, nil
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	return json.Marshal(dt.nodes)
}

func (dt *DecisionTree) UnmarshalJSON(payload []byte) error {
	var nodes []TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return err
	}
	dt.nodes = nodes
	return nil
}

func (dt *DecisionTree) validate() error {
	if len(dt.nodes) == 0 {
		return errors.New("no nodes")
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if _, ok := LabelFor(node.ClassLabel); !ok {
				return fmt.Errorf("node %d: class %d out of range", i, node.ClassLabel)
			}
			continue
		}
		if node.LeftChild <= i || node.RightChild <= i || node.LeftChild >= len(dt.nodes) || node.RightChild >= len(dt.nodes) {
			return fmt.Errorf("node %d: invalid children", i)
		}
	}
	return nil
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int, maxDepth int) []TreeNode {
	label := majorityLabel(labels)
	leaf := []TreeNode{{
		FeatureIdx:  -1,
		LeftChild:   -1,
		RightChild:  -1,
		ClassLabel:  label,
		ClassCounts: classCounts(labels),
		IsLeaf:      true,
	}}
	if depth >= maxDepth || isPure(labels) {
		return leaf
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return leaf
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return leaf
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1, maxDepth)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1, maxDepth)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		ClassLabel: label,
		IsLeaf:     false,
	}

	// children are laid out after the root, so their indices shift by one
	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, offsetChildren(leftNodes, 1)...)
	nodes = append(nodes, offsetChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func offsetChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}

// findBestSplit scans midpoints between consecutive distinct values of every
// feature and keeps the split with the lowest weighted Gini impurity.
func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		slices.Sort(values)
		values = slices.Compact(values)

		for i := 1; i < len(values); i++ {
			threshold := (values[i-1] + values[i]) / 2
			leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
			if len(leftLabels) == 0 || len(rightLabels) == 0 {
				continue
			}
			impurity := weightedGini(leftLabels, rightLabels)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range classCounts(labels) {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func classCounts(labels []int) []int {
	counts := make([]int, len(ClassLabels()))
	for _, label := range labels {
		if label >= 0 && label < len(counts) {
			counts[label]++
		}
	}
	return counts
}

// majorityLabel breaks ties toward the lower class index.
func majorityLabel(labels []int) int {
	counts := classCounts(labels)
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
