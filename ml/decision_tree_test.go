package ml

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDecisionTreeTrainPredict(t *testing.T) {
	features := [][]float64{
		{0.1, 0.2, 0.1, 0.1},
		{0.2, 0.1, 0.2, 0.1},
		{0.9, 0.8, 0.9, 0.9},
		{0.8, 0.9, 0.8, 0.9},
	}
	labels := []int{0, 0, 2, 2}

	model := NewDecisionTree(2)
	if err := model.Train(features, labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, err := model.Classify([]float64{0.15, 0.15, 0.15, 0.15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 0 {
		t.Fatalf("expected label 0, got %d", label)
	}
	probs, err := model.ClassProbabilities([]float64{0.85, 0.85, 0.85, 0.85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probs[2] != 1 {
		t.Fatalf("expected pure virginica leaf, got %v", probs)
	}
}

func TestDecisionTreeNestedChildIndices(t *testing.T) {
	dataset, err := BundledDataset()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	model := NewDecisionTree(4)
	if err := model.Train(dataset.Features, dataset.Labels); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := model.validate(); err != nil {
		t.Fatalf("trained tree failed validation: %v", err)
	}
	accuracy, err := Evaluate(model, dataset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accuracy < 0.95 {
		t.Fatalf("expected training accuracy >= 0.95, got %.3f", accuracy)
	}
	for _, row := range dataset.Features {
		probs, err := model.ClassProbabilities(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sum := 0.0
		for _, p := range probs {
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("probabilities sum to %f", sum)
		}
	}
}

func TestDecisionTreeJSONRoundTrip(t *testing.T) {
	model := NewDecisionTree(3)
	if err := model.Train([][]float64{{1, 1, 1, 1}, {5, 5, 5, 5}}, []int{0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload, err := json.Marshal(model)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	restored := &DecisionTree{}
	if err := json.Unmarshal(payload, restored); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, err := restored.Classify([]float64{4, 4, 4, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != 1 {
		t.Fatalf("expected label 1, got %d", label)
	}
}

func TestDecisionTreeUntrained(t *testing.T) {
	if _, err := (&DecisionTree{}).Classify([]float64{1, 2, 3, 4}); err == nil {
		t.Fatal("expected error for untrained tree")
	}
}
