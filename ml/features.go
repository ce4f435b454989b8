package ml

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	SepalLength = "sepal_length"
	SepalWidth  = "sepal_width"
	PetalLength = "petal_length"
	PetalWidth  = "petal_width"
)

// FeatureNames returns the column order classifiers are trained with.
// Serving rows must be assembled in exactly this order.
func FeatureNames() []string {
	return []string{
		SepalLength,
		SepalWidth,
		PetalLength,
		PetalWidth,
	}
}

// ClassLabels maps class index to species name.
func ClassLabels() []string {
	return []string{
		"setosa",
		"versicolor",
		"virginica",
	}
}

// LabelFor returns the species name for a class index.
func LabelFor(index int) (string, bool) {
	labels := ClassLabels()
	if index < 0 || index >= len(labels) {
		return "", false
	}
	return labels[index], true
}

// ClassIndex resolves a species column value. It accepts the bare name
// ("setosa"), the UCI form ("Iris-setosa") or the numeric index ("0").
func ClassIndex(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if idx, err := strconv.Atoi(value); err == nil {
		if _, ok := LabelFor(idx); ok {
			return idx, true
		}
		return 0, false
	}

	name := strings.ToLower(value)
	name = strings.TrimPrefix(name, "iris-")
	for i, label := range ClassLabels() {
		if label == name {
			return i, true
		}
	}
	return 0, false
}

// FeatureVector assembles a row from named values in FeatureNames order.
func FeatureVector(values map[string]float64) ([]float64, error) {
	names := FeatureNames()
	row := make([]float64, len(names))
	for i, name := range names {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("missing feature: %s", name)
		}
		row[i] = v
	}
	return row, nil
}
