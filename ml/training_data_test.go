package ml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundledDataset(t *testing.T) {
	dataset, err := BundledDataset()
	require.NoError(t, err)
	assert.Equal(t, 150, dataset.Len())

	counts := classCounts(dataset.Labels)
	assert.Equal(t, []int{50, 50, 50}, counts)
	assert.Equal(t, []float64{5.1, 3.5, 1.4, 0.2}, dataset.Features[0])
}

func TestReadDatasetReordersColumns(t *testing.T) {
	input := "\ufeffspecies,petal_width,sepal_length,petal_length,sepal_width\n" +
		"Iris-setosa,0.2,5.1,1.4,3.5\n" +
		"2,1.8,6.3,5.6,2.9\n"

	dataset, dropped, err := ReadDataset(strings.NewReader(input))
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, [][]float64{{5.1, 3.5, 1.4, 0.2}, {6.3, 2.9, 5.6, 1.8}}, dataset.Features)
	assert.Equal(t, []int{0, 2}, dataset.Labels)
}

func TestReadDatasetSkipsBadRows(t *testing.T) {
	input := "sepal_length,sepal_width,petal_length,petal_width,species\n" +
		"5.1,3.5,1.4,0.2,setosa\n" +
		"5.1,,1.4,0.2,setosa\n" +
		"abc,3.5,1.4,0.2,setosa\n" +
		"5.1,3.5,1.4,0.2,rose\n" +
		"NaN,3.5,1.4,0.2,setosa\n" +
		"7.0,3.2,4.7,1.4,versicolor\n"

	dataset, dropped, err := ReadDataset(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 4, dropped)
	assert.Equal(t, []int{0, 1}, dataset.Labels)
}

func TestReadDatasetMissingColumn(t *testing.T) {
	input := "sepal_length,sepal_width,petal_length,species\n5.1,3.5,1.4,setosa\n"
	_, _, err := ReadDataset(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "petal_width")
}

func TestReadDatasetEmpty(t *testing.T) {
	_, _, err := ReadDataset(strings.NewReader(""))
	assert.Error(t, err)
}

func TestWriteDatasetCanonicalOrder(t *testing.T) {
	dataset := &Dataset{
		Features: [][]float64{{5.1, 3.5, 1.4, 0.2}},
		Labels:   []int{0},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDataset(&buf, dataset))
	assert.Equal(t, "sepal_length,sepal_width,petal_length,petal_width,species\n5.1,3.5,1.4,0.2,setosa\n", buf.String())
}

func TestStratifiedSplit(t *testing.T) {
	dataset, err := BundledDataset()
	require.NoError(t, err)

	train, test := StratifiedSplit(dataset, 0.2, 42)
	assert.Equal(t, 120, train.Len())
	assert.Equal(t, 30, test.Len())
	assert.Equal(t, []int{10, 10, 10}, classCounts(test.Labels))

	again, _ := StratifiedSplit(dataset, 0.2, 42)
	assert.Equal(t, train.Features, again.Features, "split must be deterministic for a seed")
}

type constantClassifier int

func (c constantClassifier) Classify([]float64) (int, error) { return int(c), nil }

func (c constantClassifier) ClassProbabilities([]float64) ([]float64, error) {
	probs := make([]float64, 3)
	probs[c] = 1
	return probs, nil
}

func TestScore(t *testing.T) {
	dataset := &Dataset{
		Features: [][]float64{{1, 1, 1, 1}, {2, 2, 2, 2}, {3, 3, 3, 3}, {4, 4, 4, 4}},
		Labels:   []int{0, 0, 1, 1},
	}
	metrics, err := Score(constantClassifier(0), dataset)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, metrics.Accuracy, 1e-12)
	// class 0: precision 0.5 recall 1; class 1: precision 0 recall 0
	assert.InDelta(t, 0.25, metrics.Precision, 1e-12)
	assert.InDelta(t, 0.5, metrics.Recall, 1e-12)

	_, err = Score(constantClassifier(0), &Dataset{})
	assert.Error(t, err)
}
