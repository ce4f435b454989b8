package ml

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadModel(t *testing.T) {
	for _, modelType := range []string{ModelTypeLogisticRegression, ModelTypeDecisionTree} {
		t.Run(modelType, func(t *testing.T) {
			dataset, err := BundledDataset()
			require.NoError(t, err)

			model, err := NewModel(modelType, TrainOptions{})
			require.NoError(t, err)
			require.NoError(t, model.Train(dataset.Features, dataset.Labels))

			path := filepath.Join(t.TempDir(), "model.json")
			require.NoError(t, SaveModel(model, path))

			loaded, err := LoadModel(path)
			require.NoError(t, err)
			assert.Equal(t, modelType, loaded.Type())

			row := []float64{5.1, 3.5, 1.4, 0.2}
			want, err := model.ClassProbabilities(row)
			require.NoError(t, err)
			got, err := loaded.ClassProbabilities(row)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, got, 1e-12)

			label, err := loaded.Classify(row)
			require.NoError(t, err)
			assert.Equal(t, 0, label)
		})
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestDecodeModelRejectsBadArtifacts(t *testing.T) {
	cases := map[string]struct {
		payload string
		target  error
	}{
		"not json":       {payload: "dummy content"},
		"unknown type":   {payload: `{"model_type":"svm","feature_names":["sepal_length","sepal_width","petal_length","petal_width"],"classes":["setosa","versicolor","virginica"],"model":{}}`, target: ErrUnsupportedModel},
		"feature order":  {payload: `{"model_type":"logistic_regression","feature_names":["sepal_width","sepal_length","petal_length","petal_width"],"classes":["setosa","versicolor","virginica"],"model":{}}`, target: ErrSchemaMismatch},
		"class order":    {payload: `{"model_type":"logistic_regression","feature_names":["sepal_length","sepal_width","petal_length","petal_width"],"classes":["virginica","versicolor","setosa"],"model":{}}`, target: ErrSchemaMismatch},
		"empty weights":  {payload: `{"model_type":"logistic_regression","feature_names":["sepal_length","sepal_width","petal_length","petal_width"],"classes":["setosa","versicolor","virginica"],"model":{"weights":[]}}`},
		"empty tree":     {payload: `{"model_type":"decision_tree","feature_names":["sepal_length","sepal_width","petal_length","petal_width"],"classes":["setosa","versicolor","virginica"],"model":[]}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeModel([]byte(tc.payload))
			require.Error(t, err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
		})
	}
}

func TestNewModelUnsupported(t *testing.T) {
	_, err := NewModel("svm", TrainOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestSaveModelWritesSchema(t *testing.T) {
	model := NewDecisionTree(1)
	require.NoError(t, model.Train([][]float64{{1, 1, 1, 1}, {2, 2, 2, 2}}, []int{0, 1}))
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, SaveModel(model, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"feature_names"`)
	assert.Contains(t, string(data), `"sepal_length"`)
}
