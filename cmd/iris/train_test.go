package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"irisapi/artifact"
	"irisapi/db"
	"irisapi/ml"
	"irisapi/predict"
)

func defaultTrainOptions(dir string) trainOptions {
	return trainOptions{
		ModelType:   ml.ModelTypeLogisticRegression,
		OutPath:     filepath.Join(dir, "models", "model.json"),
		MetricsPath: filepath.Join(dir, "metrics.txt"),
		LedgerPath:  filepath.Join(dir, "training.db"),
		TestRatio:   0.2,
		Seed:        42,
	}
}

func TestRunTrainLogisticRegression(t *testing.T) {
	dir := t.TempDir()
	opts := defaultTrainOptions(dir)

	var progress bytes.Buffer
	result, err := runTrain(opts, zap.NewNop(), &progress)
	require.NoError(t, err)

	assert.Equal(t, 120, result.TrainRows)
	assert.Equal(t, 30, result.TestRows)
	assert.GreaterOrEqual(t, result.Metrics.Accuracy, 0.9)
	assert.NotEmpty(t, progress.String())

	metrics, err := os.ReadFile(opts.MetricsPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(metrics), "accuracy="))

	// the artifact must serve through the same path the API uses
	predictor, err := predict.NewHandler(artifact.NewLoader(opts.OutPath, nil), 0, nil)
	require.NoError(t, err)
	prediction, err := predictor.HandlePredict([]byte(`{"sepal_length":5.1,"sepal_width":3.5,"petal_length":1.4,"petal_width":0.2}`))
	require.NoError(t, err)
	assert.Equal(t, "setosa", prediction.PredictedLabel)

	require.NoError(t, db.InitDB(opts.LedgerPath))
	defer db.Close()
	logs, err := db.LoadTrainingLog(0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ml.ModelTypeLogisticRegression, logs[0].ModelName)
	assert.Equal(t, result.Metrics.Accuracy, logs[0].Accuracy)
	assert.Equal(t, 120, logs[0].DataPoints)
}

func TestRunTrainAppendsMetrics(t *testing.T) {
	dir := t.TempDir()
	opts := defaultTrainOptions(dir)
	opts.ModelType = ml.ModelTypeDecisionTree
	opts.LedgerPath = ""

	_, err := runTrain(opts, zap.NewNop(), nil)
	require.NoError(t, err)
	_, err = runTrain(opts, zap.NewNop(), nil)
	require.NoError(t, err)

	metrics, err := os.ReadFile(opts.MetricsPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(metrics)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, lines[0], lines[1])
}

func TestRunTrainRejectsUnknownModel(t *testing.T) {
	opts := defaultTrainOptions(t.TempDir())
	opts.ModelType = "random_forest"

	_, err := runTrain(opts, zap.NewNop(), nil)
	require.ErrorIs(t, err, ml.ErrUnsupportedModel)
}

func TestRunTrainFromPreparedCSV(t *testing.T) {
	dir := t.TempDir()
	prepared := filepath.Join(dir, "data", "iris_prepared.csv")
	rows, err := runPrepare("", prepared, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 150, rows)

	opts := defaultTrainOptions(dir)
	opts.DataPath = prepared
	opts.LedgerPath = ""
	result, err := runTrain(opts, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, 150, result.TrainRows+result.TestRows)
}
