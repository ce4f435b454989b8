package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"irisapi/ml"
)

func TestRunPrepareCleansRawCSV(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	content := "\ufeffspecies,petal_width,petal_length,sepal_width,sepal_length\n" +
		"Iris-setosa,0.2,1.4,3.5,5.1\n" +
		"versicolor,1.3,4.0,2.8,6.1\n" +
		"virginica,,5.1,3.0,6.5\n" +
		"2,2.3,5.2,3.0,6.7\n" +
		"setosa,abc,1.3,3.0,4.9\n"
	require.NoError(t, os.WriteFile(raw, []byte(content), 0o644))

	out := filepath.Join(dir, "out", "prepared.csv")
	rows, err := runPrepare(raw, out, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"sepal_length,sepal_width,petal_length,petal_width,species\n"+
			"5.1,3.5,1.4,0.2,setosa\n"+
			"6.1,2.8,4,1.3,versicolor\n"+
			"6.7,3,5.2,2.3,virginica\n",
		string(written))
}

func TestRunPrepareBundled(t *testing.T) {
	out := filepath.Join(t.TempDir(), "iris.csv")
	rows, err := runPrepare("", out, false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 150, rows)

	file, err := os.Open(out)
	require.NoError(t, err)
	defer file.Close()
	dataset, dropped, err := ml.ReadDataset(file)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Equal(t, 150, dataset.Len())
}

func TestRunPrepareMissingInput(t *testing.T) {
	_, err := runPrepare(filepath.Join(t.TempDir(), "absent.csv"), filepath.Join(t.TempDir(), "out.csv"), false, zap.NewNop())
	require.Error(t, err)
}

func TestRunPrepareRejectsImplausibleRows(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	content := "sepal_length,sepal_width,petal_length,petal_width,species\n" +
		"5.1,3.5,1.4,0.2,setosa\n" +
		"5.1,3.5,1.4,0.2,setosa\n" +
		"-6.1,2.8,4.0,1.3,versicolor\n"
	require.NoError(t, os.WriteFile(raw, []byte(content), 0o644))

	rows, err := runPrepare(raw, filepath.Join(dir, "kept.csv"), false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	rows, err = runPrepare(raw, filepath.Join(dir, "deduped.csv"), true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}
