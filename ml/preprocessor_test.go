package ml

import (
	"math"
	"testing"
)

func TestDataPreprocessorStandardize(t *testing.T) {
	features := [][]float64{
		{1, 10, 5, 0},
		{2, 20, 5, 0},
		{3, 30, 5, 0},
	}

	preprocessor := &DataPreprocessor{}
	if _, err := preprocessor.Transform(features[0]); err == nil {
		t.Fatal("expected error before stats are computed")
	}
	if err := preprocessor.ComputeStats(features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vectors, err := preprocessor.TransformAll(features)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for col := 0; col < 2; col++ {
		mean, variance := 0.0, 0.0
		for _, v := range vectors {
			mean += v[col]
		}
		mean /= float64(len(vectors))
		for _, v := range vectors {
			variance += (v[col] - mean) * (v[col] - mean)
		}
		variance /= float64(len(vectors))
		if math.Abs(mean) > 1e-9 || math.Abs(variance-1) > 1e-9 {
			t.Fatalf("column %d: mean %f variance %f", col, mean, variance)
		}
	}
	// constant columns map to zero instead of dividing by zero
	for _, v := range vectors {
		if v[2] != 0 || v[3] != 0 {
			t.Fatalf("expected constant columns to standardize to 0, got %v", v)
		}
	}

	means, scales := preprocessor.Stats()
	if means[0] != 2 || scales[2] != 1 {
		t.Fatalf("unexpected stats: means=%v scales=%v", means, scales)
	}
}

func TestDataPreprocessorRaggedRows(t *testing.T) {
	preprocessor := &DataPreprocessor{}
	if err := preprocessor.ComputeStats([][]float64{{1, 2}, {1}}); err == nil {
		t.Fatal("expected error for ragged rows")
	}
	if err := preprocessor.ComputeStats(nil); err == nil {
		t.Fatal("expected error for empty features")
	}
}
