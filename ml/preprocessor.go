package ml

import (
	"errors"
	"fmt"
	"math"
)

// DataPreprocessor standardizes feature columns to zero mean and unit variance.
type DataPreprocessor struct {
	means  []float64
	scales []float64
}

func (p *DataPreprocessor) ComputeStats(features [][]float64) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	width := len(features[0])
	means := make([]float64, width)
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
		for j, v := range row {
			means[j] += v
		}
	}
	n := float64(len(features))
	for j := range means {
		means[j] /= n
	}

	scales := make([]float64, width)
	for _, row := range features {
		for j, v := range row {
			d := v - means[j]
			scales[j] += d * d
		}
	}
	for j := range scales {
		scales[j] = math.Sqrt(scales[j] / n)
		// constant column
		if scales[j] == 0 {
			scales[j] = 1
		}
	}

	p.means = means
	p.scales = scales
	return nil
}

func (p *DataPreprocessor) Transform(row []float64) ([]float64, error) {
	if p.means == nil {
		return nil, errors.New("feature stats not computed")
	}
	return standardize(row, p.means, p.scales)
}

func (p *DataPreprocessor) TransformAll(features [][]float64) ([][]float64, error) {
	out := make([][]float64, len(features))
	for i, row := range features {
		v, err := p.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Stats returns copies of the per-column means and scales.
func (p *DataPreprocessor) Stats() (means, scales []float64) {
	return append([]float64(nil), p.means...), append([]float64(nil), p.scales...)
}

func standardize(row, means, scales []float64) ([]float64, error) {
	if len(row) != len(means) {
		return nil, fmt.Errorf("expected %d features, got %d", len(means), len(row))
	}
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = (v - means[i]) / scales[i]
	}
	return out, nil
}
