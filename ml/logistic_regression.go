package ml

import (
	"errors"
	"fmt"
	"math"
)

const (
	defaultMaxIter      = 500
	defaultLearningRate = 0.5
	defaultL2           = 1e-3
)

// LogisticRegression is a multinomial (softmax) classifier fitted with batch
// gradient descent on standardized features. The standardization stats are
// part of the artifact so serving takes raw measurements.
type LogisticRegression struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
	Means   []float64   `json:"means"`
	Scales  []float64   `json:"scales"`

	maxIter      int
	learningRate float64
	l2           float64

	// OnIteration is called after every gradient step when set.
	OnIteration func(iter int) `json:"-"`
}

func NewLogisticRegression(maxIter int, learningRate float64) *LogisticRegression {
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	if learningRate <= 0 {
		learningRate = defaultLearningRate
	}
	return &LogisticRegression{
		maxIter:      maxIter,
		learningRate: learningRate,
		l2:           defaultL2,
	}
}

func (lr *LogisticRegression) Type() string { return ModelTypeLogisticRegression }

// MaxIter reports the number of gradient steps Train will take.
func (lr *LogisticRegression) MaxIter() int {
	if lr.maxIter <= 0 {
		return defaultMaxIter
	}
	return lr.maxIter
}

func (lr *LogisticRegression) Train(features [][]float64, labels []int) error {
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

	preprocessor := &DataPreprocessor{}
	if err := preprocessor.ComputeStats(features); err != nil {
		return err
	}
	x, err := preprocessor.TransformAll(features)
	if err != nil {
		return err
	}

	width := len(x[0])
	weights := make([][]float64, numClasses)
	for k := range weights {
		weights[k] = make([]float64, width)
	}
	bias := make([]float64, numClasses)

	learningRate := lr.learningRate
	if learningRate <= 0 {
		learningRate = defaultLearningRate
	}
	n := float64(len(x))
	gradW := make([][]float64, numClasses)
	for k := range gradW {
		gradW[k] = make([]float64, width)
	}
	gradB := make([]float64, numClasses)
	scores := make([]float64, numClasses)

	for iter := 0; iter < lr.MaxIter(); iter++ {
		for k := range gradW {
			clear(gradW[k])
		}
		clear(gradB)

		for i, row := range x {
			linear(weights, bias, row, scores)
			softmax(scores)
			for k := range scores {
				diff := scores[k]
				if labels[i] == k {
					diff -= 1
				}
				gradB[k] += diff
				for j, v := range row {
					gradW[k][j] += diff * v
				}
			}
		}

		for k := range weights {
			bias[k] -= learningRate * gradB[k] / n
			for j := range weights[k] {
				g := gradW[k][j]/n + lr.l2*weights[k][j]
				weights[k][j] -= learningRate * g
			}
		}

		if lr.OnIteration != nil {
			lr.OnIteration(iter)
		}
	}

	lr.Weights = weights
	lr.Bias = bias
	lr.Means, lr.Scales = preprocessor.Stats()
	return nil
}

func (lr *LogisticRegression) ClassProbabilities(row []float64) ([]float64, error) {
	if len(lr.Weights) == 0 {
		return nil, errors.New("model not trained")
	}
	x, err := standardize(row, lr.Means, lr.Scales)
	if err != nil {
		return nil, err
	}
	for i, v := range x {
		x[i] = math.Max(-maxStandardized, math.Min(maxStandardized, v))
	}
	scores := make([]float64, len(lr.Weights))
	linear(lr.Weights, lr.Bias, x, scores)
	softmax(scores)
	return scores, nil
}

func (lr *LogisticRegression) Classify(row []float64) (int, error) {
	probs, err := lr.ClassProbabilities(row)
	if err != nil {
		return 0, err
	}
	return argmax(probs), nil
}

func (lr *LogisticRegression) validate() error {
	if len(lr.Weights) == 0 {
		return errors.New("no weights")
	}
	if len(lr.Weights) != len(ClassLabels()) || len(lr.Bias) != len(lr.Weights) {
		return fmt.Errorf("expected %d classes, got %d", len(ClassLabels()), len(lr.Weights))
	}
	width := len(FeatureNames())
	if len(lr.Means) != width || len(lr.Scales) != width {
		return errors.New("standardization stats do not match feature count")
	}
	for _, w := range lr.Weights {
		if len(w) != width {
			return errors.New("weight row does not match feature count")
		}
	}
	for _, s := range lr.Scales {
		if s == 0 {
			return errors.New("zero scale")
		}
	}
	return nil
}

// maxStandardized bounds standardized inputs so class scores stay finite for
// any finite measurement.
const maxStandardized = 1e6

func linear(weights [][]float64, bias, x, out []float64) {
	for k, w := range weights {
		sum := bias[k]
		for j, v := range x {
			sum += w[j] * v
		}
		out[k] = sum
	}
}

func softmax(scores []float64) {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	var total float64
	for i, s := range scores {
		scores[i] = math.Exp(s - maxScore)
		total += scores[i]
	}
	for i := range scores {
		scores[i] /= total
	}
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
