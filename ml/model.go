package ml

// Classifier is the read-only surface a loaded artifact exposes to serving.
type Classifier interface {
	Classify(row []float64) (int, error)
	ClassProbabilities(row []float64) ([]float64, error)
}

// MLModel is a trainable classifier that can be written as an artifact.
type MLModel interface {
	Classifier
	Train(features [][]float64, labels []int) error
	Type() string
}

const (
	ModelTypeLogisticRegression = "logistic_regression"
	ModelTypeDecisionTree       = "decision_tree"
)

// NewModel returns an untrained model of the given type.
func NewModel(modelType string, opts TrainOptions) (MLModel, error) {
	switch modelType {
	case ModelTypeLogisticRegression, "":
		return NewLogisticRegression(opts.MaxIter, opts.LearningRate), nil
	case ModelTypeDecisionTree:
		return NewDecisionTree(opts.MaxDepth), nil
	default:
		return nil, ErrUnsupportedModel
	}
}

// TrainOptions carries the hyperparameters of every supported model type.
// Zero values select the defaults of the model.
type TrainOptions struct {
	MaxIter      int
	LearningRate float64
	MaxDepth     int
}
