package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
)

var (
	ErrUnsupportedModel = errors.New("unsupported model type")
	ErrSchemaMismatch   = errors.New("artifact schema does not match serving schema")
)

// artifact is the on-disk envelope. FeatureNames and Classes pin the
// training-time column and label order.
type artifact struct {
	ModelType    string          `json:"model_type"`
	FeatureNames []string        `json:"feature_names"`
	Classes      []string        `json:"classes"`
	Model        json.RawMessage `json:"model"`
}

// SaveModel writes a trained model as a JSON artifact.
func SaveModel(model MLModel, path string) error {
	payload, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode %s: %w", model.Type(), err)
	}
	envelope := artifact{
		ModelType:    model.Type(),
		FeatureNames: FeatureNames(),
		Classes:      ClassLabels(),
		Model:        payload,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadModel reads an artifact from path. A missing file surfaces as an error
// wrapping fs.ErrNotExist; every other failure means the file is unusable.
func LoadModel(path string) (MLModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeModel(data)
}

// DecodeModel parses artifact bytes and validates them against the serving schema.
func DecodeModel(data []byte) (MLModel, error) {
	var envelope artifact
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if !slices.Equal(envelope.FeatureNames, FeatureNames()) {
		return nil, fmt.Errorf("%w: feature order %v", ErrSchemaMismatch, envelope.FeatureNames)
	}
	if !slices.Equal(envelope.Classes, ClassLabels()) {
		return nil, fmt.Errorf("%w: classes %v", ErrSchemaMismatch, envelope.Classes)
	}

	var model MLModel
	switch envelope.ModelType {
	case ModelTypeLogisticRegression:
		model = &LogisticRegression{}
	case ModelTypeDecisionTree:
		model = &DecisionTree{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, envelope.ModelType)
	}
	if err := json.Unmarshal(envelope.Model, model); err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.ModelType, err)
	}
	if v, ok := model.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envelope.ModelType, err)
		}
	}
	return model, nil
}
