// Package predict validates prediction requests, runs the classifier and
// shapes the result.
package predict

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"irisapi/ml"
)

// Result is the outcome of one prediction.
type Result struct {
	PredictedLabel     string    `json:"prediction"`
	ClassProbabilities []float64 `json:"prediction_proba"`
}

// ClassifierSource hands out the loaded classifier.
type ClassifierSource interface {
	EnsureLoaded() (ml.Classifier, error)
}

type rowKey [4]float64

type Handler struct {
	source ClassifierSource
	logger *zap.Logger
	cache  *lru.Cache[rowKey, Result]
}

// NewHandler builds a Handler. cacheSize > 0 memoizes results per feature row.
func NewHandler(source ClassifierSource, cacheSize int, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{source: source, logger: logger}
	if cacheSize > 0 {
		cache, err := lru.New[rowKey, Result](cacheSize)
		if err != nil {
			return nil, err
		}
		h.cache = cache
	}
	return h, nil
}

// HandlePredict runs the full pipeline for one raw JSON body.
func (h *Handler) HandlePredict(raw []byte) (*Result, error) {
	classifier, err := h.source.EnsureLoaded()
	if err != nil {
		h.logger.Warn("prediction without a model", zap.Error(err))
		return nil, &RequestError{
			Kind:   ServiceUnavailable,
			Reason: "model not loaded",
			Err:    err,
		}
	}

	row, reqErr := parseRow(raw)
	if reqErr != nil {
		return nil, reqErr
	}

	var key rowKey
	copy(key[:], row)
	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			return cloneResult(&cached), nil
		}
	}

	index, err := classifier.Classify(row)
	if err != nil {
		return nil, &RequestError{Kind: Internal, Reason: "classification failed", Err: err}
	}
	probs, err := classifier.ClassProbabilities(row)
	if err != nil {
		return nil, &RequestError{Kind: Internal, Reason: "classification failed", Err: err}
	}

	if !validProbabilities(probs) {
		h.logger.Error("classifier returned invalid probabilities",
			zap.Float64s("row", row),
			zap.Float64s("probabilities", probs))
		return nil, &RequestError{Kind: Internal, Reason: "invalid class probabilities"}
	}

	label, ok := ml.LabelFor(index)
	if !ok {
		h.logger.Error("classifier returned unknown class index", zap.Int("index", index))
		return nil, &RequestError{Kind: Internal, Reason: "unknown class index"}
	}

	result := Result{PredictedLabel: label, ClassProbabilities: probs}
	if h.cache != nil {
		h.cache.Add(key, *cloneResult(&result))
	}
	return &result, nil
}

// parseRow decodes the body and assembles the row in ml.FeatureNames order.
// Keys are checked in that order and the first missing one is reported.
func parseRow(raw []byte) ([]float64, *RequestError) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var body map[string]interface{}
	if err := decoder.Decode(&body); err != nil || body == nil {
		return nil, badRequest("malformed JSON")
	}
	if decoder.More() {
		return nil, badRequest("malformed JSON")
	}

	// invalid values are kept as NaN so a missing key is reported first
	names := ml.FeatureNames()
	values := make(map[string]float64, len(names))
	for _, name := range names {
		value, ok := body[name]
		if !ok {
			continue
		}
		v, ok := toFloat(value)
		if !ok {
			v = math.NaN()
		}
		values[name] = v
	}

	row, err := ml.FeatureVector(values)
	if err != nil {
		return nil, badRequest("%s", err.Error())
	}
	for i, v := range row {
		if math.IsNaN(v) {
			return nil, badRequest("invalid value for %s", names[i])
		}
	}
	return row, nil
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(value interface{}) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch v := value.(type) {
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// validProbabilities holds when there is one finite probability per class
// and they sum to 1.
func validProbabilities(probs []float64) bool {
	if len(probs) != len(ml.ClassLabels()) {
		return false
	}
	sum := 0.0
	for _, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			return false
		}
		sum += p
	}
	return math.Abs(sum-1) <= 1e-6
}

func cloneResult(r *Result) *Result {
	return &Result{
		PredictedLabel:     r.PredictedLabel,
		ClassProbabilities: append([]float64(nil), r.ClassProbabilities...),
	}
}
