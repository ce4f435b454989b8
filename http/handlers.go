package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"irisapi/artifact"
	"irisapi/db"
	"irisapi/monitoring"
	"irisapi/predict"
)

const banner = "MLOps Iris Prediction API. Use /predict endpoint."

// Handlers serves the prediction API.
type Handlers struct {
	predictor *predict.Handler
	loader    *artifact.Loader
	metrics   *monitoring.MetricsCollector
	logger    *zap.Logger

	trainingLog func(limit int) ([]db.TrainingLog, error)
}

func NewHandlers(predictor *predict.Handler, loader *artifact.Loader, metrics *monitoring.MetricsCollector, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}
	metrics.Describe("predictions_total", "Successful predictions by label")
	metrics.Describe("prediction_errors_total", "Failed predictions by error kind")
	metrics.Describe("http_requests_total", "HTTP requests by method and status")
	return &Handlers{
		predictor:   predictor,
		loader:      loader,
		metrics:     metrics,
		logger:      logger,
		trainingLog: db.LoadTrainingLog,
	}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleHome)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/model", h.handleModel)
}

func (h *Handlers) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, banner)
}

type predictResponse struct {
	Prediction      string    `json:"prediction"`
	PredictionProba []float64 `json:"prediction_proba"`
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.recordError("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.recordError(predict.BadRequest.String())
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	result, err := h.predictor.HandlePredict(body)
	if err != nil {
		var reqErr *predict.RequestError
		if !errors.As(err, &reqErr) {
			reqErr = &predict.RequestError{Kind: predict.Internal, Reason: "internal error", Err: err}
		}
		h.recordError(reqErr.Kind.String())

		status := statusFor(reqErr.Kind)
		if status >= http.StatusInternalServerError {
			h.logger.Error("prediction failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Stringer("kind", reqErr.Kind),
				zap.Error(err))
		}
		writeError(w, status, reqErr.Error())
		return
	}

	h.metrics.IncrCounter("predictions_total", 1, map[string]string{"label": result.PredictedLabel})
	writeJSON(w, http.StatusOK, predictResponse{
		Prediction:      result.PredictedLabel,
		PredictionProba: result.ClassProbabilities,
	})
}

// statusFor maps request failures to HTTP status codes. Load failures and
// internal errors are both server-side, so both map to 500.
func statusFor(kind predict.ErrorKind) int {
	switch kind {
	case predict.BadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) recordError(kind string) {
	h.metrics.IncrCounter("prediction_errors_total", 1, map[string]string{"kind": kind})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  h.loader.State().String(),
	})
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = io.WriteString(w, h.metrics.ExportPrometheus())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": h.metrics.Snapshot(),
		"system":  h.metrics.GetSystemStats(),
	})
}

type modelResponse struct {
	Path         string          `json:"path"`
	State        string          `json:"state"`
	LastTraining *db.TrainingLog `json:"last_training,omitempty"`
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	response := modelResponse{
		Path:  h.loader.Path(),
		State: h.loader.State().String(),
	}
	logs, err := h.trainingLog(1)
	switch {
	case err == nil && len(logs) > 0:
		response.LastTraining = &logs[0]
	case err != nil && !errors.Is(err, db.ErrNotInitialized):
		h.logger.Warn("read training log", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, response)
}

// writeJSON encodes v before touching the status line, so an unencodable
// value becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
