package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/internal/lifecycle"
	"github.com/equipwatch/equipwatch/pkg/errors"
	"github.com/equipwatch/equipwatch/pkg/models"
)

// MLHandler serves the model lifecycle HTTP API
type MLHandler struct {
	manager *lifecycle.Manager
	logger  *logrus.Logger
}

// NewMLHandler creates the lifecycle API handler
func NewMLHandler(manager *lifecycle.Manager, logger *logrus.Logger) *MLHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &MLHandler{manager: manager, logger: logger}
}

type trainRequest struct {
	Features    *models.FeatureSet `json:"features"`
	VersionBump string             `json:"version_bump"`
	CreatedBy   string             `json:"created_by"`
}

type validateRequest struct {
	ModelID string                 `json:"model_id"`
	Data    *models.ValidationData `json:"validation_data,omitempty"`
}

type deployRequest struct {
	ModelID  string `json:"model_id"`
	Strategy string `json:"strategy"`
	Force    bool   `json:"force"`
}

type rollbackRequest struct {
	TargetVersion string `json:"target_version"`
}

type monitorRequest struct {
	Features *models.FeatureSet `json:"features"`
	Outcomes map[string]float64 `json:"outcomes,omitempty"`
}

type retrainRequest struct {
	Features *models.FeatureSet `json:"features"`
	Force    bool               `json:"force"`
}

type scoreRequest struct {
	Features *models.FeatureSet `json:"features"`
}

// ModelStatus handles GET /api/v1/ml/model-status
func (h *MLHandler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status(r.Context()))
}

// ListModels handles GET /api/v1/ml/models
func (h *MLHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models": h.manager.Registry().List(),
	})
}

// Train handles POST /api/v1/ml/train
func (h *MLHandler) Train(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Features.SampleCount() == 0 {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "features are required"))
		return
	}

	bump := models.VersionBump(req.VersionBump)
	switch bump {
	case models.BumpMajor, models.BumpMinor, models.BumpPatch:
	case "":
		bump = models.BumpPatch
	default:
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidInput,
			"version_bump must be major, minor or patch"))
		return
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "api"
	}

	art, err := h.manager.TrainModel(r.Context(), req.Features, bump, createdBy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, art)
}

// Validate handles POST /api/v1/ml/validate
func (h *MLHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "model_id is required"))
		return
	}

	result, err := h.manager.ValidateModel(r.Context(), req.ModelID, req.Data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Deploy handles POST /api/v1/ml/deploy
func (h *MLHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "model_id is required"))
		return
	}

	err := h.manager.DeployModel(r.Context(), req.ModelID,
		models.DeploymentStrategy(req.Strategy), req.Force)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deployed": true,
		"model_id": req.ModelID,
	})
}

// Rollback handles POST /api/v1/ml/rollback
func (h *MLHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	target, err := h.manager.RollbackModel(r.Context(), req.TargetVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rolled_back": true,
		"model_id":    target.ID,
		"version":     target.Version.String(),
	})
}

// Monitor handles POST /api/v1/ml/monitor
func (h *MLHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Features.SampleCount() == 0 {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "features are required"))
		return
	}

	pm, err := h.manager.MonitorPerformance(r.Context(), req.Features, req.Outcomes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pm)
}

// Retrain handles POST /api/v1/ml/retrain
func (h *MLHandler) Retrain(w http.ResponseWriter, r *http.Request) {
	var req retrainRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Features.SampleCount() == 0 {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "features are required"))
		return
	}

	result, err := h.manager.TriggerRetraining(r.Context(), req.Features, req.Force)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HealthScores handles POST /api/v1/ml/health-scores
func (h *MLHandler) HealthScores(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Features.SampleCount() == 0 {
		h.writeError(w, errors.NewValidationError(errors.CodeInvalidInput, "features are required"))
		return
	}

	scores, err := h.manager.Score(r.Context(), req.Features)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scores": scores,
	})
}

// Health handles GET /health
func (h *MLHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *MLHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, errors.WrapError(err, errors.ErrorTypeValidation,
			errors.CodeInvalidInput, "invalid request body"))
		return false
	}
	return true
}

// writeError maps application errors onto HTTP responses; unknown errors are
// reported as 500 without leaking internals
func (h *MLHandler) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		if appErr.HTTPStatus >= 500 {
			h.logger.WithError(appErr).Error("Request failed")
		}
		writeJSON(w, appErr.HTTPStatus, map[string]interface{}{"error": appErr})
		return
	}

	h.logger.WithError(err).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]string{
			"code":    "INTERNAL_ERROR",
			"message": "internal server error",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
