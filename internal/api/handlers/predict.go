package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/randytsao24/brigade/internal/geocode"
	"github.com/randytsao24/brigade/internal/models"
)

const (
	maxBodyBytes       = 1 << 20
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

type PredictHandler struct {
	predictor Predictor
	recorder  Recorder
	logger    *slog.Logger
}

// NewPredictHandler creates the prediction handler. recorder may be nil.
func NewPredictHandler(predictor Predictor, recorder Recorder, logger *slog.Logger) *PredictHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictHandler{
		predictor: predictor,
		recorder:  recorder,
		logger:    logger,
	}
}

// predictRequest also accepts the PascalCase HourOfCall/IncidentGroup/PropertyCategory keys
// older clients send, since json matches keys case-insensitively.
type predictRequest struct {
	Address          string `json:"address"`
	HourOfCall       *int   `json:"hourOfCall"`
	IncidentGroup    string `json:"incidentGroup"`
	PropertyCategory string `json:"propertyCategory"`
}

func (p predictRequest) validate() (models.PredictionRequest, string) {
	req := models.PredictionRequest{
		Address:          strings.TrimSpace(p.Address),
		IncidentGroup:    strings.TrimSpace(p.IncidentGroup),
		PropertyCategory: strings.TrimSpace(p.PropertyCategory),
	}
	switch {
	case req.Address == "":
		return req, "address is required"
	case p.HourOfCall == nil:
		return req, "hourOfCall is required"
	case *p.HourOfCall < 0 || *p.HourOfCall > 23:
		return req, "hourOfCall must be between 0 and 23"
	case req.IncidentGroup == "":
		return req, "incidentGroup is required"
	case req.PropertyCategory == "":
		return req, "propertyCategory is required"
	}
	req.HourOfCall = *p.HourOfCall
	return req, ""
}

type predictResponse struct {
	ID string `json:"id,omitempty"`
	*models.PredictionResult
}

// Predict runs one prediction
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var body predictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	req, problem := body.validate()
	if problem != "" {
		writeError(w, http.StatusBadRequest, "Invalid prediction request", problem)
		return
	}

	result, err := h.predictor.Predict(r.Context(), req)
	if err != nil {
		h.writePredictError(w, r, err)
		return
	}

	resp := predictResponse{PredictionResult: result}
	if h.recorder != nil {
		id, err := h.recorder.Record(r.Context(), req, *result)
		if err != nil {
			h.logger.Warn("recording prediction failed", "error", err)
		} else {
			resp.ID = id
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *PredictHandler) writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, geocode.ErrEmptyAddress):
		writeError(w, http.StatusBadRequest, "Invalid prediction request", "address is required")
	case errors.Is(err, geocode.ErrNoMatch):
		writeError(w, http.StatusUnprocessableEntity, "Address not found", err.Error())
	case errors.Is(err, geocode.ErrUnavailable):
		h.logger.Warn("geocoder unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "Geocoding service unavailable", "")
	default:
		h.logger.Error("prediction failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Prediction failed", "")
	}
}

// Recent lists recorded predictions, newest first
func (h *PredictHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		writeError(w, http.StatusServiceUnavailable, "Prediction recording is disabled", "set RECORDER_DRIVER to enable it")
		return
	}

	limit := parseIntParam(r, "limit", defaultRecentLimit, 1, maxRecentLimit)
	entries, err := h.recorder.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing predictions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list predictions", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"count":       len(entries),
		"predictions": entries,
	})
}
