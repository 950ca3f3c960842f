package handlers

import (
	"net/http"
)

// Version is reported by /health and /api
const Version = "1.0.0"

type RootHandler struct {
	status StatusProvider
}

func NewRootHandler(status StatusProvider) *RootHandler {
	return &RootHandler{status: status}
}

func (h *RootHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "brigade",
		"description": "London Fire Brigade response-time prediction",
		"version":     Version,
		"endpoints": map[string]string{
			"GET /api":         "API information",
			"GET /health":      "Health check with loaded artifact sizes",
			"GET /verify":      "Liveness check",
			"POST /predict":    "Predict the attendance time for an incident",
			"GET /predictions": "Recently recorded predictions (?limit=1..100)",
		},
		"categories": h.status.Categories(),
	})
}

func (h *RootHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":   "Route not found",
		"message": "Check /api for available routes",
	})
}
