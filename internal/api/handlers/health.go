// Package handlers contains HTTP request handlers
package handlers

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	startTime time.Time
	status    StatusProvider
}

func NewHealthHandler(status StatusProvider) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), status: status}
}

// Health reports liveness plus the size of the loaded artifacts
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()

	code, state := http.StatusOK, "OK"
	if !st.Ready {
		code, state = http.StatusServiceUnavailable, "NOT_READY"
	}

	writeJSON(w, code, map[string]any{
		"status":     state,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    Version,
		"uptime":     time.Since(h.startTime).String(),
		"stations":   st.Stations,
		"boroughs":   st.Boroughs,
		"modelTrees": st.Trees,
		"model": map[string]string{
			"objective": st.Objective,
			"version":   st.ModelVersion,
		},
	})
}

// Verify is the plain liveness probe kept for existing clients
func (h *HealthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API is up"})
}
