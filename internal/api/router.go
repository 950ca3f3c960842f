package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/randytsao24/brigade/internal/api/handlers"
	"github.com/randytsao24/brigade/internal/config"
)

// RequestSlack covers everything in a prediction besides the geocoder round trip
const RequestSlack = 5 * time.Second

// RequestTimeout bounds a whole request, geocoding included
func RequestTimeout(cfg *config.Config) time.Duration {
	return cfg.GeocodeTimeout + RequestSlack
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
// recorder may be nil when prediction recording is disabled.
func NewRouter(
	cfg *config.Config,
	predictor handlers.Predictor,
	status handlers.StatusProvider,
	recorder handlers.Recorder,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(status)
	rootHandler := handlers.NewRootHandler(status)
	predictHandler := handlers.NewPredictHandler(predictor, recorder, logger)

	// Core routes
	mux.HandleFunc("GET /{$}", rootHandler.Index)
	mux.HandleFunc("GET /api", rootHandler.Index)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /verify", healthHandler.Verify)

	// Prediction routes
	mux.HandleFunc("POST /predict", predictHandler.Predict)
	mux.HandleFunc("GET /predictions", predictHandler.Recent)

	mux.HandleFunc("/", rootHandler.NotFound)

	// Apply middleware stack
	handler := Chain(mux,
		RequestID,
		Recovery,
		Logging,
		CORS,
		Timeout(RequestTimeout(cfg)),
	)

	return handler
}
