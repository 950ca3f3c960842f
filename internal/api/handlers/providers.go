package handlers

import (
	"context"

	"github.com/randytsao24/brigade/internal/models"
	"github.com/randytsao24/brigade/internal/predict"
	"github.com/randytsao24/brigade/internal/store"
)

// Predictor abstracts the prediction pipeline for testability.
type Predictor interface {
	Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error)
}

// StatusProvider reports what the predictor has loaded.
type StatusProvider interface {
	Status() predict.Status
	Categories() map[string][]string
}

// Recorder persists served predictions. A nil Recorder disables recording.
type Recorder interface {
	Record(ctx context.Context, req models.PredictionRequest, res models.PredictionResult) (string, error)
	Recent(ctx context.Context, limit int) ([]store.Entry, error)
}
