// Package predict turns an incident description into a predicted response time.
//
// A prediction walks a fixed sequence of stages:
//
//	Start -> Geocoded -> StationResolved -> Encoded -> Assembled -> Predicted -> Done
//
// Any failure aborts the walk and is returned as a *StageError wrapping the component error.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randytsao24/brigade/internal/encoding"
	"github.com/randytsao24/brigade/internal/features"
	"github.com/randytsao24/brigade/internal/geocode"
	"github.com/randytsao24/brigade/internal/models"
)

// ErrNotReady is returned when no artifacts have been loaded
var ErrNotReady = errors.New("prediction artifacts not loaded")

// Stage is a step of the prediction pipeline
type Stage int

const (
	StageStart Stage = iota
	StageGeocoded
	StageStationResolved
	StageEncoded
	StageAssembled
	StagePredicted
	StageDone
)

var stageNames = [...]string{
	StageStart:           "start",
	StageGeocoded:        "geocoded",
	StageStationResolved: "station_resolved",
	StageEncoded:         "encoded",
	StageAssembled:       "assembled",
	StagePredicted:       "predicted",
	StageDone:            "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError reports the last stage reached before a failure
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("prediction failed after stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Service runs predictions. It is safe for concurrent use.
type Service struct {
	geocoder geocode.Geocoder
	logger   *slog.Logger

	mu        sync.RWMutex
	artifacts *Artifacts
}

// NewService creates a prediction service. artifacts may be nil until the first Swap.
func NewService(geocoder geocode.Geocoder, artifacts *Artifacts, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		geocoder:  geocoder,
		logger:    logger,
		artifacts: artifacts,
	}
	if artifacts != nil {
		s.warnUnencoded(artifacts)
	}
	return s
}

// Artifacts returns the artifacts currently in use
func (s *Service) Artifacts() *Artifacts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifacts
}

// Swap replaces the artifacts used by subsequent predictions
func (s *Service) Swap(a *Artifacts) {
	s.mu.Lock()
	s.artifacts = a
	s.mu.Unlock()
	s.warnUnencoded(a)
}

func (s *Service) warnUnencoded(a *Artifacts) {
	if missing := a.UnencodedStations(); len(missing) > 0 {
		s.logger.Warn("roster stations missing from encoder tables, fallback code will be used",
			"count", len(missing),
			"stations", missing,
		)
	}
}

// Status summarizes the artifacts currently in use
type Status struct {
	Ready        bool
	Stations     int
	Boroughs     int
	Trees        int
	Objective    string
	ModelVersion string
}

type modelInfo interface {
	NumTrees() int
	Objective() string
	Version() string
}

// Status reports whether artifacts are loaded and how large they are
func (s *Service) Status() Status {
	a := s.Artifacts()
	if a == nil {
		return Status{}
	}
	st := Status{
		Ready:    true,
		Stations: a.Stations.Count(),
		Boroughs: len(a.Stations.Boroughs()),
	}
	if m, ok := a.Model.(modelInfo); ok {
		st.Trees = m.NumTrees()
		st.Objective = m.Objective()
		st.ModelVersion = m.Version()
	}
	return st
}

// Categories lists the incident groups and property categories the model was trained on
func (s *Service) Categories() map[string][]string {
	a := s.Artifacts()
	if a == nil {
		return nil
	}
	return map[string][]string{
		"incidentGroup":    a.Encoders.Values(encoding.IncidentGroup),
		"propertyCategory": a.Encoders.Values(encoding.PropertyCategory),
	}
}

// Reload loads fresh artifacts and swaps them in. On error the current artifacts stay.
func (s *Service) Reload(paths Paths) error {
	a, err := LoadArtifacts(paths)
	if err != nil {
		return err
	}
	s.Swap(a)
	return nil
}

// Predict runs the full pipeline for one incident
func (s *Service) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	a := s.Artifacts()
	stage := StageStart
	fail := func(err error) (*models.PredictionResult, error) {
		return nil, &StageError{Stage: stage, Err: err}
	}
	if a == nil {
		return fail(ErrNotReady)
	}

	coords, err := s.geocoder.Geocode(ctx, req.Address)
	if err != nil {
		var gerr *geocode.GeocodeError
		if !errors.As(err, &gerr) {
			err = &geocode.GeocodeError{Address: req.Address, Err: err}
		}
		return fail(err)
	}
	incident := models.Incident{PredictionRequest: req, Coordinates: coords}
	stage = StageGeocoded

	station, err := a.Stations.Nearest(incident.Lat, incident.Lng)
	if err != nil {
		return fail(err)
	}
	stage = StageStationResolved

	incidentCode := s.encode(a.Encoders, encoding.IncidentGroup, incident.IncidentGroup)
	groundCode := s.encode(a.Encoders, encoding.IncidentStationGround, station.Name)
	propertyCode := s.encode(a.Encoders, encoding.PropertyCategory, incident.PropertyCategory)
	boroughCode := s.encode(a.Encoders, encoding.BoroughName, station.Borough)
	deployedCode := s.encode(a.Encoders, encoding.DeployedFromStation, station.Name)
	stage = StageEncoded

	row := features.Assemble(
		incident.HourOfCall,
		incidentCode, groundCode, propertyCode, boroughCode, deployedCode,
		incident.Lat, incident.Lng,
		station.Lat, station.Lng,
		station.DistanceMeters,
	)
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.DebugContext(ctx, "features assembled", "features", row.Map())
	}
	stage = StageAssembled

	seconds, err := a.Model.Predict(row.Slice())
	if err != nil {
		return fail(fmt.Errorf("evaluating model: %w", err))
	}
	stage = StagePredicted

	result := &models.PredictionResult{
		Latitude:          incident.Lat,
		Longitude:         incident.Lng,
		Station:           station.Name,
		StationBorough:    station.Borough,
		StationLatitude:   station.Lat,
		StationLongitude:  station.Lng,
		DistanceToStation: station.DistanceMeters,
		Prediction:        seconds,
	}
	stage = StageDone

	s.logger.DebugContext(ctx, "prediction complete",
		"stage", stage,
		"station", result.Station,
		"distance_m", result.DistanceToStation,
		"prediction_s", result.Prediction,
	)
	return result, nil
}

func (s *Service) encode(enc *encoding.Encoders, table, value string) int {
	code, known := enc.Lookup(table, value)
	if !known {
		s.logger.Debug("unseen category value, using fallback code",
			"table", table,
			"value", value,
			"code", code,
		)
	}
	return code
}
