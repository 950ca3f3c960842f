// Package models defines shared data types
package models

// Coordinates is a WGS84 point in degrees
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Station represents a fire station from the roster
type Station struct {
	Name    string  `json:"station"`
	Borough string  `json:"borough"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// StationWithDistance is a Station with distance from an incident
type StationWithDistance struct {
	Station
	DistanceMeters float64 `json:"distance_meters"`
}

// PredictionRequest holds the four inputs of a prediction
type PredictionRequest struct {
	Address          string `json:"address"`
	HourOfCall       int    `json:"hourOfCall"`
	IncidentGroup    string `json:"incidentGroup"`
	PropertyCategory string `json:"propertyCategory"`
}

// Incident is the per-request state once the address has been resolved
type Incident struct {
	PredictionRequest
	Coordinates
}

// PredictionResult is returned once per prediction and never mutated
type PredictionResult struct {
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Station           string  `json:"station"`
	StationBorough    string  `json:"stationBorough"`
	StationLatitude   float64 `json:"stationLatitude"`
	StationLongitude  float64 `json:"stationLongitude"`
	DistanceToStation float64 `json:"distanceToStation"`
	Prediction        float64 `json:"prediction"`
}
