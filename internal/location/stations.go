package location

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/randytsao24/brigade/internal/models"
)

// ErrEmptyRoster is returned when a nearest-station lookup has no stations to choose from
var ErrEmptyRoster = errors.New("station roster is empty")

// Roster CSV header names, as written by the training pipeline
const (
	colStation   = "Station"
	colBorough   = "StationBorough"
	colLatitude  = "StationLatitude"
	colLongitude = "StationLongitude"
)

// Nearest returns the station closest to lat/lng. Ties go to the station seen first.
func Nearest(stations []models.Station, lat, lng float64) (models.StationWithDistance, error) {
	if len(stations) == 0 {
		return models.StationWithDistance{}, ErrEmptyRoster
	}

	best := models.StationWithDistance{
		Station:        stations[0],
		DistanceMeters: Haversine(stations[0].Lat, stations[0].Lng, lat, lng),
	}
	for _, station := range stations[1:] {
		dist := Haversine(station.Lat, station.Lng, lat, lng)
		if dist < best.DistanceMeters {
			best = models.StationWithDistance{Station: station, DistanceMeters: dist}
		}
	}

	return best, nil
}

// StationService manages the fire station roster
type StationService struct {
	stations []models.Station
	mu       sync.RWMutex
	loaded   bool
}

// NewStationService creates an empty station service
func NewStationService() *StationService {
	return &StationService{}
}

// NewStationServiceFrom creates a station service over an in-memory roster
func NewStationServiceFrom(stations []models.Station) *StationService {
	return &StationService{
		stations: append([]models.Station(nil), stations...),
		loaded:   true,
	}
}

// Load reads the station roster from a CSV file, replacing any previous roster
func (s *StationService) Load(filepath string) error {
	file, err := os.Open(filepath)
	if err != nil {
		return fmt.Errorf("opening stations file: %w", err)
	}
	defer file.Close()

	stations, err := ParseRoster(file)
	if err != nil {
		return fmt.Errorf("loading %s: %w", filepath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = stations
	s.loaded = true
	return nil
}

// ParseRoster reads roster rows in file order. Columns are located by header name.
func ParseRoster(r io.Reader) ([]models.Station, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("stations file has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range []string{colStation, colBorough, colLatitude, colLongitude} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("stations file missing column %q", col)
		}
	}

	var stations []models.Station
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}
		field := func(col string) string {
			if i := idx[col]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		lat, err := strconv.ParseFloat(field(colLatitude), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, colLatitude, err)
		}
		lng, err := strconv.ParseFloat(field(colLongitude), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, colLongitude, err)
		}
		if !ValidCoordinates(lat, lng) {
			return nil, fmt.Errorf("line %d: coordinates out of range (%f, %f)", line, lat, lng)
		}

		stations = append(stations, models.Station{
			Name:    field(colStation),
			Borough: field(colBorough),
			Lat:     lat,
			Lng:     lng,
		})
	}

	return stations, nil
}

// Nearest returns the roster station closest to a point
func (s *StationService) Nearest(lat, lng float64) (models.StationWithDistance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Nearest(s.stations, lat, lng)
}

// Stations returns a copy of the roster in file order
func (s *StationService) Stations() []models.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Station(nil), s.stations...)
}

// Count returns the number of loaded stations
func (s *StationService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stations)
}

// Boroughs returns the sorted list of distinct station boroughs
func (s *StationService) Boroughs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var boroughs []string
	for _, station := range s.stations {
		if !seen[station.Borough] {
			seen[station.Borough] = true
			boroughs = append(boroughs, station.Borough)
		}
	}
	sort.Strings(boroughs)
	return boroughs
}

// IsLoaded returns true if a roster has been loaded
func (s *StationService) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
