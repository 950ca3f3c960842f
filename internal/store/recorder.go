// Package store records served predictions so they can later be compared with observed
// attendance times
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/randytsao24/brigade/internal/models"
)

// Supported recorder drivers
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSQLiteDSN is used when the sqlite driver is selected without a DSN
const DefaultSQLiteDSN = "file:predictions.db"

// ErrUnknownDriver is returned by Open for drivers other than sqlite and postgres
var ErrUnknownDriver = errors.New("unknown recorder driver")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	id                  TEXT PRIMARY KEY,
	address             TEXT NOT NULL,
	hour_of_call        INTEGER NOT NULL,
	incident_group      TEXT NOT NULL,
	property_category   TEXT NOT NULL,
	latitude            REAL NOT NULL,
	longitude           REAL NOT NULL,
	station             TEXT NOT NULL,
	station_borough     TEXT NOT NULL,
	station_latitude    REAL NOT NULL,
	station_longitude   REAL NOT NULL,
	distance_to_station REAL NOT NULL,
	prediction          REAL NOT NULL,
	created_at          TIMESTAMP NOT NULL
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	id                  UUID PRIMARY KEY,
	address             TEXT NOT NULL,
	hour_of_call        INTEGER NOT NULL,
	incident_group      TEXT NOT NULL,
	property_category   TEXT NOT NULL,
	latitude            DOUBLE PRECISION NOT NULL,
	longitude           DOUBLE PRECISION NOT NULL,
	station             TEXT NOT NULL,
	station_borough     TEXT NOT NULL,
	station_latitude    DOUBLE PRECISION NOT NULL,
	station_longitude   DOUBLE PRECISION NOT NULL,
	distance_to_station DOUBLE PRECISION NOT NULL,
	prediction          DOUBLE PRECISION NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL
)`

const insertQuery = `
INSERT INTO predictions (
	id, address, hour_of_call, incident_group, property_category,
	latitude, longitude, station, station_borough,
	station_latitude, station_longitude, distance_to_station,
	prediction, created_at
) VALUES (
	:id, :address, :hour_of_call, :incident_group, :property_category,
	:latitude, :longitude, :station, :station_borough,
	:station_latitude, :station_longitude, :distance_to_station,
	:prediction, :created_at
)`

const recentQuery = `
SELECT id, address, hour_of_call, incident_group, property_category,
	latitude, longitude, station, station_borough,
	station_latitude, station_longitude, distance_to_station,
	prediction, created_at
FROM predictions
ORDER BY created_at DESC, id
LIMIT ?`

// Entry is one recorded prediction
type Entry struct {
	ID                string    `db:"id" json:"id"`
	Address           string    `db:"address" json:"address"`
	HourOfCall        int       `db:"hour_of_call" json:"hourOfCall"`
	IncidentGroup     string    `db:"incident_group" json:"incidentGroup"`
	PropertyCategory  string    `db:"property_category" json:"propertyCategory"`
	Latitude          float64   `db:"latitude" json:"latitude"`
	Longitude         float64   `db:"longitude" json:"longitude"`
	Station           string    `db:"station" json:"station"`
	StationBorough    string    `db:"station_borough" json:"stationBorough"`
	StationLatitude   float64   `db:"station_latitude" json:"stationLatitude"`
	StationLongitude  float64   `db:"station_longitude" json:"stationLongitude"`
	DistanceToStation float64   `db:"distance_to_station" json:"distanceToStation"`
	Prediction        float64   `db:"prediction" json:"prediction"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

// Recorder persists predictions through sqlx
type Recorder struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to the database and creates the predictions table if needed
func Open(ctx context.Context, driver, dsn string) (*Recorder, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
		if dsn == "" {
			dsn = DefaultSQLiteDSN
		}
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// a single connection keeps ":memory:" databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating predictions table: %w", err)
	}

	return NewRecorder(db), nil
}

// NewRecorder wraps an existing connection. The predictions table must already exist.
func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record stores one prediction and returns its id
func (r *Recorder) Record(ctx context.Context, req models.PredictionRequest, res models.PredictionResult) (string, error) {
	entry := Entry{
		ID:                uuid.New().String(),
		Address:           req.Address,
		HourOfCall:        req.HourOfCall,
		IncidentGroup:     req.IncidentGroup,
		PropertyCategory:  req.PropertyCategory,
		Latitude:          res.Latitude,
		Longitude:         res.Longitude,
		Station:           res.Station,
		StationBorough:    res.StationBorough,
		StationLatitude:   res.StationLatitude,
		StationLongitude:  res.StationLongitude,
		DistanceToStation: res.DistanceToStation,
		Prediction:        res.Prediction,
		CreatedAt:         r.now(),
	}

	if _, err := r.db.NamedExecContext(ctx, insertQuery, entry); err != nil {
		return "", fmt.Errorf("recording prediction: %w", err)
	}
	return entry.ID, nil
}

// Recent returns up to limit predictions, newest first
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries := []Entry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(recentQuery), limit); err != nil {
		return nil, fmt.Errorf("listing predictions: %w", err)
	}
	return entries, nil
}

// Close releases the database connection
func (r *Recorder) Close() error {
	return r.db.Close()
}
