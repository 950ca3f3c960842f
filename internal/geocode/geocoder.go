// Package geocode resolves free-text addresses to coordinates
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/randytsao24/brigade/internal/models"
)

// Geocode failure causes, reachable with errors.Is through a *GeocodeError
var (
	ErrEmptyAddress = errors.New("address is empty")
	ErrNoMatch      = errors.New("address could not be resolved")
	ErrUnavailable  = errors.New("geocoding service unavailable")
)

// Geocoder turns an address into coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, error)
}

// GeocodeError is returned for every geocoding failure. It is caused by input or network,
// never by the prediction pipeline itself.
type GeocodeError struct {
	Address string
	Err     error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocoding %q: %v", e.Address, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// GeocoderFunc adapts a function to the Geocoder interface
type GeocoderFunc func(ctx context.Context, address string) (models.Coordinates, error)

// Geocode calls f
func (f GeocoderFunc) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	return f(ctx, address)
}
