package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/randytsao24/brigade/internal/location"
	"github.com/randytsao24/brigade/internal/models"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap Nominatim instance
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies this service, as Nominatim's usage policy requires
	DefaultUserAgent = "ML_Ops_LondonFireBrigade"
)

// Nominatim geocodes addresses with the Nominatim search API
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatim creates a Nominatim client. The timeout bounds each lookup.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// Geocode returns the coordinates of the best match for address
func (n *Nominatim) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	if strings.TrimSpace(address) == "" {
		return models.Coordinates{}, &GeocodeError{Address: address, Err: ErrEmptyAddress}
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, &GeocodeError{Address: address, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return models.Coordinates{}, &GeocodeError{Address: address, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return models.Coordinates{}, &GeocodeError{
			Address: address,
			Err:     fmt.Errorf("%w: nominatim returned status %d", ErrUnavailable, resp.StatusCode),
		}
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return models.Coordinates{}, &GeocodeError{Address: address, Err: fmt.Errorf("%w: parsing response: %w", ErrUnavailable, err)}
	}
	if len(places) == 0 {
		return models.Coordinates{}, &GeocodeError{Address: address, Err: ErrNoMatch}
	}

	coords, err := places[0].coordinates()
	if err != nil {
		return models.Coordinates{}, &GeocodeError{Address: address, Err: fmt.Errorf("%w: %w", ErrUnavailable, err)}
	}
	return coords, nil
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p nominatimPlace) coordinates() (models.Coordinates, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}
	if !location.ValidCoordinates(lat, lng) {
		return models.Coordinates{}, fmt.Errorf("coordinates out of range (%f, %f)", lat, lng)
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}
