package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/randytsao24/brigade/internal/cache"
	"github.com/randytsao24/brigade/internal/location"
	"github.com/randytsao24/brigade/internal/models"
)

// Store holds previously resolved coordinates
type Store interface {
	Get(ctx context.Context, key string) (models.Coordinates, bool, error)
	Set(ctx context.Context, key string, coords models.Coordinates) error
	Delete(ctx context.Context, key string) error
}

// Cached puts a Store in front of another Geocoder. Only successful lookups are stored.
type Cached struct {
	next   Geocoder
	store  Store
	logger *slog.Logger
}

// NewCached wraps next with store
func NewCached(next Geocoder, store Store, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, store: store, logger: logger}
}

// Geocode answers from the store when possible. Store failures fall through to next.
func (c *Cached) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	key := NormalizeAddress(address)
	if key == "" {
		return c.next.Geocode(ctx, address)
	}

	coords, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("geocode cache read failed", "error", err)
	case ok && location.ValidCoordinates(coords.Lat, coords.Lng):
		return coords, nil
	case ok:
		c.logger.Warn("dropping invalid cached coordinates", "key", key, "lat", coords.Lat, "lng", coords.Lng)
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("geocode cache delete failed", "error", err)
		}
	}

	coords, err = c.next.Geocode(ctx, address)
	if err != nil {
		return models.Coordinates{}, err
	}

	if err := c.store.Set(ctx, key, coords); err != nil {
		c.logger.Warn("geocode cache write failed", "error", err)
	}
	return coords, nil
}

// NormalizeAddress lower-cases an address and collapses whitespace so that trivially
// different spellings share a cache entry
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// MemoryStore adapts an in-memory TTL cache to Store
type MemoryStore struct {
	cache *cache.Cache[models.Coordinates]
}

// NewMemoryStore creates a Store backed by c
func NewMemoryStore(c *cache.Cache[models.Coordinates]) *MemoryStore {
	return &MemoryStore{cache: c}
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (models.Coordinates, bool, error) {
	coords, ok := s.cache.Get(key)
	return coords, ok, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, key string, coords models.Coordinates) error {
	s.cache.Set(key, coords)
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*cache.RedisStore[models.Coordinates])(nil)
)
