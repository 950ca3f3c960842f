// Package main is the entry point for the brigade prediction server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/randytsao24/brigade/internal/api"
	"github.com/randytsao24/brigade/internal/api/handlers"
	"github.com/randytsao24/brigade/internal/cache"
	"github.com/randytsao24/brigade/internal/config"
	"github.com/randytsao24/brigade/internal/geocode"
	"github.com/randytsao24/brigade/internal/models"
	"github.com/randytsao24/brigade/internal/predict"
	"github.com/randytsao24/brigade/internal/store"
)

const (
	geocodeCacheEntries = 10000
	geocodeCachePrefix  = "brigade:geocode:"
	shutdownGrace       = 10 * time.Second
)

func main() {
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	artifacts, err := predict.LoadArtifacts(cfg.ArtifactPaths())
	if err != nil {
		return fmt.Errorf("loading artifacts: %w", err)
	}
	logger.Info("artifacts loaded",
		"stations", artifacts.Stations.Count(),
		"encoder_tables", len(artifacts.Encoders.Tables()),
		"model", cfg.ModelPath,
	)

	geocoder, closeGeocoder, err := newGeocoder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGeocoder()

	svc := predict.NewService(geocoder, artifacts, logger)

	// A nil *store.Recorder must not reach the handlers as a non-nil interface
	var recorder handlers.Recorder
	if cfg.RecorderEnabled() {
		rec, err := store.Open(ctx, cfg.RecorderDriver, cfg.RecorderDSN)
		if err != nil {
			return fmt.Errorf("opening prediction recorder: %w", err)
		}
		defer rec.Close()
		recorder = rec
		logger.Info("prediction recorder enabled", "driver", cfg.RecorderDriver)
	}

	go reloadOnHangup(ctx, svc, cfg.ArtifactPaths(), logger)

	// WriteTimeout must outlast the router's own request timeout
	requestTimeout := api.RequestTimeout(cfg)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(cfg, svc, svc, recorder, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("brigade server starting",
			"port", cfg.Port,
			"env", cfg.Env,
			"url", "http://localhost:"+cfg.Port,
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newGeocoder builds the Nominatim client, wrapped in a redis or in-memory cache when
// GEOCODE_CACHE_TTL_SECONDS is positive
func newGeocoder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (geocode.Geocoder, func(), error) {
	nominatim := geocode.NewNominatim(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocodeTimeout)
	if cfg.GeocodeCacheTTL <= 0 {
		return nominatim, func() {}, nil
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("geocode cache: redis", "addr", cfg.RedisAddr, "ttl", cfg.GeocodeCacheTTL.String())

		redisStore := cache.NewRedisStore[models.Coordinates](client, geocodeCachePrefix, cfg.GeocodeCacheTTL)
		return geocode.NewCached(nominatim, redisStore, logger), func() { client.Close() }, nil
	}

	mem := cache.New[models.Coordinates](cfg.GeocodeCacheTTL, geocodeCacheEntries)
	logger.Info("geocode cache: memory", "ttl", cfg.GeocodeCacheTTL.String(), "max_entries", geocodeCacheEntries)
	return geocode.NewCached(nominatim, geocode.NewMemoryStore(mem), logger), mem.Close, nil
}

// reloadOnHangup reloads the artifacts on SIGHUP. A failed reload keeps the previous set.
func reloadOnHangup(ctx context.Context, svc *predict.Service, paths predict.Paths, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := svc.Reload(paths); err != nil {
				logger.Error("artifact reload failed, keeping previous artifacts", "error", err)
				continue
			}
			st := svc.Status()
			logger.Info("artifacts reloaded", "stations", st.Stations, "trees", st.Trees)
		}
	}
}
