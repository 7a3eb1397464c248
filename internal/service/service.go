// Package service assembles the geocoding cascade, weather lookups and the
// ETA estimator from configuration. Both the daemon and the CLI build on it.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/order-geo-service/internal/adapter/locationiq"
	"github.com/couchcryptid/order-geo-service/internal/adapter/nominatim"
	"github.com/couchcryptid/order-geo-service/internal/adapter/opencage"
	"github.com/couchcryptid/order-geo-service/internal/adapter/openweather"
	"github.com/couchcryptid/order-geo-service/internal/adapter/usage"
	"github.com/couchcryptid/order-geo-service/internal/config"
	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/couchcryptid/order-geo-service/internal/observability"
)

// Components are the wired domain services.
type Components struct {
	Usage     usage.Store
	Resolver  *domain.Resolver
	Weather   *openweather.CachedProvider
	Estimator *domain.OrderEstimator
}

// Providers lists every usage counter the service maintains: the geocoding
// cascade in priority order, then weather.
func (c *Components) Providers() []string {
	return append(c.Resolver.Providers(), domain.ProviderOpenWeatherMap)
}

// Close releases the usage store.
func (c *Components) Close() error {
	return c.Usage.Close()
}

// Build opens the usage store and wires the provider adapters around it.
func Build(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Components, error) {
	store, err := usage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s usage store: %w", cfg.UsageStore, err)
	}
	logger.Info("usage store ready", "backend", cfg.UsageStore)

	weather := NewWeather(cfg, store, metrics, logger)
	return &Components{
		Usage:     store,
		Resolver:  NewResolver(cfg, store, metrics, logger),
		Weather:   weather,
		Estimator: domain.NewOrderEstimator(weather, cfg.Location),
	}, nil
}

// NewResolver builds the LocationIQ, OpenCage, Nominatim cascade. OpenCage is
// the only stage that retries degraded addresses.
func NewResolver(cfg *config.Config, tracker domain.UsageTracker, metrics *observability.Metrics, logger *slog.Logger) *domain.Resolver {
	stages := []domain.Stage{
		{Provider: locationiq.NewClient(cfg.LocationIQAPIKey, cfg.LocationIQBaseURL, cfg.ProviderTimeout, logger)},
		{Provider: opencage.NewClient(cfg.OpenCageAPIKey, cfg.OpenCageBaseURL, cfg.ProviderTimeout, logger), Degrade: true},
		{Provider: nominatim.NewClient(cfg.NominatimBaseURL, cfg.NominatimUserAgent, cfg.NominatimMinInterval, cfg.ProviderTimeout, logger)},
	}

	for _, s := range stages {
		configured := s.Provider.Configured()
		metrics.SetProviderConfigured(s.Provider.Name(), configured)
		logger.Info("geocoding provider", "provider", s.Provider.Name(), "configured", configured)
	}

	return domain.NewResolver(stages, tracker, logger,
		domain.WithObserver(metrics),
		domain.WithLocation(cfg.Location),
		domain.WithDefaultCity(cfg.DefaultCity),
	)
}

// NewWeather builds the cached OpenWeatherMap lookup.
func NewWeather(cfg *config.Config, tracker domain.UsageTracker, metrics *observability.Metrics, logger *slog.Logger) *openweather.CachedProvider {
	client := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.ProviderTimeout, logger)
	metrics.SetProviderConfigured(domain.ProviderOpenWeatherMap, client.Configured())
	if !client.Configured() {
		logger.Info("weather lookups disabled, assuming clear")
	}
	return openweather.NewCachedProvider(client, tracker, cfg.WeatherCacheTTL, cfg.WeatherCacheSize, metrics, logger,
		openweather.WithLocation(cfg.Location),
	)
}
