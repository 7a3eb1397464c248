package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// publicNominatimHost serves at most one request per second per client.
const publicNominatimHost = "nominatim.openstreetmap.org"

// Usage store backends.
const (
	UsageStoreMemory   = "memory"
	UsageStorePostgres = "postgres"
	UsageStoreRedis    = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Location defines the calendar day for usage counters and the local hour
	// used by the ETA model.
	Timezone    string
	Location    *time.Location
	DefaultCity string

	// Geocoding providers. An empty API key leaves the provider out of the cascade.
	ProviderTimeout      time.Duration
	LocationIQAPIKey     string
	LocationIQBaseURL    string
	OpenCageAPIKey       string
	OpenCageBaseURL      string
	NominatimBaseURL     string
	NominatimUserAgent   string
	NominatimMinInterval time.Duration

	// Weather lookups for delivery estimates.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	WeatherCacheTTL    time.Duration
	WeatherCacheSize   int

	// Provider usage counters.
	UsageStore  string
	DatabaseURL string
	RedisURL    string

	// Address request pipeline.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	providerTimeout, err := parsePositiveDuration("PROVIDER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	nominatimInterval, err := parsePositiveDuration("NOMINATIM_MIN_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	weatherTTL, err := parsePositiveDuration("WEATHER_CACHE_TTL", "30m")
	if err != nil {
		return nil, err
	}
	weatherCacheSize, err := parsePositiveInt("WEATHER_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("TIMEZONE", "Africa/Tunis")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Timezone:    tz,
		Location:    loc,
		DefaultCity: strings.TrimSpace(sharedcfg.EnvOrDefault("DEFAULT_CITY", "Tunis")),

		ProviderTimeout:      providerTimeout,
		LocationIQAPIKey:     os.Getenv("LOCATIONIQ_API_KEY"),
		LocationIQBaseURL:    sharedcfg.EnvOrDefault("LOCATIONIQ_BASE_URL", "https://us1.locationiq.com"),
		OpenCageAPIKey:       os.Getenv("OPENCAGE_API_KEY"),
		OpenCageBaseURL:      sharedcfg.EnvOrDefault("OPENCAGE_BASE_URL", "https://api.opencagedata.com"),
		NominatimBaseURL:     sharedcfg.EnvOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent:   sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "order-geo-service/1.0 (ops@order-geo.local)"),
		NominatimMinInterval: nominatimInterval,

		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		WeatherCacheTTL:    weatherTTL,
		WeatherCacheSize:   weatherCacheSize,

		UsageStore:  strings.ToLower(sharedcfg.EnvOrDefault("USAGE_STORE", UsageStoreMemory)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "address-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "resolved-addresses"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "order-geo"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.DefaultCity == "" {
		return nil, errors.New("DEFAULT_CITY must not be blank")
	}
	if strings.TrimSpace(cfg.NominatimUserAgent) == "" {
		return nil, errors.New("NOMINATIM_USER_AGENT is required by the Nominatim usage policy")
	}
	if cfg.NominatimMinInterval < time.Second && isPublicNominatim(cfg.NominatimBaseURL) {
		return nil, fmt.Errorf("NOMINATIM_MIN_INTERVAL %s is below 1s, the public instance limit", cfg.NominatimMinInterval)
	}

	switch cfg.UsageStore {
	case UsageStoreMemory:
	case UsageStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("USAGE_STORE is postgres but DATABASE_URL is not set")
		}
	case UsageStoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("USAGE_STORE is redis but REDIS_URL is not set")
		}
	default:
		return nil, fmt.Errorf("invalid USAGE_STORE %q: want memory, postgres or redis", cfg.UsageStore)
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func isPublicNominatim(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), publicNominatimHost)
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.New("invalid " + key)
	}
	return b, nil
}
