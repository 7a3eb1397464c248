package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "order_geo"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
// It implements domain.ResolverObserver.
type Metrics struct {
	// Pipeline metrics.
	MessagesConsumed        prometheus.Counter
	MessagesProduced        prometheus.Counter
	TransformErrors         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Geocoding metrics.
	GeocodeAttempts     *prometheus.CounterVec   // labels: provider, outcome={success,miss}
	GeocodeAPIDuration  *prometheus.HistogramVec // labels: provider
	GeocodeResolutions  *prometheus.CounterVec   // labels: outcome={resolved,unresolved}
	ProviderConfigured  *prometheus.GaugeVec     // labels: provider
	UsageRecordFailures *prometheus.CounterVec   // labels: provider

	// ETA and weather metrics.
	Estimates    *prometheus.CounterVec // labels: order_type, confidence
	WeatherCache *prometheus.CounterVec // labels: result={hit,miss}
	WeatherFetch *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total address requests read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total resolved addresses written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total address requests skipped as malformed.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-resolve-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GeocodeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_attempts_total",
			Help:      "Geocoding provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Geocoding provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		GeocodeResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_resolutions_total",
			Help:      "Address resolutions by outcome.",
		}, []string{"outcome"}),
		ProviderConfigured: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_configured",
			Help:      "1 when the provider has credentials and takes part in the cascade.",
		}, []string{"provider"}),
		UsageRecordFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_record_failures_total",
			Help:      "Provider usage counter writes that failed.",
		}, []string{"provider"}),
		Estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_total",
			Help:      "ETA estimates by order type and confidence.",
		}, []string{"order_type", "confidence"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetch_total",
			Help:      "OpenWeatherMap requests by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.GeocodeAttempts,
		m.GeocodeAPIDuration,
		m.GeocodeResolutions,
		m.ProviderConfigured,
		m.UsageRecordFailures,
		m.Estimates,
		m.WeatherCache,
		m.WeatherFetch,
	}
}

// ObserveAttempt records one provider call.
func (m *Metrics) ObserveAttempt(provider, outcome string, elapsed time.Duration) {
	m.GeocodeAttempts.WithLabelValues(provider, outcome).Inc()
	m.GeocodeAPIDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveResolution records the outcome of a full cascade.
func (m *Metrics) ObserveResolution(resolved bool) {
	outcome := "unresolved"
	if resolved {
		outcome = "resolved"
	}
	m.GeocodeResolutions.WithLabelValues(outcome).Inc()
}

// ObserveUsageError records a failed usage counter write.
func (m *Metrics) ObserveUsageError(provider string) {
	m.UsageRecordFailures.WithLabelValues(provider).Inc()
}

// SetProviderConfigured flags whether provider takes part in the cascade.
func (m *Metrics) SetProviderConfigured(provider string, configured bool) {
	v := 0.0
	if configured {
		v = 1
	}
	m.ProviderConfigured.WithLabelValues(provider).Set(v)
}
