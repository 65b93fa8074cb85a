package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	meterScope         = "github.com/empathyapp/backend/internal/observability"
	defaultServiceName = "empathy-api"
	cardinalityLimit   = 2000
)

// Metric names. Cache labels: similarity_index, query_embedding.
const (
	MetricNameCacheHits        = "cache_hits_total"
	MetricNameCacheMisses      = "cache_misses_total"
	MetricNameProviderRequests = "provider_requests_total"
	MetricNameProviderDuration = "provider_request_duration_seconds"
	MetricNameEvictions        = "result_evictions_total"
	MetricNameHTTPRequests     = "http_server_request_count"
	MetricNameHTTPDuration     = "http_server_duration"
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds); provider
// calls routinely take seconds, so the upper buckets stretch to 30s.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30}

// CacheMetrics records cache hit/miss metrics with bounded cardinality (cache name).
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

// ProviderMetrics records upstream LLM call outcomes and result evictions.
type ProviderMetrics interface {
	RecordCall(ctx context.Context, operation, outcome string, duration time.Duration)
	RecordEviction(ctx context.Context)
}

// APIMetrics records HTTP request count and duration.
type APIMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
}

// Metrics bundles every instrument group. Fields are nil-safe at call sites:
// services take the interfaces and skip recording when nil.
type Metrics struct {
	Cache    CacheMetrics
	Provider ProviderMetrics
	API      APIMetrics
}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// NewMeterProvider creates a MeterProvider with a Prometheus exporter and
// returns the provider, an HTTP handler for /metrics, and the Metrics bundle.
// Caller must call provider.Shutdown on exit.
func NewMeterProvider(serviceName string) (MeterProviderShutdown, http.Handler, *Metrics, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	// Single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: MetricNameProviderDuration},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: MetricNameHTTPDuration},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)

	metrics, err := NewMetrics(mp.Meter(meterScope))
	if err != nil {
		_ = mp.Shutdown(context.Background())

		return nil, nil, nil, err
	}

	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics, nil
}

// NewMetrics creates the instrument bundle from a meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	cacheHits, err := meter.Int64Counter(
		MetricNameCacheHits,
		metric.WithDescription("Cache lookups that returned a cached value. Label cache: similarity_index, query_embedding."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		MetricNameCacheMisses,
		metric.WithDescription("Cache lookups that missed and triggered the backing load."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache misses counter: %w", err)
	}

	providerRequests, err := meter.Int64Counter(
		MetricNameProviderRequests,
		metric.WithDescription("Upstream LLM calls by operation (analyze, rewrite) and outcome (ok, unavailable, malformed)."),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider requests counter: %w", err)
	}

	providerDuration, err := meter.Float64Histogram(
		MetricNameProviderDuration,
		metric.WithDescription("Upstream LLM call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider duration histogram: %w", err)
	}

	evictions, err := meter.Int64Counter(
		MetricNameEvictions,
		metric.WithDescription("Stored results evicted after their score fell below the configured floor"),
	)
	if err != nil {
		return nil, fmt.Errorf("create evictions counter: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		MetricNameHTTPRequests,
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http request counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		MetricNameHTTPDuration,
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http duration histogram: %w", err)
	}

	return &Metrics{
		Cache:    &cacheMetrics{hits: cacheHits, misses: cacheMisses},
		Provider: &providerMetrics{requests: providerRequests, duration: providerDuration, evictions: evictions},
		API:      &apiMetrics{requests: httpRequests, duration: httpDuration},
	}, nil
}

type cacheMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func attrCache(name string) attribute.KeyValue {
	return attribute.String("cache", name)
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.hits.Add(ctx, 1, metric.WithAttributes(attrCache(cacheName)))
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.misses.Add(ctx, 1, metric.WithAttributes(attrCache(cacheName)))
}

type providerMetrics struct {
	requests  metric.Int64Counter
	duration  metric.Float64Histogram
	evictions metric.Int64Counter
}

func (p *providerMetrics) RecordCall(ctx context.Context, operation, outcome string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	p.requests.Add(ctx, 1, metric.WithAttributeSet(attrs))
	p.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("operation", operation)))
}

func (p *providerMetrics) RecordEviction(ctx context.Context) {
	p.evictions.Add(ctx, 1)
}

type apiMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func (a *apiMetrics) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", statusClass),
	)
	a.requests.Add(ctx, 1, metric.WithAttributeSet(attrs))
	a.duration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attrs))
}
