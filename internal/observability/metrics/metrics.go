package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "endpointhub"

// Recorder owns the Prometheus collectors for HTTP traffic, pipeline
// rejections and call accounting. Each Recorder has its own registry so tests
// and multiple servers in one process never collide on registration.
type Recorder struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	apiCalls        prometheus.Counter
	peakPerMinute   prometheus.Gauge
	routesLoaded    *prometheus.GaugeVec
}

var (
	defaultMu       sync.RWMutex
	defaultRecorder = New()
)

// New constructs a Recorder with every collector registered on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed by the gateway",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rejections_total",
			Help:      "Requests short-circuited by a pipeline stage",
		}, []string{"route", "stage"}),
		apiCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Requests counted by call accounting since process start",
		}),
		peakPerMinute: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_calls_peak_per_minute",
			Help:      "Highest number of accounted calls observed within a single minute",
		}),
		routesLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routes_loaded",
			Help:      "Number of routes registered at startup by HTTP method",
		}, []string{"method"}),
	}
	r.registry.MustRegister(
		r.requestCount,
		r.requestDuration,
		r.rejections,
		r.apiCalls,
		r.peakPerMinute,
		r.routesLoaded,
	)
	return r
}

// Default returns the process-wide Recorder used when callers do not inject one.
func Default() *Recorder {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRecorder
}

// SetDefault replaces the process-wide Recorder. A nil recorder is ignored.
func SetDefault(r *Recorder) {
	if r == nil {
		return
	}
	defaultMu.Lock()
	defaultRecorder = r
	defaultMu.Unlock()
}

// Registry exposes the underlying Prometheus registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRequest accumulates request totals and latency by method, path
// pattern and status code. Paths that did not match a route template are
// normalized so identifiers do not explode label cardinality.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	m := strings.ToUpper(method)
	p := normalizePath(path)
	r.requestCount.WithLabelValues(m, p, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(m, p).Observe(duration.Seconds())
}

// ObserveRejection records a short-circuit at the named pipeline stage.
func (r *Recorder) ObserveRejection(route, stage string) {
	r.rejections.WithLabelValues(normalizeName(route), normalizeName(stage)).Inc()
}

// ObserveAPICall mirrors a call accounting increment and the resulting peak.
func (r *Recorder) ObserveAPICall(peak int64) {
	r.apiCalls.Inc()
	r.peakPerMinute.Set(float64(peak))
}

// SetRoutesLoaded publishes the per-method route counts computed at startup.
func (r *Recorder) SetRoutesLoaded(counts map[string]int) {
	r.routesLoaded.Reset()
	for method, count := range counts {
		r.routesLoaded.WithLabelValues(strings.ToUpper(method)).Set(float64(count))
	}
}

// Handler exposes the Recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func normalizeName(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" || strings.HasPrefix(part, "{") {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

// ObserveRequest records a request on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	Default().ObserveRequest(method, path, status, duration)
}
