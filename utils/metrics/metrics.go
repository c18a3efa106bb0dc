package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the default metric namespace of the service
const Namespace = "swapquote"

// NewRegistry returns a registry preloaded with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Metrics groups every collector of the service
type Metrics struct {
	Quote *QuoteMetrics
	RPC   *RPCMetrics
	HTTP  *HTTPMetrics
}

// New registers all service metrics on reg
func New(namespace string, reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Quote: NewQuoteMetrics(namespace, reg),
		RPC:   NewRPCMetrics(namespace, reg),
		HTTP:  NewHTTPMetrics(namespace, reg),
	}
}

// QuoteMetrics tracks quote requests and the candidates evaluated for them.
// A nil *QuoteMetrics is valid and records nothing.
type QuoteMetrics struct {
	Requests   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Candidates *prometheus.CounterVec
	Exchanges  *prometheus.CounterVec
}

func NewQuoteMetrics(namespace string, reg prometheus.Registerer) *QuoteMetrics {
	factory := promauto.With(reg)
	return &QuoteMetrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Total number of aggregated quote requests by outcome",
		}, []string{"network", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "duration_seconds",
			Help:      "Time taken to aggregate a quote",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network"}),
		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "candidates_total",
			Help:      "Total number of candidate paths evaluated by outcome",
		}, []string{"exchange", "outcome"}),
		Exchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "exchanges_total",
			Help:      "Total number of exchange evaluations by family and outcome",
		}, []string{"family", "outcome"}),
	}
}

func (m *QuoteMetrics) ObserveRequest(network, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(network, outcome).Inc()
	m.Duration.WithLabelValues(network).Observe(elapsed.Seconds())
}

func (m *QuoteMetrics) ObserveCandidate(exchange, outcome string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(exchange, outcome).Inc()
}

func (m *QuoteMetrics) ObserveExchange(family, outcome string) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(family, outcome).Inc()
}

// RPCMetrics tracks contract calls against the chain nodes
type RPCMetrics struct {
	Calls       *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	LimiterWait prometheus.Histogram
	CacheLookup *prometheus.CounterVec
}

func NewRPCMetrics(namespace string, reg prometheus.Registerer) *RPCMetrics {
	factory := promauto.With(reg)
	return &RPCMetrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total number of eth_call requests by status",
		}, []string{"network", "status"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "eth_call latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"network"}),
		LimiterWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "limiter_wait_seconds",
			Help:      "Time spent waiting on the RPC rate limiter",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		CacheLookup: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "cache_lookups_total",
			Help:      "Metadata cache lookups by cache and result",
		}, []string{"cache", "result"}),
	}
}

func (m *RPCMetrics) ObserveCall(network string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Calls.WithLabelValues(network, status).Inc()
	m.Latency.WithLabelValues(network).Observe(elapsed.Seconds())
}

func (m *RPCMetrics) ObserveLimiterWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LimiterWait.Observe(elapsed.Seconds())
}

func (m *RPCMetrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookup.WithLabelValues(cache, result).Inc()
}

// HTTPMetrics tracks the quote API
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *HTTPMetrics) ObserveRequest(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, path, status).Inc()
	m.Duration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
