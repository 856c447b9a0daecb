package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzzdr/actuarial-risk-core/pkg/utils/errors"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// Recorder records the engine's counters and latencies on one registry
type Recorder struct {
	simulationsTotal   *prometheus.CounterVec
	simulationDuration *prometheus.HistogramVec
	simulationTrials   *prometheus.CounterVec

	quotesTotal   *prometheus.CounterVec
	quoteDuration *prometheus.HistogramVec

	exposureRatings *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec

	messagesTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewRecorder registers the metrics on reg. A nil reg uses the default registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	gatherer := prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Recorder{
		simulationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simulations_total",
			Help: "The total number of Monte Carlo runs by kind and outcome",
		}, []string{"kind", "outcome"}),

		simulationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simulation_duration_seconds",
			Help:    "The time taken by a Monte Carlo run",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"kind"}),

		simulationTrials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simulation_trials_total",
			Help: "The total number of simulated trials",
		}, []string{"kind"}),

		quotesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_quotes_total",
			Help: "The total number of pricing requests by class and outcome",
		}, []string{"class", "outcome"}),

		quoteDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricing_quote_duration_seconds",
			Help:    "The time taken to price a request",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12),
		}, []string{"class"}),

		exposureRatings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exposure_ratings_total",
			Help: "The total number of exposure ratings by outcome",
		}, []string{"outcome"}),

		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "model_cache_lookups_total",
			Help: "Quartile model cache lookups by backend and result",
		}, []string{"backend", "result"}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_messages_total",
			Help: "Kafka messages handled by topic and outcome",
		}, []string{"topic", "outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed",
		}, []string{"method", "endpoint", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "endpoint"}),

		gatherer: gatherer,
	}
}

// Handler serves the registry the recorder was built on
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// RecordSimulation records one Monte Carlo run
func (r *Recorder) RecordSimulation(kind string, trials int, duration time.Duration, err error) {
	r.simulationsTotal.WithLabelValues(kind, outcome(err)).Inc()
	if err != nil {
		return
	}
	r.simulationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	r.simulationTrials.WithLabelValues(kind).Add(float64(trials))
}

// RecordQuote records one pricing request
func (r *Recorder) RecordQuote(class string, duration time.Duration, err error) {
	r.quotesTotal.WithLabelValues(class, outcome(err)).Inc()
	r.quoteDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordExposureRating records one exposure rating
func (r *Recorder) RecordExposureRating(err error) {
	r.exposureRatings.WithLabelValues(outcome(err)).Inc()
}

// RecordCacheLookup records a quartile model cache hit or miss
func (r *Recorder) RecordCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(backend, result).Inc()
}

// RecordMessage records a consumed Kafka message
func (r *Recorder) RecordMessage(topic string, err error) {
	r.messagesTotal.WithLabelValues(topic, outcome(err)).Inc()
}

// RecordAPIRequest records an HTTP request
func (r *Recorder) RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// outcome labels an error by its type
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return errors.TypeOf(err).String()
}

// PrometheusServer is a server that exposes Prometheus metrics
type PrometheusServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewPrometheusServer creates a metrics server for the recorder's registry
func NewPrometheusServer(port int, r *Recorder) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	return &PrometheusServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.GetLogger("metrics.prometheus"),
	}
}

// Start starts the Prometheus metrics server
func (p *PrometheusServer) Start() error {
	p.log.Infof("Starting Prometheus metrics server on %s", p.server.Addr)
	if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the Prometheus metrics server
func (p *PrometheusServer) Stop() error {
	p.log.Info("Stopping Prometheus metrics server")
	return p.server.Close()
}
