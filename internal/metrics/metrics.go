// Package metrics exposes Prometheus metrics for the HTTP layer and the engine.
// Every recording method is safe to call on a nil *Registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Engine metrics
	ticksTotal        *prometheus.CounterVec
	tickDuration      *prometheus.HistogramVec
	trackedGauge      prometheus.Gauge
	rotationEvents    *prometheus.CounterVec
	rawSignals        *prometheus.CounterVec
	consensusGauge    prometheus.Gauge
	advisoryCalls     *prometheus.CounterVec
	persistenceOps    *prometheus.CounterVec
	sinkPublishes     *prometheus.CounterVec
	activeModelsGauge prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_ticks_total",
			Help: "Scheduler ticks by loop and outcome",
		},
		[]string{"loop", "outcome"},
	)
	r.tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vanguard_tick_duration_seconds",
			Help:    "Tick duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		},
		[]string{"loop"},
	)
	r.trackedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vanguard_tracked_instruments",
			Help: "Number of instruments in the tracked set",
		},
	)
	r.rotationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_rotation_events_total",
			Help: "Tracked set membership changes",
		},
		[]string{"event"},
	)
	r.rawSignals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_raw_signals_total",
			Help: "Raw signals emitted by model type and action",
		},
		[]string{"model_type", "action"},
	)
	r.consensusGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vanguard_consensus_signals",
			Help: "Number of consensus signals in the latest batch",
		},
	)
	r.advisoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_advisory_calls_total",
			Help: "Advisory analysis calls by outcome",
		},
		[]string{"outcome"},
	)
	r.persistenceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_persistence_operations_total",
			Help: "State load/save operations by status",
		},
		[]string{"op", "status"},
	)
	r.sinkPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanguard_sink_publishes_total",
			Help: "Consensus batches published to sinks",
		},
		[]string{"sink", "status"},
	)
	r.activeModelsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vanguard_active_models",
			Help: "Number of active models",
		},
	)

	reg.MustRegister(r.ticksTotal)
	reg.MustRegister(r.tickDuration)
	reg.MustRegister(r.trackedGauge)
	reg.MustRegister(r.rotationEvents)
	reg.MustRegister(r.rawSignals)
	reg.MustRegister(r.consensusGauge)
	reg.MustRegister(r.advisoryCalls)
	reg.MustRegister(r.persistenceOps)
	reg.MustRegister(r.sinkPublishes)
	reg.MustRegister(r.activeModelsGauge)

	return r
}

// RecordRequest records metrics for an HTTP request. route is the matched
// pattern, not the raw path.
func (r *Registry) RecordRequest(method, route string, status int, duration float64) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(method, route, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Dec()
}

// RecordTick records one scheduler tick. outcome is ok, skipped,
// feed_unavailable or failed.
func (r *Registry) RecordTick(loop, outcome string, duration float64) {
	if r == nil {
		return
	}
	r.ticksTotal.WithLabelValues(loop, outcome).Inc()
	if outcome != "skipped" {
		r.tickDuration.WithLabelValues(loop).Observe(duration)
	}
}

// RecordRotation records membership changes and the resulting set size.
func (r *Registry) RecordRotation(added, evicted, removed, size int) {
	if r == nil {
		return
	}
	r.rotationEvents.WithLabelValues("added").Add(float64(added))
	r.rotationEvents.WithLabelValues("evicted").Add(float64(evicted))
	r.rotationEvents.WithLabelValues("removed").Add(float64(removed))
	r.trackedGauge.Set(float64(size))
}

// RecordRawSignal records one emitted raw signal.
func (r *Registry) RecordRawSignal(modelType, action string) {
	if r == nil {
		return
	}
	r.rawSignals.WithLabelValues(modelType, action).Inc()
}

// SetConsensusSignals sets the size of the latest consensus batch.
func (r *Registry) SetConsensusSignals(n int) {
	if r == nil {
		return
	}
	r.consensusGauge.Set(float64(n))
}

// RecordAdvisory adds advisory call outcomes.
func (r *Registry) RecordAdvisory(enhanced, timeouts, failures int) {
	if r == nil {
		return
	}
	r.advisoryCalls.WithLabelValues("enhanced").Add(float64(enhanced))
	r.advisoryCalls.WithLabelValues("timeout").Add(float64(timeouts))
	r.advisoryCalls.WithLabelValues("failed").Add(float64(failures))
}

// RecordPersistence records a load or save.
func (r *Registry) RecordPersistence(op string, err error) {
	if r == nil {
		return
	}
	r.persistenceOps.WithLabelValues(op, errStatus(err)).Inc()
}

// RecordSinkPublish records a sink publish.
func (r *Registry) RecordSinkPublish(sink string, err error) {
	if r == nil {
		return
	}
	r.sinkPublishes.WithLabelValues(sink, errStatus(err)).Inc()
}

// SetActiveModels sets the number of active models.
func (r *Registry) SetActiveModels(n int) {
	if r == nil {
		return
	}
	r.activeModelsGauge.Set(float64(n))
}

func errStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
