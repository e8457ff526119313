package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP client metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration *prometheus.HistogramVec
	barsProcessed    *prometheus.CounterVec
	positionEvents   *prometheus.CounterVec
	tradesTotal      *prometheus.CounterVec
	downloadsTotal   *prometheus.CounterVec
	runsActive       prometheus.Gauge
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
				Name: "crossbt_http_requests_total",
				Help: "Total number of outbound HTTP requests",
			},
			[]string{"method", "host", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crossbt_http_request_duration_seconds",
				Help:    "Outbound HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "host"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crossbt_http_requests_in_flight",
				Help: "Number of outbound HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbt_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"strategy", "status"},
	)
	r.backtestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crossbt_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"strategy"},
	)
	r.barsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbt_bars_processed_total",
			Help: "Total number of price bars evaluated",
		},
		[]string{"strategy"},
	)
	r.positionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbt_position_events_total",
			Help: "Total number of entry and exit events",
		},
		[]string{"strategy", "event"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbt_trades_total",
			Help: "Total number of simulated round trips",
		},
		[]string{"strategy", "outcome"},
	)
	r.downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbt_downloads_total",
			Help: "Total number of monthly archive downloads",
		},
		[]string{"status"},
	)
	r.runsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crossbt_runs_active",
			Help: "Number of backtests currently running",
		},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.positionEvents)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.downloadsTotal)
	reg.MustRegister(r.runsActive)

	return r
}

// RecordRequest records metrics for an outbound HTTP request.
func (r *Registry) RecordRequest(method, host string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, host, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, host).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(strategy, status string, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.WithLabelValues(strategy).Observe(duration)
}

// RecordEvaluation records the bars and position events of one run.
func (r *Registry) RecordEvaluation(strategy string, bars, entries, exits int) {
	r.barsProcessed.WithLabelValues(strategy).Add(float64(bars))
	r.positionEvents.WithLabelValues(strategy, "entry").Add(float64(entries))
	r.positionEvents.WithLabelValues(strategy, "exit").Add(float64(exits))
}

// RecordTrade records a simulated round trip as a win or a loss.
func (r *Registry) RecordTrade(strategy string, win bool) {
	outcome := "loss"
	if win {
		outcome = "win"
	}
	r.tradesTotal.WithLabelValues(strategy, outcome).Inc()
}

// RecordDownload records a monthly archive download attempt.
func (r *Registry) RecordDownload(status string) {
	r.downloadsTotal.WithLabelValues(status).Inc()
}

// RunStarted increments the active runs gauge.
func (r *Registry) RunStarted() {
	r.runsActive.Inc()
}

// RunFinished decrements the active runs gauge.
func (r *Registry) RunFinished() {
	r.runsActive.Dec()
}

// WriteTextfile dumps every registered metric to path in the text
// exposition format, for the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

func statusToString(status int) string {
	switch {
	case status == 0:
		return "error"
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
