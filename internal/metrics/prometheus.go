package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exposes build telemetry on a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	buildsTotal   *prometheus.CounterVec
	buildDuration prometheus.Gauge
	buildsRunning prometheus.Gauge
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{registry: prometheus.NewRegistry()}

	r.buildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "novelbuilder_builds_total",
		Help: "Completed builds by status.",
	}, []string{"status"})
	r.buildDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novelbuilder_last_build_duration_seconds",
		Help: "Duration of the most recent build.",
	})
	r.buildsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novelbuilder_builds_running",
		Help: "Builds currently in progress.",
	})

	r.registry.MustRegister(r.buildsTotal, r.buildDuration, r.buildsRunning)
	return r
}

func (r *PrometheusRecorder) BuildStarted() {
	r.buildsRunning.Inc()
}

func (r *PrometheusRecorder) BuildFinished(status string, duration time.Duration) {
	r.buildsRunning.Dec()
	r.buildsTotal.WithLabelValues(status).Inc()
	r.buildDuration.Set(duration.Seconds())
}

// Handler returns the /metrics HTTP handler for this recorder's registry.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
