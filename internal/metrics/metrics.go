// Package metrics exposes Prometheus collectors for relay runs.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Run outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Recorder owns a private registry so batch pushes and the daemon endpoint
// expose only relay collectors.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal           *prometheus.CounterVec
	rowsTotal           *prometheus.CounterVec
	webhookTotal        *prometheus.CounterVec
	runDurationSeconds  prometheus.Histogram
	lastSuccessUnixTime prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
}

// New registers the relay collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agrishikyo_runs_total",
				Help: "Total relay runs, labeled by status.",
			},
			[]string{"status"},
		),
		rowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agrishikyo_rows_total",
				Help: "Total price rows extracted, labeled by item keyword.",
			},
			[]string{"item"},
		),
		webhookTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agrishikyo_webhook_requests_total",
				Help: "Total webhook deliveries, labeled by HTTP status code.",
			},
			[]string{"code"},
		),
		runDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agrishikyo_run_duration_seconds",
				Help:    "Histogram of end-to-end relay run durations.",
				Buckets: []float64{5, 10, 20, 30, 60, 120, 300},
			},
		),
		lastSuccessUnixTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agrishikyo_last_success_timestamp_seconds",
				Help: "Unix time of the last successful relay run.",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// WithProcessCollectors adds Go runtime and process collectors, which only
// make sense for the long-running daemon.
func (r *Recorder) WithProcessCollectors() *Recorder {
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(err error, started time.Time, duration time.Duration) {
	if r == nil {
		return
	}
	r.runDurationSeconds.Observe(duration.Seconds())
	if err != nil {
		r.runsTotal.WithLabelValues(StatusFailure).Inc()
		return
	}
	r.runsTotal.WithLabelValues(StatusSuccess).Inc()
	r.lastSuccessUnixTime.Set(float64(started.Add(duration).Unix()))
}

// ObserveRows records the rows extracted for one item.
func (r *Recorder) ObserveRows(item string, rows int) {
	if r == nil {
		return
	}
	r.rowsTotal.WithLabelValues(item).Add(float64(rows))
}

// ObserveWebhook records a webhook response code. Zero means the request
// never produced a response.
func (r *Recorder) ObserveWebhook(code int) {
	if r == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	r.webhookTotal.WithLabelValues(label).Inc()
}

// ObserveHTTPRequest records one request served by the daemon.
func (r *Recorder) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	r.httpDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Push sends the current values to a Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
