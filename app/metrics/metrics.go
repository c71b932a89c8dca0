package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ai_news"

// Collector holds the Prometheus metrics of the digest service on its own
// registry.
type Collector struct {
	registry *prometheus.Registry

	SourceFetches  *prometheus.CounterVec
	SourceDuration *prometheus.HistogramVec
	SourceItems    *prometheus.CounterVec

	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	StageItems  *prometheus.GaugeVec
	LastRun     prometheus.Gauge

	Publishes *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		SourceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_fetches_total",
				Help:      "Source fetches by outcome",
			},
			[]string{"source", "status"},
		),
		SourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_fetch_duration_seconds",
				Help:      "Source fetch duration in seconds, retries included",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"source"},
		),
		SourceItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_items_total",
				Help:      "Raw items returned by each source",
			},
			[]string{"source"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Pipeline run duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		StageItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_stage_items",
				Help:      "Item counts per pipeline stage in the last run",
			},
			[]string{"stage"},
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last completed run",
			},
		),
		Publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publishes_total",
				Help:      "Digest publish attempts by outcome",
			},
			[]string{"status"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	c.registry.MustRegister(
		c.SourceFetches,
		c.SourceDuration,
		c.SourceItems,
		c.Runs,
		c.RunDuration,
		c.StageItems,
		c.LastRun,
		c.Publishes,
		c.HTTPRequests,
		c.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveFetch(source string, items int, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.SourceFetches.WithLabelValues(source, status).Inc()
	c.SourceDuration.WithLabelValues(source).Observe(d.Seconds())
	c.SourceItems.WithLabelValues(source).Add(float64(items))
}

// ObserveRun records a finished run. stages maps a stage name (fetched,
// normalized, selected...) to its item count.
func (c *Collector) ObserveRun(d time.Duration, stages map[string]int, err error) {
	if err != nil {
		c.Runs.WithLabelValues("failure").Inc()
		return
	}
	c.Runs.WithLabelValues("success").Inc()
	c.RunDuration.Observe(d.Seconds())
	c.LastRun.SetToCurrentTime()
	for stage, n := range stages {
		c.StageItems.WithLabelValues(stage).Set(float64(n))
	}
}

func (c *Collector) ObservePublish(err error) {
	if err != nil {
		c.Publishes.WithLabelValues("failure").Inc()
		return
	}
	c.Publishes.WithLabelValues("success").Inc()
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
