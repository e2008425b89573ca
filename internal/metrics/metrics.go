// Package metrics exposes Prometheus instruments for the ledger. A nil
// *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bilans"

type Recorder struct {
	registry *prometheus.Registry

	recordsAppended *prometheus.CounterVec
	appendFailures  prometheus.Counter
	settlements     *prometheus.CounterVec
	balanceReads    prometheus.Counter
	balanceDuration prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	recordsSynced   *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Recorder{
		registry: reg,
		recordsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Ledger records appended, by kind.",
		}, []string{"kind"}),
		appendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_failures_total",
			Help:      "Appends rejected by the ledger store.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement requests, by outcome.",
		}, []string{"outcome"}),
		balanceReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_computations_total",
			Help:      "Full-history balance computations.",
		}),
		balanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "balance_computation_seconds",
			Help:      "Time to read the ledger and aggregate the balance.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		recordsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_synced_total",
			Help:      "Records mirrored by the sync worker, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		r.recordsAppended,
		r.appendFailures,
		r.settlements,
		r.balanceReads,
		r.balanceDuration,
		r.httpRequests,
		r.httpDuration,
		r.rateLimited,
		r.recordsSynced,
	)
	return r
}

func (r *Recorder) RecordAppended(kind string) {
	if r == nil {
		return
	}
	r.recordsAppended.WithLabelValues(kind).Inc()
}

func (r *Recorder) AppendFailed() {
	if r == nil {
		return
	}
	r.appendFailures.Inc()
}

func (r *Recorder) Settlement(outcome string) {
	if r == nil {
		return
	}
	r.settlements.WithLabelValues(outcome).Inc()
}

func (r *Recorder) BalanceComputed(d time.Duration) {
	if r == nil {
		return
	}
	r.balanceReads.Inc()
	r.balanceDuration.Observe(d.Seconds())
}

func (r *Recorder) HTTPRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (r *Recorder) RateLimited() {
	if r == nil {
		return
	}
	r.rateLimited.Inc()
}

// RecordSynced counts one mirror attempt; result is "ok" or "error".
func (r *Recorder) RecordSynced(result string) {
	if r == nil {
		return
	}
	r.recordsSynced.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
