// Package metrics holds the process wide prometheus collectors
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seochecker"

// Outcome label values
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeRetry  = "retry"
)

var (
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Provider calls by endpoint and outcome",
	}, []string{"provider", "endpoint", "outcome"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_seconds",
		Help:      "Provider call latency including retries",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider", "endpoint"})

	providerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_retries_total",
		Help:      "Transient provider failures that were retried",
	}, []string{"provider", "endpoint"})

	subqueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subqueries_total",
		Help:      "Per domain sub-queries by api and outcome",
	}, []string{"api", "outcome"})

	domainsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "domains_processed_total",
		Help:      "Domains whose extraction work unit finished",
	})

	analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyses_total",
		Help:      "Analyses reaching a status",
	}, []string{"status"})

	ruleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rule_failures_total",
		Help:      "Rule evaluations that errored or panicked",
	}, []string{"rule"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by method, route pattern and status code",
	}, []string{"method", "route", "code"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_seconds",
		Help:      "API request latency by route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	archiveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_failures_total",
		Help:      "Raw response archive writes that failed",
	}, []string{"backend"})
)

// ProviderCall records one logical provider call
func ProviderCall(provider, endpoint string, err error, took time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	providerRequests.WithLabelValues(provider, endpoint, outcome).Inc()
	providerLatency.WithLabelValues(provider, endpoint).Observe(took.Seconds())
}

// ProviderRetry records a retried transient failure
func ProviderRetry(provider, endpoint string) {
	providerRetries.WithLabelValues(provider, endpoint).Inc()
}

// SubQuery records a per domain sub-query outcome
func SubQuery(api string, ok bool) {
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeFailed
	}
	subqueries.WithLabelValues(api, outcome).Inc()
}

// DomainDone counts one finished domain work unit
func DomainDone() { domainsProcessed.Inc() }

// AnalysisStatus counts an analysis entering status
func AnalysisStatus(status string) { analyses.WithLabelValues(status).Inc() }

// RuleFailure counts a rule evaluation failure
func RuleFailure(rule string) { ruleFailures.WithLabelValues(rule).Inc() }

// ArchiveFailure counts a failed archive write
func ArchiveFailure(backend string) { archiveFailures.WithLabelValues(backend).Inc() }

// HTTPRequest records one served API request; route is the router pattern, not the raw path
func HTTPRequest(method, route string, status int, took time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(took.Seconds())
}

// Handler exposes the default registry
func Handler() http.Handler { return promhttp.Handler() }
