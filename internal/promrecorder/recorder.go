// Package promrecorder provides the default metrics Recorder, built on
// github.com/prometheus/client_golang the way this module's reference CLI
// instruments its RPC and indexing pipeline: per-operation counters and a
// latency histogram, one metric family per concern.
//
// Unlike that reference, which registers its metric vectors as package
// globals via promauto against the default registry, Recorder takes a
// caller-supplied prometheus.Registerer. A library linked into an
// application that already owns a registry cannot assume ownership of
// prometheus.DefaultRegisterer without risking duplicate-registration
// panics across multiple client instances; threading the registry through
// the constructor keeps registration under the caller's control.
package promrecorder

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements the core's Recorder interface.
type Recorder struct {
	requestsTotal  *prometheus.CounterVec
	attemptsTotal  *prometheus.CounterVec
	attemptLatency *prometheus.HistogramVec
	retriesTotal   prometheus.Counter
	dnsExhausted   prometheus.Counter
}

// New registers the client's metric families against reg and returns a
// Recorder that reports into them. Calling New twice against the same
// registry with the same namespace panics, because MustRegister rejects
// the duplicate registration; this is the same failure mode promauto
// exposes.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	r := &Recorder{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of analytics queries executed, by outcome.",
		}, []string{"outcome"}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of HTTP attempts made while executing queries, by classification.",
		}, []string{"classification"}),
		attemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_latency_seconds",
			Help:      "Latency of individual HTTP attempts against the analytics service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"classification"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retry attempts scheduled after a retryable failure.",
		}),
		dnsExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_pool_exhausted_total",
			Help:      "Total number of queries that failed because the DNS rotation pool ran out of unused addresses.",
		}),
	}

	reg.MustRegister(r.requestsTotal, r.attemptsTotal, r.attemptLatency, r.retriesTotal, r.dnsExhausted)
	return r
}

// RecordRequest reports the terminal outcome of one query execution.
func (r *Recorder) RecordRequest(outcome string) {
	r.requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordAttempt reports one HTTP attempt's classification and latency.
func (r *Recorder) RecordAttempt(classification string, latencySeconds float64) {
	r.attemptsTotal.WithLabelValues(classification).Inc()
	r.attemptLatency.WithLabelValues(classification).Observe(latencySeconds)
}

// RecordRetry reports that a retry was scheduled.
func (r *Recorder) RecordRetry() {
	r.retriesTotal.Inc()
}

// RecordDNSPoolExhausted reports that a query failed because the DNS
// rotation pool had no unused address left to try.
func (r *Recorder) RecordDNSPoolExhausted() {
	r.dnsExhausted.Inc()
}
