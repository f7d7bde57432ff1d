package cbanalytics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchbase/gocbanalytics/internal/promrecorder"
)

// Recorder is the metrics sink the client reports request, attempt and
// retry counters through. Like Logger, this is an opaque collaborator
// consumed by interface; NewPrometheusRecorder provides the
// Prometheus-backed implementation.
type Recorder interface {
	RecordRequest(outcome string)
	RecordAttempt(classification string, latencySeconds float64)
	RecordRetry()
	RecordDNSPoolExhausted()
}

// NewPrometheusRecorder registers the client's metric families against
// reg, under namespace, and returns a Recorder reporting into them. The
// registry is caller-supplied rather than the process-wide default one,
// so multiple client instances can keep their metrics apart.
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) Recorder {
	return promrecorder.New(reg, namespace)
}

// noopRecorder discards everything. Used when a caller does not supply a
// Recorder.
type noopRecorder struct{}

func (noopRecorder) RecordRequest(string)          {}
func (noopRecorder) RecordAttempt(string, float64) {}
func (noopRecorder) RecordRetry()                  {}
func (noopRecorder) RecordDNSPoolExhausted()       {}
