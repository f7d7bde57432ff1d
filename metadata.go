package cbanalytics

import (
	"time"

	"github.com/couchbase/gocbanalytics/internal/wireformat"
)

// Warning is one entry of the response's warnings array.
type Warning struct {
	Code    uint32
	Message string
}

// Metrics carries the server-reported execution statistics, with every
// duration field already converted from the wire's "Go syntax" strings.
type Metrics struct {
	ElapsedTime      time.Duration
	ExecutionTime    time.Duration
	CompileTime      time.Duration
	QueueWaitTime    time.Duration
	ResultCount      uint64
	ResultSize       uint64
	ProcessedObjects uint64
}

// MetaData is the trailing query metadata, available from QueryResult
// only once the row stream has fully drained.
type MetaData struct {
	RequestID string
	Warnings  []Warning
	Metrics   Metrics
}

func metaDataFromWire(w wireformat.MetaData) MetaData {
	md := MetaData{
		RequestID: w.RequestID,
		Metrics: Metrics{
			ElapsedTime:      w.Metrics.ElapsedTime,
			ExecutionTime:    w.Metrics.ExecutionTime,
			CompileTime:      w.Metrics.CompileTime,
			QueueWaitTime:    w.Metrics.QueueWaitTime,
			ResultCount:      w.Metrics.ResultCount,
			ResultSize:       w.Metrics.ResultSize,
			ProcessedObjects: w.Metrics.ProcessedObjects,
		},
	}
	for _, wr := range w.Warnings {
		md.Warnings = append(md.Warnings, Warning{Code: wr.Code, Message: wr.Message})
	}
	return md
}
