package wireformat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchbase/gocbanalytics/internal/durationfmt"
)

// Status mirrors the service's top-level "status" field.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusErrors    Status = "errors"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusTimeout   Status = "timeout"
	StatusClosed    Status = "closed"
	StatusFatal     Status = "fatal"
	StatusAborted   Status = "aborted"
	StatusUnknown   Status = "unknown"
)

// MetricsJSON is the wire shape of the response's "metrics" object: a
// subset of fields carried as "Go syntax" duration strings alongside
// plain integers.
type MetricsJSON struct {
	ElapsedTime      string `json:"elapsedTime,omitempty"`
	ExecutionTime    string `json:"executionTime,omitempty"`
	CompileTime      string `json:"compileTime,omitempty"`
	QueueWaitTime    string `json:"queueWaitTime,omitempty"`
	ResultCount      uint64 `json:"resultCount,omitempty"`
	ResultSize       uint64 `json:"resultSize,omitempty"`
	ProcessedObjects uint64 `json:"processedObjects,omitempty"`
}

// WarningJSON is one entry of the response's "warnings" array.
type WarningJSON struct {
	Code    uint32 `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorJSON is one entry of the response's "errors" array, and of the
// per-attempt string fragments the streaming parser buffers before the
// caller has a chance to parse them as JSON.
type ErrorJSON struct {
	Code      uint32 `json:"code,omitempty"`
	Msg       string `json:"msg,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`
}

// MetaDataJSON is the residual top-level document once the "results"
// array has been emptied by the streaming parser: requestID plus
// everything the response carries about the query besides its rows.
type MetaDataJSON struct {
	RequestID string        `json:"requestID"`
	Status    Status        `json:"status,omitempty"`
	Warnings  []WarningJSON `json:"warnings,omitempty"`
	Metrics   MetricsJSON   `json:"metrics,omitempty"`
}

// Metrics is the parsed form of MetricsJSON, with duration strings
// converted to time.Duration.
type Metrics struct {
	ElapsedTime      time.Duration
	ExecutionTime    time.Duration
	CompileTime      time.Duration
	QueueWaitTime    time.Duration
	ResultCount      uint64
	ResultSize       uint64
	ProcessedObjects uint64
}

// Warning is the parsed form of WarningJSON.
type Warning struct {
	Code    uint32
	Message string
}

// MetaData is the parsed form of MetaDataJSON.
type MetaData struct {
	RequestID string
	Status    Status
	Warnings  []Warning
	Metrics   Metrics
}

// ParseMetaData unmarshals the streaming parser's residual document and
// converts its duration fields.
func ParseMetaData(residual string) (MetaData, error) {
	var raw MetaDataJSON
	if err := json.Unmarshal([]byte(residual), &raw); err != nil {
		return MetaData{}, fmt.Errorf("wireformat: parsing residual metadata: %w", err)
	}

	metrics, err := parseMetrics(raw.Metrics)
	if err != nil {
		return MetaData{}, err
	}

	md := MetaData{
		RequestID: raw.RequestID,
		Status:    raw.Status,
		Metrics:   metrics,
	}
	for _, w := range raw.Warnings {
		md.Warnings = append(md.Warnings, Warning{Code: w.Code, Message: w.Message})
	}
	return md, nil
}

func parseMetrics(raw MetricsJSON) (Metrics, error) {
	var m Metrics
	var err error

	if m.ElapsedTime, err = parseOptionalDuration(raw.ElapsedTime); err != nil {
		return Metrics{}, err
	}
	if m.ExecutionTime, err = parseOptionalDuration(raw.ExecutionTime); err != nil {
		return Metrics{}, err
	}
	if m.CompileTime, err = parseOptionalDuration(raw.CompileTime); err != nil {
		return Metrics{}, err
	}
	if m.QueueWaitTime, err = parseOptionalDuration(raw.QueueWaitTime); err != nil {
		return Metrics{}, err
	}

	m.ResultCount = raw.ResultCount
	m.ResultSize = raw.ResultSize
	m.ProcessedObjects = raw.ProcessedObjects
	return m, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := durationfmt.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("wireformat: %w", err)
	}
	return d, nil
}

// ParseErrorFragment unmarshals one entry of the streaming parser's
// errorsComplete fragments, or one already-decoded element of a buffered
// response body's "errors" array (raw is a json.RawMessage either way).
func ParseErrorFragment(raw json.RawMessage) (ErrorJSON, error) {
	var e ErrorJSON
	if err := json.Unmarshal(raw, &e); err != nil {
		return ErrorJSON{}, fmt.Errorf("wireformat: parsing server error entry: %w", err)
	}
	return e, nil
}
