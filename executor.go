package cbanalytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"github.com/couchbase/gocbanalytics/internal/httpx"
	"github.com/couchbase/gocbanalytics/internal/wireformat"
)

// buildRequestBody serializes one query's request wire body: the
// statement, client_context_id, positional and named parameters, and the
// server-side timeout, which is always the caller's deadline budget plus
// the fixed serverTimeoutSlack margin.
func buildRequestBody(statement, clientContextID string, opts QueryOptions, budget time.Duration) ([]byte, error) {
	req := wireformat.Request{
		Statement:       statement,
		ClientContextID: clientContextID,
		QueryContext:    opts.QueryContext,
		Args:            opts.PositionalParameters,
		NamedArgs:       opts.NamedParameters,
		Readonly:        opts.Readonly,
		ScanConsistency: wireformat.ScanConsistency(opts.ScanConsistency),
		Timeout:         wireformat.TimeoutMillis(budget.Milliseconds(), serverTimeoutSlack.Milliseconds()),
		Raw:             opts.Raw,
	}

	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return b, nil
}

// attemptExecutor holds everything one logical query's attempts share:
// the cluster's transport and credentials, the query's own DNS pool,
// request context, and pre-serialized body.
type attemptExecutor struct {
	cluster  *Cluster
	pool     *dnsPool
	rctx     *requestContext
	body     []byte
	opts     QueryOptions
	deadline time.Time
}

// attempt runs one full attempt: obtain an address, send the request,
// inspect the response, and bind the body to the streaming pipeline.
// It returns a readable QueryResult, or an unclassified error for the
// retry driver to hand to the classifier.
func (e *attemptExecutor) attempt(ctx context.Context) (*QueryResult, error) {
	address, err := e.pool.maybeUpdateAndGet(ctx)
	if err != nil {
		return nil, err
	}
	e.rctx.setDispatch(address, "")

	var localAddr string
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			localAddr = info.Conn.LocalAddr().String()
		},
	}

	reqURL := fmt.Sprintf("%s://%s%s", e.cluster.scheme, address, requestPath)
	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, reqURL, bytes.NewReader(e.body))
	if err != nil {
		return nil, newConnectionError(err)
	}
	httpReq.Host = e.cluster.host
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Length", strconv.Itoa(len(e.body)))
	httpReq.Header.Set("Authorization", httpx.BasicAuth(e.cluster.opts.Credential.Username(), e.cluster.opts.Credential.Password()))
	if e.opts.Priority {
		httpReq.Header.Set("Analytics-Priority", "-1")
	}

	start := time.Now()
	resp, err := e.cluster.httpClient.Do(httpReq)
	if err != nil {
		e.pool.markUsed(address)
		return nil, e.classifyDialError(ctx, address, err)
	}
	e.pool.markUsed(address)
	e.rctx.setDispatch(address, localAddr)
	e.rctx.setStatusCode(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &httpStatusError{StatusCode: resp.StatusCode}
	}

	result := newQueryResult(e.opts.Deserializer, e.deadline)
	ready := make(chan error, 1)
	go runAttemptStream(resp.Body, result, ready)

	select {
	case err := <-ready:
		e.cluster.recorder.RecordAttempt(attemptClassification(err), time.Since(start).Seconds())
		if err != nil {
			// The result was never handed to a caller; release its timer
			// and unblock the producer.
			result.finish(err)
			return nil, err
		}
		return result, nil
	case <-ctx.Done():
		result.finish(errAbort)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, hardTimeout{}
		}
		return nil, errAbort
	}
}

// classifyDialError turns an http.Client.Do failure into one of the
// typed raw errors the classifier understands: a connect timeout if the
// underlying dial or TLS handshake exceeded its budget, the abort
// sentinel if the caller's own cancellation fired, otherwise a generic
// connection error subject to the deny-list.
func (e *attemptExecutor) classifyDialError(ctx context.Context, address string, err error) error {
	if ctx.Err() != nil && ctx.Err() != context.DeadlineExceeded {
		return errAbort
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &internalConnectionTimeout{Address: address}
	}
	return newConnectionError(err)
}

// attemptClassification labels an attempt outcome for metrics purposes.
func attemptClassification(err error) string {
	if err == nil {
		return "success"
	}
	if isAbort(err) {
		return "aborted"
	}
	return "failure"
}
