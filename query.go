package cbanalytics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/couchbase/gocbanalytics/cbaerr"
	"github.com/couchbase/gocbanalytics/internal/httpx"
)

// Cluster is the shared, long-lived handle a process keeps open against
// one analytics service endpoint. It owns the HTTP transport, whose
// connections are dialed on first use and shared by every query, and the
// cluster-wide defaults every query inherits. Cluster has no Close method:
// idle connections are released only by the transport's idle timeout.
// The DNS rotation pool, request context, and retry state
// described in the rest of this package are all created fresh per query.
type Cluster struct {
	opts ClusterOptions

	scheme string
	host   string
	port   string

	httpClient httpx.RequestExecutor
	resolver   *net.Resolver

	logger   Logger
	recorder Recorder
}

// NewCluster parses endpoint (host, or host:port, optionally prefixed
// http:// or https://) and builds a Cluster ready to execute queries
// against it.
func NewCluster(endpoint string, opts ClusterOptions) (*Cluster, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	scheme, host, port, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, cbaerr.NewInvalidArgument("invalid endpoint %q: %v", endpoint, err)
	}

	transport, err := httpx.NewTransport(host, opts.Trust, opts.connectTimeoutOrDefault())
	if err != nil {
		return nil, cbaerr.NewInvalidArgument("building transport: %v", err)
	}

	return &Cluster{
		opts:       opts,
		scheme:     scheme,
		host:       host,
		port:       port,
		httpClient: &http.Client{Transport: transport},
		resolver:   net.DefaultResolver,
		logger:     opts.loggerOrDefault(),
		recorder:   opts.recorderOrDefault(),
	}, nil
}

func parseEndpoint(endpoint string) (scheme, host, port string, err error) {
	if u, parseErr := url.Parse(endpoint); parseErr == nil && u.Scheme != "" && u.Host != "" {
		scheme = u.Scheme
		host = u.Hostname()
		port = u.Port()
	} else {
		scheme = "https"
		host, port, err = net.SplitHostPort(endpoint)
		if err != nil {
			host, port, err = endpoint, "", nil
		}
	}

	if port == "" {
		if scheme == "http" {
			port = "80"
		} else {
			port = "443"
		}
	}
	if host == "" {
		return "", "", "", fmt.Errorf("missing host")
	}
	return scheme, host, port, nil
}

// ExecuteQuery submits statement and returns a QueryResult once the
// response stream becomes readable. The returned error, when non-nil, is
// one of the typed errors in package cbaerr, except that cancelling ctx
// surfaces as the unwrapped AbortError.
func (c *Cluster) ExecuteQuery(ctx context.Context, statement string, opts QueryOptions) (*QueryResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	budget := opts.Timeout
	if budget <= 0 {
		budget = c.opts.queryTimeoutOrDefault()
	}
	deadline := time.Now().Add(budget)

	rctx := newRequestContext(c.opts.maxRetryAttemptsOrDefault(), http.MethodPost, requestPath, statement)
	pool := newDNSPool(c.host, c.port, c.resolver, c.logger, c.recorder)

	clientContextID := uuid.NewString()
	body, err := buildRequestBody(statement, clientContextID, opts, budget)
	if err != nil {
		return nil, cbaerr.NewInvalidArgument("%v", err)
	}

	exec := &attemptExecutor{
		cluster:  c,
		pool:     pool,
		rctx:     rctx,
		body:     body,
		opts:     opts,
		deadline: deadline,
	}

	result, err := runWithRetry(ctx, rctx, deadline, exec.attempt, classify, c.logger, c.recorder)
	if err != nil {
		c.recorder.RecordRequest("failure")
		return nil, err
	}
	c.recorder.RecordRequest("success")
	return result, nil
}

const requestPath = "/api/v1/request"
