package cbanalytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/gocbanalytics/cbaerr"
)

// alwaysRetry wraps any attempt failure into a retriable verdict, the way
// the production classifier does for a retriable connection error.
func alwaysRetry(err error, _ *requestContext) RequestBehaviour {
	return RequestBehaviour{Retry: true, Err: cbaerr.NewWithCause(cbaerr.Analytics, err, "retriable failure")}
}

func alwaysFail(err error, _ *requestContext) RequestBehaviour {
	return RequestBehaviour{Retry: false, Err: cbaerr.NewWithCause(cbaerr.Analytics, err, "terminal failure")}
}

// Scenario: the attempt fails twice with a temporary error and succeeds on
// the third try. The driver returns the successful result and the request
// context has counted every attempt.
func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	rctx := newRequestContext(7, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(30 * time.Second)

	calls := 0
	fn := func(ctx context.Context) (*QueryResult, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("Temporary failure")
		}
		return &QueryResult{}, nil
	}

	result, err := runWithRetry(context.Background(), rctx, deadline, fn, alwaysRetry, noopLogger{}, noopRecorder{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, rctx.numAttempts)
}

// Scenario: the attempt never succeeds. The driver invokes it exactly
// maxRetryAttempts+1 times and the surfaced error carries the last
// attempt's message.
func TestRetriesExhausted(t *testing.T) {
	rctx := newRequestContext(3, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(30 * time.Second)

	calls := 0
	fn := func(ctx context.Context) (*QueryResult, error) {
		calls++
		return nil, errors.New("Temporary failure")
	}

	_, err := runWithRetry(context.Background(), rctx, deadline, fn, alwaysRetry, noopLogger{}, noopRecorder{})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "Temporary failure")
}

// Scenario: the attempt always fails retriably but the deadline is short.
// The surfaced error is a timeout that carries the last attempt's message.
func TestDeadlineTurnsRetriesIntoTimeout(t *testing.T) {
	rctx := newRequestContext(1000, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(500 * time.Millisecond)

	fn := func(ctx context.Context) (*QueryResult, error) {
		time.Sleep(10 * time.Millisecond)
		return nil, errors.New("Temporary failure")
	}

	_, err := runWithRetry(context.Background(), rctx, deadline, fn, alwaysRetry, noopLogger{}, noopRecorder{})
	require.Error(t, err)
	assert.True(t, cbaerr.IsTimeout(err), "expected a timeout, got %v", err)
	assert.Contains(t, err.Error(), "Temporary failure")
}

// A fail verdict stops the loop immediately: no further attempts are made
// after the classifier says so.
func TestFailVerdictStopsAttempts(t *testing.T) {
	rctx := newRequestContext(7, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(30 * time.Second)

	calls := 0
	fn := func(ctx context.Context) (*QueryResult, error) {
		calls++
		return nil, errors.New("fatal")
	}

	_, err := runWithRetry(context.Background(), rctx, deadline, fn, alwaysFail, noopLogger{}, noopRecorder{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rctx.numAttempts)
}

// An attempt that hangs past the deadline is cut off by the hard timeout
// race, surfacing as a timeout rather than blocking forever.
func TestHardTimeoutCutsOffHungAttempt(t *testing.T) {
	rctx := newRequestContext(7, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(100 * time.Millisecond)

	fn := func(ctx context.Context) (*QueryResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	_, err := runWithRetry(context.Background(), rctx, deadline, fn, alwaysRetry, noopLogger{}, noopRecorder{})
	require.Error(t, err)
	assert.True(t, cbaerr.IsTimeout(err), "expected a timeout, got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// Cancellation is terminal: the abort sentinel passes through unwrapped
// and unclassified.
func TestAbortIsNeverRetriedOrWrapped(t *testing.T) {
	rctx := newRequestContext(7, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(30 * time.Second)

	classified := false
	classifyFn := func(err error, _ *requestContext) RequestBehaviour {
		classified = true
		return RequestBehaviour{Retry: true, Err: err}
	}

	fn := func(ctx context.Context) (*QueryResult, error) {
		return nil, errAbort
	}

	_, err := runWithRetry(context.Background(), rctx, deadline, fn, classifyFn, noopLogger{}, noopRecorder{})
	require.Error(t, err)
	assert.Equal(t, errAbort, err)
	assert.False(t, classified, "abort must bypass the classifier")
}

// Cancelling the caller's context while an attempt is blocked on it
// surfaces the abort sentinel, not a timeout, even though the
// hard-timeout race observes the very same cancellation.
func TestParentCancellationSurfacesAbortNotTimeout(t *testing.T) {
	rctx := newRequestContext(7, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(30 * time.Second)

	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()

	fn := func(ctx context.Context) (*QueryResult, error) {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, errAbort
		}
		return nil, ctx.Err()
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancelParent()
	}()

	_, err := runWithRetry(parent, rctx, deadline, fn, alwaysRetry, noopLogger{}, noopRecorder{})
	require.Error(t, err)
	assert.Equal(t, errAbort, err)
	assert.False(t, cbaerr.IsTimeout(err), "caller cancellation must not be reported as a timeout")
}

// A deadline already in the past means zero attempts.
func TestExpiredDeadlineMeansZeroAttempts(t *testing.T) {
	rctx := newRequestContext(7, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(-time.Second)

	calls := 0
	fn := func(ctx context.Context) (*QueryResult, error) {
		calls++
		return nil, errors.New("unreachable")
	}

	_, err := runWithRetry(context.Background(), rctx, deadline, fn, alwaysRetry, noopLogger{}, noopRecorder{})
	require.Error(t, err)
	assert.True(t, cbaerr.IsTimeout(err))
	assert.Zero(t, calls)
}

func TestBackoffDelayIsBoundedByCeiling(t *testing.T) {
	for attempt := 0; attempt < 64; attempt++ {
		d := backoffDelay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, retryMaxDelay)
	}
}

// Every scheduled retry is reported to the recorder, and the surfaced
// error on exhaustion carries the request context string.
func TestRetriesAreRecordedAndContextAttached(t *testing.T) {
	rctx := newRequestContext(2, "POST", requestPath, "SELECT 1")
	deadline := time.Now().Add(30 * time.Second)

	rec := &countingRecorder{}
	fn := func(ctx context.Context) (*QueryResult, error) {
		return nil, errors.New("Temporary failure")
	}

	_, err := runWithRetry(context.Background(), rctx, deadline, fn, alwaysRetry, noopLogger{}, rec)
	require.Error(t, err)
	assert.Equal(t, 2, rec.retries)
	assert.Contains(t, err.Error(), "ErrorContext")
	assert.Contains(t, err.Error(), "numAttempts=3")
}

type countingRecorder struct {
	noopRecorder
	retries int
}

func (r *countingRecorder) RecordRetry() { r.retries++ }
