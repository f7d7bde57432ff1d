package cbanalytics

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/couchbase/gocbanalytics/cbaerr"
)

// retryBaseDelay and retryMaxDelay bound the exponential backoff between
// attempts: delay = random() * min(retryBaseDelay * 2^numAttempts,
// retryMaxDelay).
const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 60 * time.Second
)

// attemptFunc runs one attempt of a logical query and returns its result
// or an unclassified error for the classifier to interpret.
type attemptFunc func(ctx context.Context) (*QueryResult, error)

// classifierFunc maps one attempt's failure into a retry-or-fail verdict.
// The production classifier is classify; tests substitute their own.
type classifierFunc func(err error, rctx *requestContext) RequestBehaviour

// runWithRetry drives fn through zero or more attempts against a shared
// deadline, applying classifyFn's verdict after each failure and sleeping
// with exponential jitter backoff between retries. It returns the first
// successful result or the final classified error.
//
// Every attempt, including the first, races against the remaining time
// until deadline: a single slow attempt can never outrun the caller's
// overall budget.
func runWithRetry(parent context.Context, rctx *requestContext, deadline time.Time, fn attemptFunc, classifyFn classifierFunc, logger Logger, recorder Recorder) (*QueryResult, error) {
	var lastErr error

	for {
		if !time.Now().Before(deadline) {
			rctx.setPreviousAttemptError(lastErr)
			return nil, deadlineExceeded(rctx, lastErr)
		}

		rctx.incrementAttempt()
		logger.Debugf("starting attempt %d of at most %d", rctx.numAttempts, rctx.maxRetryAttempts+1)

		result, err := runWithHardTimeout(parent, deadline, fn)
		if err == nil {
			return result, nil
		}

		if isAbort(err) {
			return nil, err
		}
		if isHardTimeout(err) {
			rctx.setPreviousAttemptError(lastErr)
			return nil, deadlineExceeded(rctx, lastErr)
		}

		behaviour := classifyFn(err, rctx)
		if !behaviour.Retry {
			return nil, decorate(rctx, behaviour.Err)
		}

		lastErr = behaviour.Err
		rctx.setPreviousAttemptError(lastErr)

		if rctx.numAttempts > rctx.maxRetryAttempts {
			return nil, decorate(rctx, lastErr)
		}

		delay := backoffDelay(rctx.numAttempts)
		if time.Now().Add(delay).After(deadline) {
			return nil, deadlineExceeded(rctx, lastErr)
		}
		recorder.RecordRetry()
		logger.Debugf("attempt %d failed, retrying in %v: %v", rctx.numAttempts, delay, lastErr)
		time.Sleep(delay)
	}
}

// backoffDelay computes random() * min(retryBaseDelay*2^numAttempts,
// retryMaxDelay).
func backoffDelay(numAttempts int) time.Duration {
	ceiling := retryMaxDelay
	// Guard against overflow for large attempt counts; retryMaxDelay is
	// reached well before numAttempts gets anywhere near this.
	if numAttempts < 32 {
		if scaled := retryBaseDelay * time.Duration(uint64(1)<<uint(numAttempts)); scaled < ceiling {
			ceiling = scaled
		}
	}
	return time.Duration(rand.Float64() * float64(ceiling))
}

// hardTimeout is the sentinel error runWithHardTimeout raises when fn did
// not return before the deadline.
type hardTimeout struct{}

func (hardTimeout) Error() string { return "attempt exceeded remaining deadline" }

func isHardTimeout(err error) bool {
	_, ok := err.(hardTimeout)
	return ok
}

// runWithHardTimeout races fn against the time remaining until deadline,
// so a single hung attempt can never consume more than the caller's
// overall budget. fn is expected to observe ctx cancellation promptly;
// runWithHardTimeout does not forcibly reclaim a goroutine that ignores
// it, matching Go's usual context-cancellation contract.
//
// ctx outlives this call on the success path: a successful fn keeps
// streaming rows into its QueryResult long after attemptFunc itself
// returns, so the context it was given must stay alive until that result
// is fully drained or canceled. Ownership of cancel transfers to the
// QueryResult in that case; on failure or hard timeout, this function
// cancels it immediately since nothing further needs it.
func runWithHardTimeout(parent context.Context, deadline time.Time, fn attemptFunc) (*QueryResult, error) {
	ctx, cancel := context.WithDeadline(parent, deadline)

	type outcome struct {
		result *QueryResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fn(ctx)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			cancel()
			return nil, o.err
		}
		o.result.cancelFn = cancel
		return o.result, nil
	case <-ctx.Done():
		// Both this select and fn block on the same ctx, and this arm
		// needs no further work to become ready, so it wins the race
		// even when fn has already classified the cancellation. The
		// cause must be checked here: a canceled parent is the caller
		// aborting, not the query deadline running out.
		cancel()
		if parentErr := parent.Err(); parentErr != nil && !errors.Is(parentErr, context.DeadlineExceeded) {
			return nil, errAbort
		}
		return nil, hardTimeout{}
	}
}

func deadlineExceeded(rctx *requestContext, lastErr error) error {
	msg := "request deadline exceeded"
	if lastErr != nil {
		msg = msg + "; last attempt error: " + lastErr.Error()
	}
	return cbaerr.NewTimeout("%s", rctx.attachErrorContext(msg))
}

func decorate(rctx *requestContext, err error) error {
	if err == nil || isAbort(err) {
		return err
	}
	if e, ok := err.(*cbaerr.Error); ok {
		decorated := cbaerr.NewWithCause(e.Code, e.Cause, "%s", rctx.attachErrorContext(e.Message))
		decorated.ServerCode = e.ServerCode
		return decorated
	}
	return cbaerr.NewWithCause(cbaerr.Analytics, err, "%s", rctx.attachErrorContext(err.Error()))
}
