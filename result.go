package cbanalytics

import (
	"context"
	"sync"
	"time"

	"github.com/couchbase/gocbanalytics/cbaerr"
)

// QueryResult is the handle an attempt hands back once its row stream has
// become readable: at least one row is about to be delivered, or the
// stream has already ended with zero rows. Rows are consumed through
// Next/Row/Err, in the manner of database/sql.Rows; MetaData refuses
// until the row stream has fully drained.
type QueryResult struct {
	deserializer RowDeserializer
	rowsCh       chan string
	doneCh       chan struct{}

	// cancelFn tears down the underlying HTTP request and body read.
	// Set by the retry driver once this result is handed back as a
	// success, since the context backing the request must outlive the
	// attempt function itself.
	cancelFn context.CancelFunc

	timer *time.Timer

	mu        sync.Mutex
	ended     bool
	endErr    error
	metadata  MetaData
	cancelled bool

	current interface{}
	rowErr  error
}

func newQueryResult(deserializer RowDeserializer, deadline time.Time) *QueryResult {
	r := &QueryResult{
		deserializer: deserializer,
		rowsCh:       make(chan string, 64),
		doneCh:       make(chan struct{}),
	}
	r.timer = time.AfterFunc(time.Until(deadline), func() {
		r.finish(cbaerr.NewTimeout("row stream did not reach end-of-stream before the deadline"))
	})
	return r
}

// finish is the single, idempotent path by which the row stream is
// declared over, whether normally, by a mid-stream server error, by the
// deadline timer, or by Cancel. Only the first call has any effect.
func (r *QueryResult) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	r.endErr = err
	close(r.doneCh)
	r.timer.Stop()
	if r.cancelFn != nil {
		r.cancelFn()
	}
}

// finishWithMetadata is finish's success path: the row stream ended
// normally and md is now available.
func (r *QueryResult) finishWithMetadata(md MetaData) {
	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return
	}
	r.ended = true
	r.metadata = md
	close(r.doneCh)
	r.timer.Stop()
	r.mu.Unlock()
}

// emitRow is called by the producer for each row fragment. It respects
// doneCh so a cancelled or timed-out result never blocks the producer
// forever on a full, unread channel.
func (r *QueryResult) emitRow(fragment string) {
	select {
	case r.rowsCh <- fragment:
	case <-r.doneCh:
	}
}

// closeRows is called by the producer once it has stopped sending rows,
// for any reason. It is always called exactly once. When the result was
// handed back, the producer has already called finish or
// finishWithMetadata; when the attempt failed before that, the producer
// only reported the failure on its ready channel and the executor calls
// finish itself.
func (r *QueryResult) closeRows() {
	close(r.rowsCh)
}

// Next advances to the next row, returning false once the stream has
// ended (check Err to distinguish a clean end from a failure).
func (r *QueryResult) Next() bool {
	fragment, ok := <-r.rowsCh
	if !ok {
		return false
	}
	r.current, r.rowErr = r.deserializer.Deserialize([]byte(fragment))
	return true
}

// Row returns the value decoded by the most recent call to Next.
func (r *QueryResult) Row() (interface{}, error) {
	return r.current, r.rowErr
}

// Err returns the error that ended the row stream, if any. It is only
// meaningful after Next has returned false.
func (r *QueryResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endErr
}

// MetaData returns the trailing query metadata. It fails with a fixed
// message until the row stream has fully drained, and continues to fail
// if the stream ended with an error rather than normally.
func (r *QueryResult) MetaData() (MetaData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ended {
		return MetaData{}, cbaerr.New(cbaerr.Analytics, "metadata is not available until the row stream has been fully consumed")
	}
	if r.endErr != nil {
		return MetaData{}, cbaerr.NewWithCause(cbaerr.Analytics, r.endErr, "metadata is not available because the row stream ended with an error")
	}
	return r.metadata, nil
}

// Cancel idempotently tears down the in-flight request and the row
// stream, and Err reports AbortError from then on. Next still returns
// rows already buffered in the channel, then returns false once the
// producer has stopped.
func (r *QueryResult) Cancel() {
	r.mu.Lock()
	already := r.cancelled
	r.cancelled = true
	r.mu.Unlock()
	if already {
		return
	}
	r.finish(errAbort)
}
