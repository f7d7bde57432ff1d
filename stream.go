package cbanalytics

import (
	"encoding/json"
	"io"

	"github.com/couchbase/gocbanalytics/internal/jsonstream"
	"github.com/couchbase/gocbanalytics/internal/wireformat"
)

// runAttemptStream binds body to the tokenizer/parser pipeline and drives
// result to completion. Exactly one value is sent on ready: nil once the
// stream has become readable (a row is about to be delivered, or
// end-of-stream was reached with zero rows), or an error if the attempt
// itself must fail before any row was ever handed to the caller — a
// non-empty errorsComplete that fires before the first row, or a
// transport failure reading the body, both abort the attempt rather than
// surface through the already-returned QueryResult, since no result has
// been handed back yet.
//
// Once ready has carried nil, result belongs to the caller and every
// further outcome — a mid-stream server error, a clean end with
// metadata, a transport failure partway through — is reported through
// result.finish/finishWithMetadata instead.
func runAttemptStream(body io.ReadCloser, result *QueryResult, ready chan<- error) {
	defer body.Close()
	defer result.closeRows()

	var (
		readySent    bool
		preRowFail   error
		errorEntries []string
	)
	sendReady := func(err error) {
		if readySent {
			return
		}
		readySent = true
		ready <- err
	}

	tz := jsonstream.NewTokenizer(body)
	parser := jsonstream.NewParser(
		func(fragment string) {
			if preRowFail != nil {
				// The attempt already failed on the errors array; rows
				// arriving after it have no consumer.
				return
			}
			sendReady(nil)
			result.emitRow(fragment)
		},
		func(fragments []string) {
			errorEntries = fragments
			if len(fragments) == 0 {
				return
			}
			if readySent {
				// A result has already been handed to the caller; the
				// failure is reported after Run returns, against the
				// result rather than the attempt.
				return
			}
			entries, err := parseErrorFragments(fragments)
			if err != nil {
				preRowFail = err
			} else {
				preRowFail = &serverErrorArray{Entries: entries}
			}
			sendReady(preRowFail)
		},
	)

	residual, runErr := jsonstream.Run(tz, parser)

	if !readySent {
		if runErr != nil {
			sendReady(newConnectionError(runErr))
			return
		}
		sendReady(nil)
	}
	if preRowFail != nil {
		// The attempt already failed before handing back a result; result
		// was never returned to a caller and needs no further updates.
		return
	}

	if runErr != nil {
		result.finish(newConnectionError(runErr))
		return
	}

	if len(errorEntries) > 0 {
		entries, err := parseErrorFragments(errorEntries)
		if err != nil {
			result.finish(err)
			return
		}
		result.finish(decorateMidStreamServerError(entries))
		return
	}

	md, err := wireformat.ParseMetaData(residual)
	if err != nil {
		result.finish(err)
		return
	}
	result.finishWithMetadata(metaDataFromWire(md))
}

// parseErrorFragments decodes each streamed fragment of a response's
// "errors" array; every fragment is already complete, self-contained
// JSON text by the time the parser hands it to onErrorsComplete.
func parseErrorFragments(fragments []string) ([]wireformat.ErrorJSON, error) {
	entries := make([]wireformat.ErrorJSON, 0, len(fragments))
	for _, f := range fragments {
		e, err := wireformat.ParseErrorFragment(json.RawMessage(f))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// decorateMidStreamServerError classifies a server error array discovered
// after rows have already been delivered. Rows already handed to the
// caller cannot be retracted, so there is no retry to attempt here
// regardless of the classifier's verdict — only its typed error matters.
func decorateMidStreamServerError(entries []wireformat.ErrorJSON) error {
	rctx := newRequestContext(0, "", "", "")
	behaviour := classifyServerErrorArray(entries, rctx)
	return behaviour.Err
}
