package cbanalytics

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"

	"github.com/couchbase/gocbanalytics/cbaerr"
	"github.com/couchbase/gocbanalytics/internal/wireformat"
)

// httpStatusError is raised by the attempt executor when the response's
// status code itself constitutes a failure (currently only 401, with the
// generic non-2xx case handled the same way).
type httpStatusError struct {
	StatusCode int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http status error: %d", e.StatusCode)
}

// internalConnectionTimeout is raised when the connect-timeout fires
// before the socket reaches the connected state.
type internalConnectionTimeout struct {
	Address string
}

func (e *internalConnectionTimeout) Error() string {
	return fmt.Sprintf("connection to %s timed out", e.Address)
}

// connectionError wraps a transport-level dial or handshake failure. Its
// retriable field is fixed at construction time based on the deny-list
// below, not recomputed by the classifier.
type connectionError struct {
	cause     error
	retriable bool
}

func (e *connectionError) Error() string { return e.cause.Error() }
func (e *connectionError) Unwrap() error { return e.cause }

// abortError is the terminal error raised by cancellation. It is
// identified by name, never wrapped, and never retried.
type abortError struct{}

func (abortError) Error() string { return "AbortError" }

// errAbort is the sentinel value every cancellation path raises.
var errAbort error = abortError{}

// isAbort reports whether err is the cancellation sentinel.
func isAbort(err error) bool {
	var a abortError
	return errors.As(err, &a)
}

// serverErrorArray wraps the raw entries of a response's "errors" array,
// whether they arrived as streamed string fragments or as an
// already-decoded slice from a buffered body.
type serverErrorArray struct {
	Entries []wireformat.ErrorJSON
}

// Error satisfies the error interface so serverErrorArray can be carried
// through the same error-classification path as any other failure.
func (s *serverErrorArray) Error() string {
	if len(s.Entries) == 0 {
		return "server returned errors"
	}
	return fmt.Sprintf("server returned %d error(s), first: code=%d msg=%q", len(s.Entries), s.Entries[0].Code, s.Entries[0].Msg)
}

// RequestBehaviour is the classifier's verdict: either retry (with the
// typed error recorded for context, should the query ultimately time out)
// or fail with that error as the final, surfaced one.
type RequestBehaviour struct {
	Retry bool
	Err   error
}

// classify is a pure function of (error, request context) mapping any
// condition an attempt can raise into a RequestBehaviour. The request
// context is only read here except for recording otherServerErrors; the
// retry driver owns numAttempts and previousAttemptErrors.
func classify(err error, ctx *requestContext) RequestBehaviour {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case 401:
			return RequestBehaviour{Retry: false, Err: cbaerr.NewInvalidCredential("authentication failed (http 401)")}
		case 503:
			return RequestBehaviour{Retry: true, Err: cbaerr.New(cbaerr.Analytics, "service unavailable (http 503)")}
		default:
			return RequestBehaviour{Retry: false, Err: cbaerr.New(cbaerr.Analytics, "unexpected http status %d", httpErr.StatusCode)}
		}
	}

	var typedErr *cbaerr.Error
	if errors.As(err, &typedErr) && typedErr.Code == cbaerr.Timeout {
		return RequestBehaviour{Retry: false, Err: typedErr}
	}

	var connectTimeout *internalConnectionTimeout
	if errors.As(err, &connectTimeout) {
		return RequestBehaviour{Retry: true, Err: cbaerr.NewTimeout("connect timeout to %s", connectTimeout.Address)}
	}

	var connErr *connectionError
	if errors.As(err, &connErr) {
		if connErr.retriable {
			return RequestBehaviour{Retry: true, Err: cbaerr.NewWithCause(cbaerr.Analytics, connErr.cause, "connection error")}
		}
		return RequestBehaviour{Retry: false, Err: cbaerr.NewWithCause(cbaerr.Analytics, connErr.cause, "connection error")}
	}

	if isAbort(err) {
		return RequestBehaviour{Retry: false, Err: err}
	}

	var serverErrs *serverErrorArray
	if errors.As(err, &serverErrs) {
		return classifyServerErrorArray(serverErrs.Entries, ctx)
	}

	return RequestBehaviour{Retry: false, Err: cbaerr.NewWithCause(cbaerr.Analytics, err, "unknown error")}
}

// denyListedCause reports whether cause belongs to the fixed set of
// platform connection failures that are never worth retrying: hostname or
// DNS lookup failures, X.509/PKI validation failures of any kind, and
// hostname mismatches. Every other cause is retriable.
func denyListedCause(cause error) bool {
	var dnsErr *net.DNSError
	if errors.As(cause, &dnsErr) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(cause, &hostnameErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(cause, &unknownAuthority) {
		return true
	}
	var certInvalid x509.CertificateInvalidError
	if errors.As(cause, &certInvalid) {
		return true
	}
	var (
		systemRoots  x509.SystemRootsError
		critical     x509.UnhandledCriticalExtension
		constraint   x509.ConstraintViolationError
		insecureAlgo x509.InsecureAlgorithmError
	)
	if errors.As(cause, &systemRoots) || errors.As(cause, &critical) ||
		errors.As(cause, &constraint) || errors.As(cause, &insecureAlgo) {
		return true
	}
	return false
}

// newConnectionError builds a connectionError, classifying cause through
// the deny-list immediately so the resulting value's retriable field is
// fixed at construction time.
func newConnectionError(cause error) *connectionError {
	return &connectionError{cause: cause, retriable: !denyListedCause(cause)}
}

// classifyServerErrorArray implements the §4.4.1 subroutine: select one
// primary error from a parsed server "errors" array and decide the
// verdict from it, recording every non-primary entry on the request
// context.
func classifyServerErrorArray(entries []wireformat.ErrorJSON, ctx *requestContext) RequestBehaviour {
	if len(entries) == 0 {
		return RequestBehaviour{Retry: false, Err: cbaerr.New(cbaerr.Analytics, "empty error array")}
	}

	primaryIdx := -1
	for i, e := range entries {
		if !e.Retriable {
			primaryIdx = i
			break
		}
	}
	if primaryIdx == -1 {
		for i, e := range entries {
			if e.Retriable {
				primaryIdx = i
				break
			}
		}
	}
	if primaryIdx == -1 {
		primaryIdx = 0
	}
	primary := entries[primaryIdx]

	for i, e := range entries {
		if i == primaryIdx {
			continue
		}
		ctx.addOtherServerError(fmt.Sprintf("code=%d msg=%s", e.Code, e.Msg))
	}

	switch primary.Code {
	case 20000:
		return RequestBehaviour{Retry: false, Err: cbaerr.NewInvalidCredential("%s", primary.Msg)}
	case 21002:
		return RequestBehaviour{Retry: false, Err: cbaerr.NewTimeout("%s", primary.Msg)}
	}

	queryErr := cbaerr.NewQuery(primary.Msg, int(primary.Code))
	if primary.Retriable {
		return RequestBehaviour{Retry: true, Err: queryErr}
	}
	return RequestBehaviour{Retry: false, Err: queryErr}
}
