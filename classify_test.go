package cbanalytics

import (
	"crypto/x509"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchbase/gocbanalytics/cbaerr"
	"github.com/couchbase/gocbanalytics/internal/wireformat"
)

func testReqContext() *requestContext {
	return newRequestContext(7, "POST", requestPath, "SELECT 1")
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantRetry bool
		wantCode  cbaerr.Code
	}{
		{401, false, cbaerr.InvalidCredential},
		{503, true, cbaerr.Analytics},
		{500, false, cbaerr.Analytics},
		{404, false, cbaerr.Analytics},
	}

	for _, tt := range tests {
		b := classify(&httpStatusError{StatusCode: tt.status}, testReqContext())
		assert.Equalf(t, tt.wantRetry, b.Retry, "status %d", tt.status)
		assert.Truef(t, cbaerr.Is(b.Err, tt.wantCode), "status %d: got %v", tt.status, b.Err)
	}
}

func TestClassifyTypedTimeoutPassesThrough(t *testing.T) {
	in := cbaerr.NewTimeout("deadline already blown")

	b := classify(in, testReqContext())
	assert.False(t, b.Retry)
	assert.Equal(t, in, b.Err)
}

func TestClassifyConnectTimeoutRetriesAsTimeout(t *testing.T) {
	b := classify(&internalConnectionTimeout{Address: "10.0.0.1:8095"}, testReqContext())
	assert.True(t, b.Retry)
	assert.True(t, cbaerr.IsTimeout(b.Err))
	assert.Contains(t, b.Err.Error(), "10.0.0.1:8095")
}

func TestClassifyConnectionErrorFollowsRetriability(t *testing.T) {
	b := classify(&connectionError{cause: errors.New("connection reset by peer"), retriable: true}, testReqContext())
	assert.True(t, b.Retry)
	assert.True(t, cbaerr.Is(b.Err, cbaerr.Analytics))

	b = classify(&connectionError{cause: x509.UnknownAuthorityError{}, retriable: false}, testReqContext())
	assert.False(t, b.Retry)
	assert.True(t, cbaerr.Is(b.Err, cbaerr.Analytics))
}

func TestClassifyAbortPassesThrough(t *testing.T) {
	b := classify(errAbort, testReqContext())
	assert.False(t, b.Retry)
	assert.Equal(t, errAbort, b.Err)
}

func TestClassifyUnknownErrorFails(t *testing.T) {
	b := classify(errors.New("something odd"), testReqContext())
	assert.False(t, b.Retry)
	assert.True(t, cbaerr.Is(b.Err, cbaerr.Analytics))
	assert.Contains(t, b.Err.Error(), "something odd")
}

func TestDenyListedCauses(t *testing.T) {
	denied := []error{
		&net.DNSError{Err: "no such host", Name: "nowhere.example.com"},
		x509.HostnameError{Host: "wrong.example.com"},
		x509.UnknownAuthorityError{},
		x509.CertificateInvalidError{},
	}
	for _, cause := range denied {
		assert.Truef(t, denyListedCause(cause), "%T should be deny-listed", cause)
		assert.Falsef(t, newConnectionError(cause).retriable, "%T should not be retriable", cause)
	}

	allowed := []error{
		errors.New("connection reset by peer"),
		errors.New("broken pipe"),
	}
	for _, cause := range allowed {
		assert.Falsef(t, denyListedCause(cause), "%T should be retriable", cause)
		assert.Truef(t, newConnectionError(cause).retriable, "%T should be retriable", cause)
	}
}

// Scenario: a single server error with code 20000. The verdict is a
// terminal credential failure after exactly one attempt's worth of
// classification.
func TestServerErrorInvalidCredentials(t *testing.T) {
	rctx := testReqContext()

	b := classify(&serverErrorArray{Entries: []wireformat.ErrorJSON{
		{Code: 20000, Msg: "auth"},
	}}, rctx)

	assert.False(t, b.Retry)
	assert.True(t, cbaerr.IsInvalidCredential(b.Err))
	assert.Empty(t, rctx.otherServerErrors)
}

func TestServerErrorTimeoutCode(t *testing.T) {
	b := classify(&serverErrorArray{Entries: []wireformat.ErrorJSON{
		{Code: 21002, Msg: "request timed out on the server"},
	}}, testReqContext())

	assert.False(t, b.Retry)
	assert.True(t, cbaerr.IsTimeout(b.Err))
}

func TestServerErrorEmptyArrayFails(t *testing.T) {
	b := classify(&serverErrorArray{}, testReqContext())
	assert.False(t, b.Retry)
	assert.True(t, cbaerr.Is(b.Err, cbaerr.Analytics))
	assert.Contains(t, b.Err.Error(), "empty error array")
}

// An all-retriable error array yields a retry verdict carrying the first
// entry as a query error.
func TestServerErrorAllRetriableRetries(t *testing.T) {
	rctx := testReqContext()

	b := classify(&serverErrorArray{Entries: []wireformat.ErrorJSON{
		{Code: 23000, Msg: "temporarily overloaded", Retriable: true},
		{Code: 23001, Msg: "also overloaded", Retriable: true},
	}}, rctx)

	assert.True(t, b.Retry)
	require.True(t, cbaerr.IsQuery(b.Err))
	e := b.Err.(*cbaerr.Error)
	assert.Equal(t, 23000, e.ServerCode)
	assert.Equal(t, "temporarily overloaded", e.Message)
	assert.Len(t, rctx.otherServerErrors, 1)
}

// The first non-retriable entry is the primary even when a retriable one
// precedes it, and its presence makes the verdict terminal. Everything
// else lands in otherServerErrors.
func TestServerErrorNonRetriablePrimaryWins(t *testing.T) {
	rctx := testReqContext()

	b := classify(&serverErrorArray{Entries: []wireformat.ErrorJSON{
		{Code: 23000, Msg: "temporarily overloaded", Retriable: true},
		{Code: 24000, Msg: "syntax error", Retriable: false},
	}}, rctx)

	assert.False(t, b.Retry)
	require.True(t, cbaerr.IsQuery(b.Err))
	e := b.Err.(*cbaerr.Error)
	assert.Equal(t, 24000, e.ServerCode)
	assert.Equal(t, "syntax error", e.Message)
	require.Len(t, rctx.otherServerErrors, 1)
	assert.Contains(t, rctx.otherServerErrors[0], "23000")
}
