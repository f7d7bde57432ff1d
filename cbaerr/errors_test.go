package cbaerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite contains tests for the public error taxonomy.
type ErrorsTestSuite struct {
	suite.Suite
}

func (suite *ErrorsTestSuite) TestNewErrors() {
	e := NewInvalidArgument("illegal arguments: %v", "Arg1")
	suite.Equalf(InvalidArgument, e.Code, "unexpected error code")
	suite.Equalf("illegal arguments: Arg1", e.Message, "unexpected error message")

	e = NewTimeout("request timed out after %v", "5s")
	suite.Equalf(Timeout, e.Code, "unexpected error code")
	suite.Equalf("request timed out after 5s", e.Message, "unexpected error message")

	e = NewQuery("table is busy", 23)
	suite.Equalf(Query, e.Code, "unexpected error code")
	suite.Equalf(23, e.ServerCode, "unexpected server code")

	cause := NewQuery("table is busy", 23)
	msg := "request timed out"
	e = NewWithCause(Timeout, cause, msg)
	suite.Equalf(Timeout, e.Code, "unexpected error code")
	suite.Containsf(e.Error(), "table is busy", "unexpected error description")
	suite.Containsf(e.Error(), msg, "unexpected error description")
}

func (suite *ErrorsTestSuite) TestIsErrors() {
	e1 := NewInvalidArgument("illegal arguments: Arg1")
	e2 := NewTimeout("timed out")
	e3 := NewInvalidCredential("bad credentials")
	e4 := NewQuery("oops", 1)

	errs := [...]*Error{e1, e2, e3, e4}
	for _, e := range errs {
		suite.Equalf(e == e1, IsInvalidArgument(e), "IsInvalidArgument(%v)", e)
		suite.Equalf(e == e2, IsTimeout(e), "IsTimeout(%v)", e)
		suite.Equalf(e == e3, IsInvalidCredential(e), "IsInvalidCredential(%v)", e)
		suite.Equalf(e == e4, IsQuery(e), "IsQuery(%v)", e)
		suite.Truef(Is(e), "Is(%v) with no codes should be true", e)
	}

	otherErr := errors.New("not an analytics error")
	suite.Falsef(Is(otherErr), "Is(%v) should have returned false", otherErr)
}

func (suite *ErrorsTestSuite) TestUnwrap() {
	cause := errors.New("socket reset")
	e := NewWithCause(Analytics, cause, "connection failed")
	suite.Truef(errors.Is(e, cause), "errors.Is should see through Error.Unwrap")
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
