package cbanalytics

import (
	"fmt"
	"strings"
	"sync"
)

// requestContext accumulates diagnostic state across every attempt of a
// single logical query. It is owned by the retry driver and shared
// read/write with the classifier and the attempt executor; every field is
// either monotone-append or last-write-wins, so concurrent readers (a
// logging hook, a metrics recorder) never observe a torn update.
type requestContext struct {
	mu sync.Mutex

	numAttempts      int
	maxRetryAttempts int

	lastDispatchedTo   string
	lastDispatchedFrom string

	method    string
	path      string
	statement string

	statusCode int

	previousAttemptErrors error
	otherServerErrors     []string
}

// newRequestContext creates the context for one logical query. method,
// path and statement are set once and never change for the life of the
// query.
func newRequestContext(maxRetryAttempts int, method, path, statement string) *requestContext {
	return &requestContext{
		maxRetryAttempts: maxRetryAttempts,
		method:           method,
		path:             path,
		statement:        statement,
	}
}

// incrementAttempt bumps numAttempts. Called once at the top of every
// attempt, before the attempt touches the socket, so a failed dial still
// counts.
func (c *requestContext) incrementAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.numAttempts++
}

func (c *requestContext) setDispatch(to, from string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDispatchedTo = to
	c.lastDispatchedFrom = from
}

func (c *requestContext) setStatusCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCode = code
}

func (c *requestContext) setPreviousAttemptError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previousAttemptErrors = err
}

func (c *requestContext) addOtherServerError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.otherServerErrors = append(c.otherServerErrors, msg)
}

// attachErrorContext formats msg suffixed with this context's populated
// fields, in the fixed field order every surfaced error uses.
func (c *requestContext) attachErrorContext(msg string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var fields []string
	add := func(k, v string) {
		if v != "" {
			fields = append(fields, fmt.Sprintf("%s=%s", k, v))
		}
	}
	addInt := func(k string, v int) {
		if v != 0 {
			fields = append(fields, fmt.Sprintf("%s=%d", k, v))
		}
	}

	add("lastDispatchedTo", c.lastDispatchedTo)
	add("lastDispatchedFrom", c.lastDispatchedFrom)
	add("method", c.method)
	add("path", c.path)
	addInt("statusCode", c.statusCode)
	add("statement", c.statement)
	if c.previousAttemptErrors != nil {
		add("previousAttemptErrors", c.previousAttemptErrors.Error())
	}
	addInt("numAttempts", c.numAttempts)
	if len(c.otherServerErrors) > 0 {
		add("otherServerErrors", strings.Join(c.otherServerErrors, "; "))
	}

	if len(fields) == 0 {
		return msg
	}
	return fmt.Sprintf("%s. ErrorContext: %s", msg, strings.Join(fields, ", "))
}
