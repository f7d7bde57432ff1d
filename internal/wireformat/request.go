// Package wireformat defines the JSON shapes exchanged with the analytics
// service: the outgoing request body and the incoming response metadata
// envelope. It is grounded on the sibling Couchbase client's cbqueryx wire
// types, adapted from a key-value-store bulk cursor request to this
// service's single-statement request/response shape.
package wireformat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScanConsistency selects the service's read-your-own-writes behavior.
type ScanConsistency string

const (
	ScanConsistencyNotBounded  ScanConsistency = "not_bounded"
	ScanConsistencyRequestPlus ScanConsistency = "request_plus"
)

// Request is the JSON body posted to /api/v1/request. Raw carries
// caller-supplied pass-through keys and is merged in last, so it can
// override any field this type would otherwise set.
type Request struct {
	Statement       string                 `json:"statement"`
	ClientContextID string                 `json:"client_context_id,omitempty"`
	QueryContext    string                 `json:"query_context,omitempty"`
	Args            []interface{}          `json:"args,omitempty"`
	NamedArgs       map[string]interface{} `json:"-"`
	Readonly        *bool                  `json:"readonly,omitempty"`
	ScanConsistency ScanConsistency        `json:"scan_consistency,omitempty"`
	Timeout         string                 `json:"timeout,omitempty"`
	Raw             map[string]interface{} `json:"-"`
}

// MarshalJSON encodes the request, folding NamedArgs in as "$name" keys
// (prefixing with "$" only when the caller didn't already supply it) and
// merging Raw last so raw pass-through keys win on conflict, matching the
// precedence the request wire format documents.
func (r Request) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"statement": r.Statement,
	}
	if r.ClientContextID != "" {
		m["client_context_id"] = r.ClientContextID
	}
	if r.QueryContext != "" {
		m["query_context"] = r.QueryContext
	}
	if len(r.Args) > 0 {
		m["args"] = r.Args
	}
	if r.Readonly != nil {
		m["readonly"] = *r.Readonly
	}
	if r.ScanConsistency != "" {
		m["scan_consistency"] = r.ScanConsistency
	}
	if r.Timeout != "" {
		m["timeout"] = r.Timeout
	}

	for name, val := range r.NamedArgs {
		key := name
		if !strings.HasPrefix(key, "$") {
			key = "$" + key
		}
		m[key] = val
	}

	for k, v := range r.Raw {
		m[k] = v
	}

	return json.Marshal(m)
}

// TimeoutMillis formats budgetMillis+slackMillis as the "<N>ms" string the
// request wire format expects for the timeout field: the caller's deadline
// budget plus the service-side slack this client always adds.
func TimeoutMillis(budgetMillis int64, slackMillis int64) string {
	return fmt.Sprintf("%dms", budgetMillis+slackMillis)
}
