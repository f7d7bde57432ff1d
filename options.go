package cbanalytics

import (
	"time"

	"github.com/couchbase/gocbanalytics/cbaerr"
	"github.com/couchbase/gocbanalytics/internal/durationfmt"
	"github.com/couchbase/gocbanalytics/internal/httpx"
)

const (
	// defaultQueryTimeout is used when QueryOptions.Timeout is zero.
	defaultQueryTimeout = 75 * time.Second

	// defaultConnectTimeout is used when ClusterOptions.ConnectTimeout is
	// zero.
	defaultConnectTimeout = 10 * time.Second

	// defaultMaxRetryAttempts bounds the retry driver when
	// ClusterOptions.MaxRetryAttempts is zero.
	defaultMaxRetryAttempts = 7

	// serverTimeoutSlack is always added to the caller's deadline budget
	// before it is sent to the server as the request's "timeout" field,
	// per the fixed margin this wire format requires.
	serverTimeoutSlack = 5 * time.Second
)

// Credential supplies HTTP Basic Auth credentials for each request. The
// core treats it as an opaque collaborator: how the username and password
// are sourced (static, rotated, fetched from a secret store) is entirely
// up to the implementation.
type Credential interface {
	Username() string
	Password() []byte
}

// staticCredential is the simplest Credential: a fixed username/password
// pair supplied at construction time.
type staticCredential struct {
	username string
	password []byte
}

// NewCredential creates a Credential from a fixed username and password.
func NewCredential(username, password string) Credential {
	return staticCredential{username: username, password: []byte(password)}
}

func (c staticCredential) Username() string { return c.username }
func (c staticCredential) Password() []byte { return c.password }

// RowDeserializer turns a row's raw JSON fragment into an application
// value. The core never interprets row contents itself; it hands each
// fragment to the deserializer as soon as it is available.
type RowDeserializer interface {
	Deserialize(raw []byte) (interface{}, error)
}

// TrustConfig controls how the client validates the server's TLS
// certificate. The four sources are mutually exclusive; see
// internal/httpx.TrustConfig for the full validation rule.
type TrustConfig = httpx.TrustConfig

// ClusterOptions configures the shared, cluster-scoped pieces of the
// client: the transport, credentials, and defaults every query inherits
// unless it overrides them.
type ClusterOptions struct {
	// Credential authenticates every request. Required.
	Credential Credential

	// ConnectTimeout bounds how long a single attempt's dial and TLS
	// handshake may take before it is abandoned as a connect timeout.
	// Defaults to 10s.
	ConnectTimeout time.Duration

	// QueryTimeout is the default per-query deadline budget used when a
	// QueryOptions does not set its own Timeout. Defaults to 75s.
	QueryTimeout time.Duration

	// MaxRetryAttempts bounds the retry driver. Defaults to 7.
	MaxRetryAttempts int

	// Trust configures certificate verification. The zero value trusts
	// the system certificate pool.
	Trust TrustConfig

	// Logger receives diagnostic messages. Defaults to a no-op logger.
	Logger Logger

	// Recorder receives attempt and retry metrics. Defaults to a no-op
	// recorder.
	Recorder Recorder
}

// Validate reports an InvalidArgument error for a negative timeout or a
// TrustConfig with more than one source configured.
func (o ClusterOptions) Validate() error {
	if o.Credential == nil {
		return cbaerr.NewInvalidArgument("ClusterOptions.Credential is required")
	}
	if o.ConnectTimeout < 0 {
		return cbaerr.NewInvalidArgument("ConnectTimeout must not be negative")
	}
	if o.QueryTimeout < 0 {
		return cbaerr.NewInvalidArgument("QueryTimeout must not be negative")
	}
	if o.MaxRetryAttempts < 0 {
		return cbaerr.NewInvalidArgument("MaxRetryAttempts must not be negative")
	}
	if err := o.Trust.Validate(); err != nil {
		return cbaerr.NewInvalidArgument("%v", err)
	}
	return nil
}

func (o ClusterOptions) connectTimeoutOrDefault() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return defaultConnectTimeout
}

func (o ClusterOptions) queryTimeoutOrDefault() time.Duration {
	if o.QueryTimeout > 0 {
		return o.QueryTimeout
	}
	return defaultQueryTimeout
}

func (o ClusterOptions) maxRetryAttemptsOrDefault() int {
	if o.MaxRetryAttempts > 0 {
		return o.MaxRetryAttempts
	}
	return defaultMaxRetryAttempts
}

func (o ClusterOptions) loggerOrDefault() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return noopLogger{}
}

func (o ClusterOptions) recorderOrDefault() Recorder {
	if o.Recorder != nil {
		return o.Recorder
	}
	return noopRecorder{}
}

// ApplyParams maps already-extracted connection-string query parameters
// onto o. The recognized keys are:
//
//	timeout.connect_timeout                           duration
//	timeout.query_timeout                             duration
//	security.trust_only_pem_file                      path
//	security.disable_server_certificate_verification  true|false|1|0
//
// Durations use the same "Go syntax" grammar the server reports metrics
// in. Any other key is logged at Warn and ignored. Splitting the
// connection string itself is the caller's concern; this only interprets
// the resulting key/value pairs.
func (o *ClusterOptions) ApplyParams(params map[string]string, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}
	for k, v := range params {
		switch k {
		case "timeout.connect_timeout":
			d, err := durationfmt.Parse(v)
			if err != nil {
				return cbaerr.NewInvalidArgument("invalid %s: %v", k, err)
			}
			o.ConnectTimeout = d
		case "timeout.query_timeout":
			d, err := durationfmt.Parse(v)
			if err != nil {
				return cbaerr.NewInvalidArgument("invalid %s: %v", k, err)
			}
			o.QueryTimeout = d
		case "security.trust_only_pem_file":
			o.Trust.PEMFilePath = v
		case "security.disable_server_certificate_verification":
			switch v {
			case "true", "1":
				o.Trust.InsecureSkipVerify = true
			case "false", "0":
				o.Trust.InsecureSkipVerify = false
			default:
				return cbaerr.NewInvalidArgument("invalid %s: %q is not a boolean", k, v)
			}
		default:
			logger.Warnf("ignoring unknown connection string parameter %q", k)
		}
	}
	return nil
}

// QueryOptions configures a single query execution, overriding the
// cluster's defaults where set.
type QueryOptions struct {
	// NamedParameters binds "$name" placeholders in Statement.
	NamedParameters map[string]interface{}

	// PositionalParameters binds "$1", "$2", ... placeholders in
	// Statement, in order.
	PositionalParameters []interface{}

	// QueryContext sets the query_context field, e.g.
	// "default:`bucket`.`scope`".
	QueryContext string

	// Readonly, when non-nil, asserts the statement performs no
	// mutations; the server may use this as an optimization hint or a
	// correctness check depending on configuration.
	Readonly *bool

	// ScanConsistency controls read-your-own-writes behavior.
	ScanConsistency string

	// Priority requests priority scheduling on the server.
	Priority bool

	// Timeout overrides the cluster's default query timeout for this
	// query only.
	Timeout time.Duration

	// Deserializer decodes each row fragment. Required.
	Deserializer RowDeserializer

	// Raw carries caller-supplied keys merged directly into the request
	// body, last, so they can override anything this type would
	// otherwise set.
	Raw map[string]interface{}
}

// Validate reports an InvalidArgument error for a negative timeout.
func (o QueryOptions) Validate() error {
	if o.Timeout < 0 {
		return cbaerr.NewInvalidArgument("Timeout must not be negative")
	}
	if o.Deserializer == nil {
		return cbaerr.NewInvalidArgument("Deserializer is required")
	}
	return nil
}
