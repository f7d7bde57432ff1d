// Package httpx configures the HTTP transport used to issue query attempts
// against the analytics service: TLS 1.3 minimum, a single keep-alive
// connection pool shared by every query, and the certificate trust
// sources the client supports.
package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// TrustConfig describes where the client should source its certificate
// trust from. Exactly one of CapellaBundle, PEMFilePath, PEMString or
// Certificates may be set; InsecureSkipVerify disables verification
// entirely and is meant for development only.
type TrustConfig struct {
	// CapellaBundle, when true, trusts the bundled Capella root CAs in
	// addition to the system pool. The bundle (capellaRootsPEM) is empty
	// in this package, so NewTransport returns an error when this is set.
	CapellaBundle bool

	// PEMFilePath, when non-empty, loads additional trusted certificates
	// from a PEM-encoded file on disk.
	PEMFilePath string

	// PEMString, when non-empty, loads additional trusted certificates from
	// a PEM-encoded string.
	PEMString string

	// Certificates is an explicit list of trusted certificates.
	Certificates []*x509.Certificate

	// InsecureSkipVerify disables server certificate and hostname
	// verification. Development use only.
	InsecureSkipVerify bool
}

// sourceCount returns how many of the mutually exclusive trust sources are
// set.
func (t TrustConfig) sourceCount() int {
	n := 0
	if t.CapellaBundle {
		n++
	}
	if t.PEMFilePath != "" {
		n++
	}
	if t.PEMString != "" {
		n++
	}
	if len(t.Certificates) > 0 {
		n++
	}
	return n
}

// Validate reports an error if more than one trust source is configured.
func (t TrustConfig) Validate() error {
	if t.sourceCount() > 1 {
		return fmt.Errorf("at most one of CapellaBundle, PEMFilePath, PEMString or Certificates may be set")
	}
	return nil
}

func (t TrustConfig) certPool() (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	switch {
	case t.CapellaBundle:
		if ok := pool.AppendCertsFromPEM([]byte(capellaRootsPEM)); !ok {
			return nil, fmt.Errorf("no valid PEM certs found in the bundled Capella root bundle")
		}
	case t.PEMFilePath != "":
		certs, err := os.ReadFile(t.PEMFilePath)
		if err != nil {
			return nil, err
		}
		if ok := pool.AppendCertsFromPEM(certs); !ok {
			return nil, fmt.Errorf("no valid PEM certs found in %s", t.PEMFilePath)
		}
	case t.PEMString != "":
		if ok := pool.AppendCertsFromPEM([]byte(t.PEMString)); !ok {
			return nil, fmt.Errorf("no valid PEM certs found in the provided PEM string")
		}
	case len(t.Certificates) > 0:
		for _, c := range t.Certificates {
			pool.AddCert(c)
		}
	}

	return pool, nil
}

// capellaRootsPEM is the bundled Capella root CA set. It is an empty
// constant: no certificates are bundled, so certPool fails with a
// "no valid PEM certs" error whenever CapellaBundle is selected.
const capellaRootsPEM = ""

// NewTransport builds an *http.Transport that offers TLSv1.3 or newer only,
// keeps connections alive across attempts, and fails the dial phase after
// connectTimeout so a stalled TCP or TLS handshake surfaces as a distinct
// error the attempt executor can classify as a connect timeout.
func NewTransport(serverName string, trust TrustConfig, connectTimeout time.Duration) (*http.Transport, error) {
	if err := trust.Validate(); err != nil {
		return nil, err
	}

	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   connectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: trust.InsecureSkipVerify,
		ServerName:         serverName,
	}
	if !trust.InsecureSkipVerify {
		pool, err := trust.certPool()
		if err != nil {
			return nil, err
		}
		tlsCfg.RootCAs = pool
	}
	tr.TLSClientConfig = tlsCfg

	tr.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return tr, nil
}

// RequestExecutor is the minimal interface the attempt executor needs from
// an HTTP client. *http.Client satisfies it.
type RequestExecutor interface {
	Do(req *http.Request) (*http.Response, error)
}
