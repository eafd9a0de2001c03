// Package fetch drives the data-extraction phase of a run: it fans chunk
// fetches out under a concurrency cap and streams each response through an
// incremental XML row extractor into the sink.
package fetch

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const (
	// MaxConcurrent bounds the number of in-flight chunk fetches.
	MaxConcurrent = 4

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout = 30 * time.Second

	// ReadTimeout bounds the full request/response exchange. Responses can
	// be large and the service is slow, hence the generous value.
	ReadTimeout = 300 * time.Second
)

// Doer issues a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient returns a client with the extractor's timeout policy. The
// endpoint presents a certificate from a private CA, so chain verification
// is disabled.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ReadTimeout,
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: ConnectTimeout}).DialContext,
			TLSHandshakeTimeout: ConnectTimeout,
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		},
	}
}
