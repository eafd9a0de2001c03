// Package auth owns the Energis authentication key for one extraction run.
//
// The remote service rejects a login while the same credentials hold an
// active session elsewhere. That fault is transient: the session expires
// server-side, so the only correct reaction is to wait and retry. All other
// login failures are fatal.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/enerlytics/energis-extractor/internal/metrics"
	"github.com/enerlytics/energis-extractor/internal/soap"
)

var (
	// ErrAuthentication signals a fatal login rejection.
	ErrAuthentication = errors.New("authentication failed")
	// ErrMaxRetries signals that the session-collision retry budget is spent.
	ErrMaxRetries = errors.New("maximum retries reached, unable to authenticate")
)

// sessionConflictFault is the known substring of the fault sentence the
// service emits while the credentials are logged in elsewhere. It is
// matched as a substring because the service embeds it in a full sentence.
const sessionConflictFault = "již v systému přihlášen"

const (
	maxRetries = 5
	// retryDelay waits for the remote session to clear. It is a deliberate
	// fixed delay, not a backoff for transient network errors, and is kept
	// separate from the per-request timeouts.
	retryDelay = 120 * time.Second
)

// Doer issues a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Session performs login with bounded retries and caches the resulting key
// for the duration of a run. Concurrent callers block until the in-flight
// attempt resolves and then share its result.
type Session struct {
	client   Doer
	logger   *logrus.Logger
	username string
	password string
	logonURL string
	debug    bool

	// delay is the wait between collision retries; tests stub it.
	delay func(context.Context) error

	mu  sync.Mutex
	key string
}

// NewSession creates a session against baseURL's logon endpoint.
func NewSession(client Doer, logger *logrus.Logger, username, password, baseURL string, debug bool) *Session {
	return &Session{
		client:   client,
		logger:   logger,
		username: username,
		password: password,
		logonURL: baseURL + "?logon",
		debug:    debug,
		delay: func(ctx context.Context) error {
			select {
			case <-time.After(retryDelay):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// Authenticate returns the cached key or performs a login. At most one
// login attempt is ever in flight; a successful key is reused for the rest
// of the run.
func (s *Session) Authenticate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != "" {
		return s.key, nil
	}

	body, headers := soap.LogonRequest(s.username, s.password)
	if s.debug {
		s.logger.WithField("url", s.logonURL).Debug("logon request")
		s.logger.Debug(soap.MaskSensitiveData(body))
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		key, conflict, err := s.tryLogon(ctx, body, headers)
		if err == nil {
			s.key = key
			s.logger.WithField("key", soap.MaskKeyPrefix(key)).Debug("authentication successful")
			return key, nil
		}
		if !conflict {
			return "", err
		}

		metrics.AuthRetries.Inc()
		s.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    retryDelay.String(),
		}).Warn("user already logged in, waiting before retrying")

		if attempt < maxRetries {
			if err := s.delay(ctx); err != nil {
				return "", err
			}
		}
	}
	return "", ErrMaxRetries
}

// tryLogon performs one logon exchange. The second return value reports
// whether the failure was the retryable session-collision fault.
func (s *Session) tryLogon(ctx context.Context, body string, headers map[string]string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.logonURL, strings.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("%w: reading response: %v", ErrAuthentication, err)
	}

	if fault := soap.FaultText(content); strings.Contains(fault, sessionConflictFault) {
		return "", true, fmt.Errorf("%w: %s", ErrAuthentication, fault)
	}

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("%w: status %d", ErrAuthentication, resp.StatusCode)
	}

	if key := soap.ElementText(content, "key"); key != "" {
		return key, false, nil
	}
	return "", false, fmt.Errorf("%w: no key found in the response", ErrAuthentication)
}
