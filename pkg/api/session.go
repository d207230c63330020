package api

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/akeil/notemd"
	"github.com/akeil/notemd/internal/logging"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 5
	DefaultMaxWait     = 2 * time.Minute
	baseDelay          = 500 * time.Millisecond
	maxDelay           = 30 * time.Second
	// requestsPerSecond is the proactive throttle for the notebook
	// service; it keeps concurrent workers below the documented limits.
	requestsPerSecond = 4
)

// Session executes authenticated HTTP requests against the notebook
// service with retry and backoff.
//
// It knows nothing about notebook semantics. A Session is safe for
// concurrent use; the rate-limit state is the only shared mutable state
// and is updated under a mutex so that concurrent callers back off
// together when the service reports throttling.
type Session struct {
	client      *http.Client
	tokens      oauth2.TokenSource
	limiter     *rate.Limiter
	maxAttempts int
	maxWait     time.Duration
	backoffBase time.Duration

	mu        sync.Mutex
	retryHint time.Time
}

// NewSession creates a Session that authenticates with tokens from the
// given source and uses the default retry policy.
func NewSession(tokens oauth2.TokenSource) *Session {
	return &Session{
		client:      &http.Client{},
		tokens:      tokens,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		maxAttempts: DefaultMaxAttempts,
		maxWait:     DefaultMaxWait,
		backoffBase: baseDelay,
	}
}

// WithRetry changes the retry budget: the maximum number of attempts per
// request and the maximum total time spent waiting between attempts.
func (s *Session) WithRetry(maxAttempts int, maxWait time.Duration) *Session {
	s.maxAttempts = maxAttempts
	s.maxWait = maxWait
	return s
}

// attemptState is the per-request retry state machine:
// pending -> attempting -> {succeeded, backoff -> attempting, exhausted}.
type attemptState int

const (
	statePending attemptState = iota
	stateAttempting
	stateBackoff
	stateSucceeded
	stateExhausted
)

// Get executes a GET request with retry and backoff.
//
// Connection failures, timeouts and throttling or transient server
// responses (408, 429, 5xx) are retried with exponential backoff and
// jitter, honoring a server-specified Retry-After hint. Client errors
// surface immediately as typed errors: 401/403 as Unauthenticated,
// 404 as NotFound. When the retry budget is used up, the error is
// TransportExhausted.
//
// The caller is responsible for closing the response body.
func (s *Session) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	var (
		res     *http.Response
		lastErr error
		waited  time.Duration
		attempt int
	)

	state := statePending
	for {
		switch state {
		case statePending:
			state = stateAttempting

		case stateAttempting:
			if attempt >= s.maxAttempts {
				state = stateExhausted
				continue
			}
			attempt++

			err := s.waitTurn(ctx)
			if err != nil {
				return nil, err
			}

			res, lastErr = s.attempt(ctx, url, header)
			if lastErr == nil {
				state = stateSucceeded
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !retryable(lastErr) {
				return nil, lastErr
			}
			state = stateBackoff

		case stateBackoff:
			delay := s.backoff(attempt)
			if waited+delay > s.maxWait {
				state = stateExhausted
				continue
			}
			logging.Debug("retry %v/%v for %v in %v", attempt, s.maxAttempts, url, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			waited += delay
			state = stateAttempting

		case stateSucceeded:
			return res, nil

		case stateExhausted:
			return nil, notemd.NewTransportExhausted(attempt, "%v: %v", url, lastErr)
		}
	}
}

// attempt performs a single request and classifies the outcome.
func (s *Session) attempt(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	tok, err := s.tokens.Token()
	if err != nil {
		return nil, notemd.NewUnauthenticated("no token available: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("User-Agent", "notemd")

	res, err := s.client.Do(req)
	if err != nil {
		// connection failure or timeout
		return nil, retryableError{err}
	}

	logging.Debug("GET %v returned status %v", url, res.StatusCode)

	err = s.classify(res)
	if err != nil {
		res.Body.Close()
		return nil, err
	}
	return res, nil
}

// classify turns a non-2xx response into the matching error type and
// records the server's retry hint for throttling responses.
func (s *Session) classify(res *http.Response) error {
	code := res.StatusCode

	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return notemd.NewUnauthenticated("got HTTP status %v", code)
	case code == http.StatusNotFound:
		return notemd.NewNotFound("got HTTP status %v", code)
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		if hint := retryAfter(res); hint > 0 {
			s.setRetryHint(time.Now().Add(hint))
		}
		return retryableError{statusError{code}}
	default:
		return statusError{code}
	}
}

// waitTurn blocks until the proactive limiter allows a request and any
// server-specified retry hint has passed.
func (s *Session) waitTurn(ctx context.Context) error {
	err := s.limiter.Wait(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	hint := s.retryHint
	s.mu.Unlock()

	if until := time.Until(hint); until > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(until):
		}
	}
	return nil
}

func (s *Session) setRetryHint(t time.Time) {
	s.mu.Lock()
	if t.After(s.retryHint) {
		s.retryHint = t
	}
	s.mu.Unlock()
}

// backoff computes the wait before the next attempt: exponential with
// jitter, capped, and never shorter than the server's retry hint.
func (s *Session) backoff(attempt int) time.Duration {
	d := s.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			d = maxDelay
			break
		}
	}
	// add up to 50% jitter
	d += time.Duration(rand.Int63n(int64(d)/2 + 1))

	s.mu.Lock()
	hint := s.retryHint
	s.mu.Unlock()
	if until := time.Until(hint); until > d {
		d = until
	}

	return d
}

// retryAfter reads the server's minimum wait from the Retry-After header.
func retryAfter(res *http.Response) time.Duration {
	v := res.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type retryableError struct {
	cause error
}

func (r retryableError) Error() string {
	return r.cause.Error()
}

func (r retryableError) Unwrap() error {
	return r.cause
}

func retryable(err error) bool {
	_, ok := err.(retryableError)
	return ok
}

type statusError struct {
	code int
}

func (s statusError) Error() string {
	return "got HTTP status " + strconv.Itoa(s.code)
}
