package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned when the upstream breaker rejects the call.
	ErrCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Upstream string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status code %d: %s", e.Upstream, e.Code, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status code %d", e.Upstream, e.Code)
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// NewBreaker returns the circuit breaker settings shared by all upstreams.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
}

// Upstream bundles the HTTP client and circuit breaker of one remote API.
type Upstream struct {
	Name    string
	Client  *http.Client
	Circuit *gobreaker.CircuitBreaker
}

// NewUpstream creates an Upstream with its own breaker.
func NewUpstream(name string, client *http.Client) *Upstream {
	return &Upstream{
		Name:    name,
		Client:  client,
		Circuit: NewBreaker(name),
	}
}

// Call runs fn through the circuit breaker. Errors for which trips reports
// false are returned to the caller without counting as breaker failures.
// An open breaker yields ErrCircuitOpen.
func (u *Upstream) Call(fn func() error, trips func(error) bool) error {
	var passthrough error
	_, err := u.Circuit.Execute(func() (interface{}, error) {
		callErr := fn()
		if callErr != nil && !trips(callErr) {
			passthrough = callErr
			return nil, nil
		}
		return nil, callErr
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s: %w: %v", u.Name, ErrCircuitOpen, err)
		}
		return err
	}
	return passthrough
}

// TripsOnStatus reports whether an upstream answering with code is unhealthy.
// Code 0 stands for a transport failure.
func TripsOnStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

// Do executes the request through the circuit breaker.
//
// Transport errors, 429 and 5xx count as breaker failures. Any other non-2xx
// response is returned as a *StatusError without tripping the breaker, so
// that expected answers such as 404 stay cheap. On success the caller owns
// the response body.
func (u *Upstream) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if u.Client == nil {
		return nil, errNoHTTPClient
	}
	req = req.WithContext(ctx)

	var resp *http.Response
	err := u.Call(func() error {
		r, err := u.Client.Do(req)
		if err != nil {
			// url.Error embeds the full URL, API keys included.
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				return fmt.Errorf("%s: %s request: %w", u.Name, req.Method, urlErr.Err)
			}
			return err
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			return newStatusError(u.Name, r)
		}
		resp = r
		return nil
	}, func(err error) bool {
		return TripsOnStatus(StatusCode(err))
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

const maxErrorBody = 512

// newStatusError drains and closes the response body.
func newStatusError(upstream string, resp *http.Response) *StatusError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Upstream: upstream, Code: resp.StatusCode, Body: string(body)}
}
