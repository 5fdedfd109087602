package common

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestUpstreamDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	u := NewUpstream("test", srv.Client())
	resp, err := u.Do(context.Background(), newRequest(t, srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestUpstreamDo_ClientErrorDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":"404","message":"city not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	u := NewUpstream("test", srv.Client())
	for i := 0; i < 10; i++ {
		_, err := u.Do(context.Background(), newRequest(t, srv.URL))
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, StatusCode(err))
	}
	assert.Equal(t, gobreaker.StateClosed, u.Circuit.State())
}

func TestUpstreamDo_ServerErrorsOpenBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	u := NewUpstream("test", srv.Client())
	for i := 0; i < 6; i++ {
		_, err := u.Do(context.Background(), newRequest(t, srv.URL))
		require.Error(t, err)
		assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	}

	_, err := u.Do(context.Background(), newRequest(t, srv.URL))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 6, calls)
}

func TestUpstreamDo_NoClient(t *testing.T) {
	u := &Upstream{Name: "test", Circuit: NewBreaker("test")}
	_, err := u.Do(context.Background(), newRequest(t, "http://example.invalid"))
	require.Error(t, err)
}

func TestStatusCode_NonStatusError(t *testing.T) {
	assert.Equal(t, 0, StatusCode(errors.New("boom")))
	assert.Equal(t, 0, StatusCode(nil))
}

func TestUpstreamCall_PassthroughErrorsKeepBreakerClosed(t *testing.T) {
	u := NewUpstream("test", nil)
	notFound := errors.New("no such model")

	for i := 0; i < 10; i++ {
		err := u.Call(func() error { return notFound }, func(error) bool { return false })
		assert.Equal(t, notFound, err)
	}
	assert.Equal(t, gobreaker.StateClosed, u.Circuit.State())
}

func TestUpstreamCall_TrippingErrorsOpenBreaker(t *testing.T) {
	u := NewUpstream("test", nil)
	calls := 0
	fail := func() error {
		calls++
		return errors.New("overloaded")
	}

	for i := 0; i < 6; i++ {
		assert.EqualError(t, u.Call(fail, func(error) bool { return true }), "overloaded")
	}

	err := u.Call(fail, func(error) bool { return true })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 6, calls)
}

func TestTripsOnStatus(t *testing.T) {
	assert.True(t, TripsOnStatus(0))
	assert.True(t, TripsOnStatus(http.StatusTooManyRequests))
	assert.True(t, TripsOnStatus(http.StatusServiceUnavailable))
	assert.False(t, TripsOnStatus(http.StatusNotFound))
	assert.False(t, TripsOnStatus(http.StatusUnauthorized))
}
