package util

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestGetOAuth2HTTPClient(t *testing.T) {
	_, err := GetOAuth2HTTPClient("")
	assert.Error(t, err)

	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client, err := GetOAuth2HTTPClient("secret")
	require.NoError(t, err)
	defer PutHTTPClient(client)
	_, ok := client.Transport.(*oauth2.Transport)
	require.True(t, ok)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "Bearer secret", header)
}

func TestWrapRetryable(t *testing.T) {
	t.Run("NoRetriesKeepsTransport", func(t *testing.T) {
		client := GetHTTPClient()
		defer PutHTTPClient(client)

		client = WrapRetryable(client, NewDefaultHTTPRetryConf(0))
		_, ok := client.Transport.(*http.Transport)
		assert.True(t, ok)
	})
	t.Run("RetriesServerErrors", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		conf := NewDefaultHTTPRetryConf(5)
		conf.BaseDelay = time.Millisecond
		conf.MaxDelay = 5 * time.Millisecond
		client := WrapRetryable(GetHTTPClient(), conf)
		defer PutHTTPClient(client)
		_, ok := client.Transport.(*rehttp.Transport)
		require.True(t, ok)

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	})
}

func TestPutHTTPClient(t *testing.T) {
	client := WrapRetryable(GetHTTPClient(), NewDefaultHTTPRetryConf(2))
	client.Timeout = time.Second
	PutHTTPClient(client)
	_, ok := client.Transport.(*http.Transport)
	assert.True(t, ok, "retrying transport is stripped")
	assert.Equal(t, httpClientTimeout, client.Timeout)

	for _, token := range []string{"first", "second"} {
		client, err := GetOAuth2HTTPClient(token)
		require.NoError(t, err)
		transport, ok := client.Transport.(*oauth2.Transport)
		require.True(t, ok)
		tok, err := transport.Source.Token()
		require.NoError(t, err)
		assert.Equal(t, token, tok.AccessToken, "clients are never shared across tokens")
		PutHTTPClient(WrapRetryable(client, NewDefaultHTTPRetryConf(1)))
	}

	stray := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, nil })}
	assert.NotPanics(t, func() { PutHTTPClient(stray) })
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
