package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetch(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","results":[]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/api/1/news", APIKey: "secret", Country: "gb", Language: "fr"}, nil)
	res := c.Fetch(context.Background())

	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"success","results":[]}`, string(res.Body))

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/1/news", got.URL.Path)
	assert.Equal(t, "secret", got.URL.Query().Get("apikey"))
	assert.Equal(t, "gb", got.URL.Query().Get("country"))
	assert.Equal(t, "fr", got.URL.Query().Get("language"))
}

func TestClientDefaults(t *testing.T) {
	c := NewClient(ClientConfig{APIKey: "k"}, nil)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultCountry, c.country)
	assert.Equal(t, DefaultLanguage, c.language)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}

func TestClientMissingKeyMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	res := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "  "}, nil).Fetch(context.Background())

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, ErrMissingAPIKey)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":"error"}`))
	}))
	defer srv.Close()

	res := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"}, nil).Fetch(context.Background())

	assert.False(t, res.OK())
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, `{"status":"error"}`, string(res.Body))

	var terr *TransportError
	require.True(t, errors.As(res.Err, &terr))
	assert.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
	assert.Contains(t, terr.Error(), "429")
}

func TestClientTransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewClient(ClientConfig{BaseURL: url, APIKey: "topsecret"}, nil).Fetch(context.Background())

	var terr *TransportError
	require.True(t, errors.As(res.Err, &terr))
	assert.Zero(t, terr.StatusCode)
	assert.NotContains(t, terr.Error(), "topsecret")
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond}, nil)
	res := c.Fetch(context.Background())

	assert.False(t, res.OK())
	var terr *TransportError
	assert.True(t, errors.As(res.Err, &terr))
}
