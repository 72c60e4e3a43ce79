/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: transport_test.go
Description: Unit tests for the HTTP transport: path template substitution, query
and header propagation, redirect handling, body marshaling, and transport error
classification.
*/

package execution_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/kleascm/akaylee-explorer/pkg/execution"
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultOptions(baseURL string) *interfaces.TransportOptions {
	return &interfaces.TransportOptions{
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		VerifySSL: true,
	}
}

func TestCallSubstitutesPathAndQuery(t *testing.T) {
	var seen *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id": "u1"}`)
	}))
	defer server.Close()

	transport := execution.NewHTTPTransport(0, nil)
	c := &interfaces.Case{
		ID:         "c1",
		Operation:  "GET /users/{userId}",
		Method:     "GET",
		Path:       "/users/{userId}",
		PathParams: map[string]string{"userId": "u 1"},
		Query:      map[string]string{"expand": "profile"},
		Headers:    map[string]string{"X-Case": "c1"},
	}

	response, err := transport.Call(context.Background(), c, defaultOptions(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 200, response.StatusCode)
	assert.JSONEq(t, `{"id": "u1"}`, string(response.Body))
	assert.Greater(t, response.Elapsed, time.Duration(0))

	require.NotNil(t, seen)
	assert.Equal(t, "/users/u 1", seen.URL.Path)
	assert.Equal(t, "profile", seen.URL.Query().Get("expand"))
	assert.Equal(t, "c1", seen.Header.Get("X-Case"))
}

func TestCallSendsJSONBody(t *testing.T) {
	var contentType string
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	transport := execution.NewHTTPTransport(0, nil)
	c := &interfaces.Case{
		ID:        "c1",
		Operation: "POST /users",
		Method:    "POST",
		Path:      "/users",
		Body:      map[string]interface{}{"name": "ada"},
	}

	response, err := transport.Call(context.Background(), c, defaultOptions(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 201, response.StatusCode)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, map[string]interface{}{"name": "ada"}, received)
}

func TestCallCaseHeadersOverrideOptions(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	transport := execution.NewHTTPTransport(0, nil)
	opts := defaultOptions(server.URL)
	opts.Headers = map[string]string{"Authorization": "Bearer shared"}
	c := &interfaces.Case{
		ID: "c1", Operation: "GET /me", Method: "GET", Path: "/me",
		Headers: map[string]string{"Authorization": "Bearer case"},
	}

	_, err := transport.Call(context.Background(), c, opts)
	require.NoError(t, err)
	assert.Equal(t, "Bearer case", auth)
}

func TestCallRedirectHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := execution.NewHTTPTransport(0, nil)
	c := &interfaces.Case{ID: "c1", Operation: "GET /old", Method: "GET", Path: "/old"}

	// Redirects surface as-is by default.
	response, err := transport.Call(context.Background(), c, defaultOptions(server.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, response.StatusCode)

	// Opting in follows them.
	opts := defaultOptions(server.URL)
	opts.FollowRedirects = true
	response, err = transport.Call(context.Background(), c, opts)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)
}

func TestCallUnboundPathParameter(t *testing.T) {
	transport := execution.NewHTTPTransport(0, nil)
	c := &interfaces.Case{
		ID: "c1", Operation: "GET /users/{userId}", Method: "GET", Path: "/users/{userId}",
	}

	_, err := transport.Call(context.Background(), c, defaultOptions("http://api.test"))
	require.Error(t, err)

	var classified *execution.TransportError
	require.ErrorAs(t, err, &classified)
	assert.False(t, classified.Retryable())
	assert.Contains(t, err.Error(), "unbound path parameter")
}

func TestCallConnectionRefusedIsUnrecoverable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	transport := execution.NewHTTPTransport(0, nil)
	c := &interfaces.Case{ID: "c1", Operation: "GET /x", Method: "GET", Path: "/x"}

	_, err := transport.Call(context.Background(), c, defaultOptions(server.URL))
	require.Error(t, err)

	var classified *execution.TransportError
	require.ErrorAs(t, err, &classified)
	assert.False(t, classified.Retryable())
}

func TestCallTimeoutIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	transport := execution.NewHTTPTransport(0, nil)
	opts := defaultOptions(server.URL)
	opts.Timeout = 20 * time.Millisecond
	c := &interfaces.Case{ID: "c1", Operation: "GET /slow", Method: "GET", Path: "/slow"}

	_, err := transport.Call(context.Background(), c, opts)
	require.Error(t, err)

	var classified *execution.TransportError
	require.ErrorAs(t, err, &classified)
	assert.True(t, classified.Retryable())
}

func TestTransportErrorWrapping(t *testing.T) {
	causes := []error{
		context.DeadlineExceeded,
		syscall.ECONNRESET,
		io.ErrUnexpectedEOF,
		io.EOF,
		fmt.Errorf("read: %w", syscall.ECONNRESET),
	}
	for _, cause := range causes {
		wrapped := &execution.TransportError{Err: cause}
		assert.Equal(t, cause.Error(), wrapped.Error())
		assert.ErrorIs(t, wrapped, cause)
	}

	unrecoverable := &execution.TransportError{Err: errors.New("no such host")}
	assert.False(t, unrecoverable.Retryable())
}

func TestRateLimiterWait(t *testing.T) {
	limiter := execution.NewRateLimiter(2)
	defer limiter.Close()

	ctx := context.Background()
	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))

	// Bucket drained: a short deadline fails, a longer one sees a refill.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(short))

	long, cancelLong := context.WithTimeout(ctx, 2*time.Second)
	defer cancelLong()
	assert.NoError(t, limiter.Wait(long))
}
