/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: transport.go
Description: HTTP transport collaborator. Materializes a bound case into a real
request (path template substitution, query, headers, cookies, JSON body), executes
it with per-option pooled clients and optional rate limiting, and classifies
transport errors as retryable or unrecoverable for the engine.
*/

package execution

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// TransportError wraps a transport-level error with its retryability
// classification. Retryable errors record a step error and let exploration
// continue; unrecoverable ones abort the run.
type TransportError struct {
	Err       error
	retryable bool
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the engine may continue exploring after this
// error.
func (e *TransportError) Retryable() bool { return e.retryable }

// HTTPTransport implements interfaces.Transport over net/http. Clients are
// pooled per distinct option set since options are invariant within a run.
type HTTPTransport struct {
	logger  *logrus.Logger
	limiter *RateLimiter

	clientMu sync.Mutex
	clients  map[clientKey]*http.Client
}

type clientKey struct {
	timeout         time.Duration
	followRedirects bool
	verifySSL       bool
}

// NewHTTPTransport creates a transport. requestsPerSecond <= 0 disables
// rate limiting.
func NewHTTPTransport(requestsPerSecond int, logger *logrus.Logger) *HTTPTransport {
	if logger == nil {
		logger = logrus.New()
	}
	t := &HTTPTransport{
		logger:  logger,
		clients: make(map[clientKey]*http.Client),
	}
	if requestsPerSecond > 0 {
		t.limiter = NewRateLimiter(requestsPerSecond)
	}
	return t
}

// Call executes one case and captures the response. Errors come back
// wrapped in a TransportError carrying the retryability classification.
func (t *HTTPTransport) Call(ctx context.Context, c *interfaces.Case, opts *interfaces.TransportOptions) (*interfaces.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err, retryable: false}
		}
	}

	req, err := t.buildRequest(ctx, c, opts)
	if err != nil {
		return nil, &TransportError{Err: err, retryable: false}
	}

	client := t.clientFor(opts)
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, classify(fmt.Errorf("reading response body: %w", err))
	}

	t.logger.WithFields(logrus.Fields{
		"operation": c.Operation,
		"status":    resp.StatusCode,
		"elapsed":   elapsed,
	}).Debug("request executed")

	return &interfaces.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Elapsed:    elapsed,
	}, nil
}

func (t *HTTPTransport) buildRequest(ctx context.Context, c *interfaces.Case, opts *interfaces.TransportOptions) (*http.Request, error) {
	target, err := buildURL(opts.BaseURL, c)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if c.Body != nil {
		raw, err := json.Marshal(c.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, target, reader)
	if err != nil {
		return nil, err
	}
	if c.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range opts.Headers {
		req.Header.Set(name, value)
	}
	for name, value := range c.Headers {
		req.Header.Set(name, value)
	}
	for name, value := range c.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req, nil
}

// buildURL joins the base URL with the case's path template, substituting
// every {placeholder} with its bound, escaped value.
func buildURL(baseURL string, c *interfaces.Case) (string, error) {
	path := c.Path
	for name, value := range c.PathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	if strings.Contains(path, "{") {
		return "", fmt.Errorf("unbound path parameter in %q", path)
	}

	full := strings.TrimSuffix(baseURL, "/") + path
	parsed, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("building url for %s: %w", c.Operation, err)
	}
	if len(c.Query) > 0 {
		query := parsed.Query()
		for name, value := range c.Query {
			query.Set(name, value)
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func (t *HTTPTransport) clientFor(opts *interfaces.TransportOptions) *http.Client {
	key := clientKey{
		timeout:         opts.Timeout,
		followRedirects: opts.FollowRedirects,
		verifySSL:       opts.VerifySSL,
	}

	t.clientMu.Lock()
	defer t.clientMu.Unlock()
	if client, ok := t.clients[key]; ok {
		return client
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !opts.VerifySSL,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !opts.FollowRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	t.clients[key] = client
	return client
}

// classify decides whether a transport failure leaves the target worth
// further exploration. Timeouts and dropped connections are retryable;
// an unreachable or unresolvable host is not.
func classify(err error) *TransportError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Err: err, retryable: true}
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &TransportError{Err: err, retryable: true}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &TransportError{Err: err, retryable: false}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &TransportError{Err: err, retryable: true}
	default:
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return &TransportError{Err: err, retryable: false}
		}
		return &TransportError{Err: err, retryable: false}
	}
}
