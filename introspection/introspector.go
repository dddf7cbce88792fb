/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package introspection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-tokenguard/internal/authutil"
	"github.com/acronis/go-tokenguard/internal/metrics"
)

// EndpointPath is a path of the introspection endpoint relative to the authorization server URL.
const EndpointPath = "/oauth/introspect"

// DefaultRequestTimeout is a default hard timeout for the introspection request.
const DefaultRequestTimeout = authutil.DefaultHTTPRequestTimeout

// maxErrorBodySize limits how much of a non-200 response body is kept for diagnostics.
const maxErrorBodySize = 4096

// IntrospectorOpts is a set of options for creating Introspector.
type IntrospectorOpts struct {
	// AuthURL is a base URL of the authorization server. Required.
	AuthURL string

	// ClientID and ClientSecret are used for HTTP Basic authentication on the introspection endpoint. Required.
	ClientID     string
	ClientSecret string

	// HTTPClient is an HTTP client for doing requests to the introspection endpoint.
	// If it's not set, the client without retries and with RequestTimeout is created.
	HTTPClient *http.Client

	// RequestTimeout is a hard timeout for the introspection request.
	// When it expires, the in-flight request is canceled.
	// DefaultRequestTimeout is used if it's not set.
	RequestTimeout time.Duration

	// Logger is a logger for logging errors and debug information.
	Logger log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// It allows distinguishing metrics from different instances of the same library.
	PrometheusLibInstanceLabel string
}

// Introspector does token introspection via the authorization server.
type Introspector struct {
	endpointURL    string
	clientID       string
	clientSecret   string
	httpClient     *http.Client
	requestTimeout time.Duration
	logger         log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

type introspectionRequest struct {
	AccessToken string `json:"access_token"`
}

// NewIntrospector creates a new Introspector for the given authorization server and client credentials.
func NewIntrospector(authURL, clientID, clientSecret string) (*Introspector, error) {
	return NewIntrospectorWithOpts(IntrospectorOpts{AuthURL: authURL, ClientID: clientID, ClientSecret: clientSecret})
}

// NewIntrospectorWithOpts creates a new Introspector with the given options.
// See IntrospectorOpts for more details.
func NewIntrospectorWithOpts(opts IntrospectorOpts) (*Introspector, error) {
	if opts.AuthURL == "" {
		return nil, fmt.Errorf("authorization server URL is required")
	}
	if _, err := url.ParseRequestURI(opts.AuthURL); err != nil {
		return nil, fmt.Errorf("parse authorization server URL: %w", err)
	}
	if opts.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = authutil.MakeDefaultHTTPClient(opts.RequestTimeout)
	}

	return &Introspector{
		endpointURL:    strings.TrimSuffix(opts.AuthURL, "/") + EndpointPath,
		clientID:       opts.ClientID,
		clientSecret:   opts.ClientSecret,
		httpClient:     opts.HTTPClient,
		requestTimeout: opts.RequestTimeout,
		logger:         authutil.PrepareLogger(opts.Logger),
		promMetrics:    metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceTokenIntrospector),
	}, nil
}

// EndpointURL returns the URL of the introspection endpoint.
func (i *Introspector) EndpointURL() string {
	return i.endpointURL
}

// IntrospectToken introspects the given token.
// Non-200 responses are returned as *UnexpectedResponseError,
// all other failures (network, timeout, malformed response) wrap ErrIntrospectionFailed.
func (i *Introspector) IntrospectToken(ctx context.Context, token string) (Result, error) {
	reqBody, err := json.Marshal(introspectionRequest{AccessToken: token})
	if err != nil {
		return Result{}, fmt.Errorf("%w: marshal request body: %w", ErrIntrospectionFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, i.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpointURL, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, fmt.Errorf("%w: new request: %w", ErrIntrospectionFailed, err)
	}
	req.SetBasicAuth(i.clientID, i.clientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := i.httpClient.Do(req)
	elapsed := time.Since(startTime)
	if err != nil {
		if isTimeoutError(ctx, err) {
			i.promMetrics.ObserveHTTPClientRequest(http.MethodPost, i.endpointURL, 0, elapsed, metrics.HTTPRequestErrorTimeout)
			return Result{}, fmt.Errorf("%w: %w: do request: %w", ErrIntrospectionFailed, ErrIntrospectionTimeout, err)
		}
		i.promMetrics.ObserveHTTPClientRequest(http.MethodPost, i.endpointURL, 0, elapsed, metrics.HTTPRequestErrorDo)
		return Result{}, fmt.Errorf("%w: do request: %w", ErrIntrospectionFailed, err)
	}
	defer func() {
		if closeBodyErr := resp.Body.Close(); closeBodyErr != nil {
			i.logger.Error(fmt.Sprintf("closing response body error for POST %s", i.endpointURL),
				log.Error(closeBodyErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		i.promMetrics.ObserveHTTPClientRequest(
			http.MethodPost, i.endpointURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorUnexpectedStatusCode)
		respErr := &UnexpectedResponseError{
			StatusCode:      resp.StatusCode,
			Status:          resp.Status,
			WWWAuthenticate: resp.Header.Get("WWW-Authenticate"),
		}
		// Body is best-effort diagnostics.
		if body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize)); readErr == nil {
			respErr.Body = strings.TrimSpace(string(body))
		}
		return Result{}, respErr
	}

	var res Result
	if err = json.NewDecoder(resp.Body).Decode(&res); err != nil {
		i.promMetrics.ObserveHTTPClientRequest(
			http.MethodPost, i.endpointURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorDecodeBody)
		return Result{}, fmt.Errorf("%w: decode response body json for POST %s (Content-Type: %s): %w",
			ErrIntrospectionFailed, i.endpointURL, resp.Header.Get("Content-Type"), err)
	}

	i.promMetrics.ObserveHTTPClientRequest(http.MethodPost, i.endpointURL, resp.StatusCode, elapsed, "")
	i.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc(fmt.Sprintf("token was introspected (active: %t)", res.Active))
	})
	return res, nil
}

func isTimeoutError(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
