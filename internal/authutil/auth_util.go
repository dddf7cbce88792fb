/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authutil

import (
	"context"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/httpclient"
	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-tokenguard/internal/libinfo"
)

// DefaultHTTPRequestTimeout is a hard limit for a single request to the authorization server.
const DefaultHTTPRequestTimeout = 5 * time.Second

// DefaultLogger is used when no logger is provided or the logger provider returns nil.
var DefaultLogger = log.NewDisabledLogger()

// MakeDefaultHTTPClient creates an HTTP client for doing requests to the authorization server.
// Requests are never retried, the caller decides how to handle a failure.
func MakeDefaultHTTPClient(reqTimeout time.Duration) *http.Client {
	if reqTimeout == 0 {
		reqTimeout = DefaultHTTPRequestTimeout
	}
	var tr http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	tr = httpclient.NewUserAgentRoundTripper(tr, libinfo.UserAgent())
	return &http.Client{Timeout: reqTimeout, Transport: tr}
}

func PrepareLogger(logger log.FieldLogger) log.FieldLogger {
	if logger == nil {
		return DefaultLogger
	}
	return log.NewPrefixedLogger(logger, libinfo.LogPrefix())
}

// GetLoggerFromProvider returns a logger from the provider or the default one.
func GetLoggerFromProvider(ctx context.Context, provider func(ctx context.Context) log.FieldLogger) log.FieldLogger {
	if provider == nil {
		return DefaultLogger
	}
	if logger := provider(ctx); logger != nil {
		return logger
	}
	return DefaultLogger
}
