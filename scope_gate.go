/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokenguard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"

	"github.com/acronis/go-tokenguard/internal/authutil"
	"github.com/acronis/go-tokenguard/internal/metrics"
	"github.com/acronis/go-tokenguard/scope"
)

// MatchScope reports whether at least one of the required scopes is granted to the access token of the request.
// It must be called after the RequireAccessToken middleware populated the request context,
// otherwise ErrScopeNotPopulated is returned. Missing or blank required scopes cause scope.ErrInvalidScope.
// Both errors are programming mistakes rather than authorization failures.
func MatchScope(r *http.Request, required ...string) (bool, error) {
	requiredScope, err := scope.Normalize(required)
	if err != nil {
		return false, fmt.Errorf("match scope: %w", err)
	}
	granted, ok := GetTokenScopeFromContext(r.Context())
	if !ok {
		return false, ErrScopeNotPopulated
	}
	return scope.Match(granted, requiredScope), nil
}

// ScopeGateOption is an option for RequireScopeForAPIRoute.
type ScopeGateOption func(options *scopeGateOptions)

type scopeGateOptions struct {
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// WithScopeGateLoggerProvider is an option to set a logger provider for the route-level scope gate.
func WithScopeGateLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) ScopeGateOption {
	return func(options *scopeGateOptions) {
		options.loggerProvider = loggerProvider
	}
}

// WithScopeGatePrometheusLibInstanceLabel is an option to set a label for Prometheus metrics of the scope gate.
func WithScopeGatePrometheusLibInstanceLabel(label string) ScopeGateOption {
	return func(options *scopeGateOptions) {
		options.prometheusLibInstanceLabel = label
	}
}

type scopeGateHandler struct {
	next           http.Handler
	errorDomain    string
	requiredScope  []string
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

// RequireScopeForAPIRoute creates a route-level middleware that requires at least one of the given scopes
// to be granted to the access token. It relies on the request context populated by RequireAccessToken
// and responds with 403 when the scope doesn't match or the context has no scope data.
// The error is returned if no scopes are specified or any of them is blank.
func RequireScopeForAPIRoute(errorDomain string, required []string, opts ...ScopeGateOption) (func(next http.Handler) http.Handler, error) {
	requiredScope, err := scope.Normalize(required)
	if err != nil {
		return nil, fmt.Errorf("require scope for API route: %w", err)
	}
	options := scopeGateOptions{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}
	promMetrics := metrics.GetPrometheusMetrics(options.prometheusLibInstanceLabel, metrics.SourceHTTPMiddleware)
	return func(next http.Handler) http.Handler {
		return &scopeGateHandler{
			next:           next,
			errorDomain:    errorDomain,
			requiredScope:  requiredScope,
			loggerProvider: options.loggerProvider,
			promMetrics:    promMetrics,
		}
	}, nil
}

// MustRequireScopeForAPIRoute does the same as RequireScopeForAPIRoute but panics on error.
func MustRequireScopeForAPIRoute(errorDomain string, required []string, opts ...ScopeGateOption) func(next http.Handler) http.Handler {
	mw, err := RequireScopeForAPIRoute(errorDomain, required, opts...)
	if err != nil {
		panic(err)
	}
	return mw
}

func (h *scopeGateHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := authutil.GetLoggerFromProvider(r.Context(), h.loggerProvider)

	granted, ok := GetTokenScopeFromContext(r.Context())
	if !ok {
		// Fail closed: the access token middleware must run before the gate.
		logger.Error("scope gate is misconfigured", log.Error(ErrScopeNotPopulated))
		h.respondForbidden(rw, logger, ErrScopeNotPopulated)
		return
	}
	if !scope.Match(granted, h.requiredScope) {
		err := fmt.Errorf("%w: one of %q is required, %q is granted", ErrInsufficientScope, h.requiredScope, granted)
		logger.Warn("access token is rejected by scope gate", log.Error(err))
		h.respondForbidden(rw, logger, err)
		return
	}

	h.next.ServeHTTP(rw, r)
}

func (h *scopeGateHandler) respondForbidden(rw http.ResponseWriter, logger log.FieldLogger, err error) {
	h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusForbidden)
	forbiddenErr := newForbiddenError(err)
	rw.Header().Set(HeaderWWWAuthenticate, makeBearerChallenge(h.errorDomain, forbiddenErr, h.requiredScope))
	apiErr := restapi.NewError(h.errorDomain, forbiddenErr.Code, forbiddenErr.Message)
	restapi.RespondError(rw, forbiddenErr.HTTPStatus(), apiErr, logger)
}
