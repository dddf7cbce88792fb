/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokenguard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"

	"github.com/acronis/go-tokenguard/internal/authutil"
	"github.com/acronis/go-tokenguard/internal/metrics"
	"github.com/acronis/go-tokenguard/introspection"
	"github.com/acronis/go-tokenguard/scope"
)

// HeaderAuthorization contains the name of HTTP header with data that is used for authentication and authorization.
const HeaderAuthorization = "Authorization"

// HeaderWWWAuthenticate contains the name of HTTP header with the authentication challenge.
const HeaderWWWAuthenticate = "WWW-Authenticate"

// MaxAuthorizationHeaderLength is the maximum length (in bytes) of the Authorization header that is parsed.
const MaxAuthorizationHeaderLength = 4096

const bearerPrefix = "Bearer "

// RequireOption is an option for Guard.RequireAccessToken.
type RequireOption func(options *requireOptions)

type requireOptions struct {
	requiredScope  []string
	loggerProvider func(ctx context.Context) log.FieldLogger
}

// WithRequiredScope is an option to require at least one of the given scopes to be granted to the token.
// When no scopes are specified, any valid token is accepted.
// Scopes are normalized: surrounding spaces are trimmed, blank scopes cause a panic when the middleware is created.
func WithRequiredScope(scopes ...string) RequireOption {
	return func(options *requireOptions) {
		options.requiredScope = append(options.requiredScope, scopes...)
	}
}

// WithRequireLoggerProvider is an option to override the guard's logger provider for the middleware.
func WithRequireLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) RequireOption {
	return func(options *requireOptions) {
		options.loggerProvider = loggerProvider
	}
}

type accessTokenHandler struct {
	next           http.Handler
	guard          *Guard
	errorDomain    string
	requiredScope  []string
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

// RequireAccessToken is a middleware that does authentication by the access token
// from the "Authorization" HTTP header of incoming request.
// The token is looked up in the cache and introspected at the authorization server on a cache miss.
// Scopes and user info of the token are attached to the request context (see GetTokenInfoFromContext).
//
// errorDomain is used for error responses and as the realm of the authentication challenge.
// It is usually the name of the service that uses the middleware.
// For example, if the "Authorization" HTTP header is missing, the middleware will return 401 with the following response body:
//
//	{"error": {"domain": "MyService", "code": "bearerTokenMissing", "message": "Authorization bearer token is missing."}}
//
// Calling RequireAccessToken on a nil or zero Guard is allowed,
// but every request is rejected with 500 in this case.
func (g *Guard) RequireAccessToken(errorDomain string, opts ...RequireOption) func(next http.Handler) http.Handler {
	var options requireOptions
	for _, opt := range opts {
		opt(&options)
	}

	var requiredScope []string
	if len(options.requiredScope) != 0 {
		var err error
		if requiredScope, err = scope.Normalize(options.requiredScope); err != nil {
			panic(fmt.Errorf("require access token: %w", err))
		}
	}

	loggerProvider := options.loggerProvider
	promMetrics := metrics.GetPrometheusMetrics("", metrics.SourceHTTPMiddleware)
	if g != nil {
		if loggerProvider == nil {
			loggerProvider = g.loggerProvider
		}
		if g.promMetrics != nil {
			promMetrics = g.promMetrics
		}
	}
	if loggerProvider == nil {
		loggerProvider = middleware.GetLoggerFromContext
	}

	return func(next http.Handler) http.Handler {
		return &accessTokenHandler{
			next:           next,
			guard:          g,
			errorDomain:    errorDomain,
			requiredScope:  requiredScope,
			loggerProvider: loggerProvider,
			promMetrics:    promMetrics,
		}
	}
}

// requestState is the per-request value that is passed through the validation stages.
type requestState struct {
	r             *http.Request
	token         string
	result        introspection.Result
	requiredScope []string
	cached        bool
	logger        log.FieldLogger
}

type validationStage struct {
	name string
	run  func(h *accessTokenHandler, st *requestState) error
}

// validationPipeline is evaluated in order, the first failed stage terminates the request.
var validationPipeline = []validationStage{
	{name: "guard", run: (*accessTokenHandler).checkGuard},
	{name: "extract", run: (*accessTokenHandler).extractToken},
	{name: "cache", run: (*accessTokenHandler).lookupCache},
	{name: "introspect", run: (*accessTokenHandler).introspectToken},
	{name: "active", run: (*accessTokenHandler).checkActive},
	{name: "cache_write", run: (*accessTokenHandler).writeCache},
	{name: "enrich", run: (*accessTokenHandler).enrichContext},
	{name: "scope", run: (*accessTokenHandler).checkScope},
}

func (h *accessTokenHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	st := &requestState{
		r:             r,
		requiredScope: h.requiredScope,
		logger:        authutil.GetLoggerFromProvider(r.Context(), h.loggerProvider),
	}
	for _, stage := range validationPipeline {
		if err := stage.run(h, st); err != nil {
			h.respondError(rw, st, stage.name, err)
			return
		}
	}

	if st.cached {
		h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusCached)
	} else {
		h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusActive)
	}
	st.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc(fmt.Sprintf("access token is valid (cached: %t)", st.cached))
	})

	h.next.ServeHTTP(rw, st.r)
}

func (h *accessTokenHandler) checkGuard(st *requestState) error {
	if !h.guard.initialized() {
		return newConfigurationError(ErrGuardNotInitialized)
	}
	if st.r.Header == nil {
		return newConfigurationError(ErrRequestHeadersMissing)
	}
	return nil
}

func (h *accessTokenHandler) extractToken(st *requestState) error {
	token, err := GetBearerTokenFromRequest(st.r)
	if err != nil {
		return err
	}
	st.token = token
	return nil
}

func (h *accessTokenHandler) lookupCache(st *requestState) error {
	st.result, st.cached = h.guard.cache.Lookup(st.token)
	return nil
}

func (h *accessTokenHandler) introspectToken(st *requestState) error {
	if st.cached {
		return nil
	}
	result, err := h.guard.introspect(st.r.Context(), st.token)
	if err != nil {
		return newAuthenticationFailedError(fmt.Errorf("introspect token: %w", err))
	}
	st.result = result
	return nil
}

func (h *accessTokenHandler) checkActive(st *requestState) error {
	if !st.result.Active {
		return newAuthenticationFailedError(ErrTokenNotActive)
	}
	if st.result.Client == nil {
		return newAuthenticationFailedError(fmt.Errorf("%w: client info is missing in introspection result", ErrTokenNotActive))
	}
	return nil
}

func (h *accessTokenHandler) writeCache(st *requestState) error {
	if !st.cached {
		h.guard.cache.Insert(st.token, st.result)
	}
	return nil
}

func (h *accessTokenHandler) enrichContext(st *requestState) error {
	info := &TokenInfo{Scope: make([]string, 0, len(st.result.Scope)), Cached: st.cached}
	info.Scope = append(info.Scope, st.result.Scope...)
	if st.result.User != nil {
		info.UserNumber = st.result.User.Number
		info.UserID = st.result.User.ID
	}
	ctx := NewContextWithBearerToken(st.r.Context(), st.token)
	st.r = st.r.WithContext(NewContextWithTokenInfo(ctx, info))
	return nil
}

func (h *accessTokenHandler) checkScope(st *requestState) error {
	if len(st.requiredScope) == 0 {
		return nil
	}
	granted, _ := GetTokenScopeFromContext(st.r.Context())
	if !scope.Match(granted, st.requiredScope) {
		return newForbiddenError(fmt.Errorf("%w: one of %q is required, %q is granted",
			ErrInsufficientScope, st.requiredScope, granted))
	}
	return nil
}

func (h *accessTokenHandler) respondError(rw http.ResponseWriter, st *requestState, stageName string, err error) {
	var guardErr *Error
	if !errors.As(err, &guardErr) {
		guardErr = newConfigurationError(err)
	}

	switch {
	case guardErr.Kind == ErrorKindConfiguration:
		st.logger.Error(fmt.Sprintf("access token validation failed at stage %q", stageName), log.Error(err))
		h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusError)
	case guardErr.Kind == ErrorKindForbidden:
		st.logger.Warn(fmt.Sprintf("access token is rejected at stage %q", stageName), log.Error(err))
		h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusForbidden)
	case guardErr.Code == ErrCodeBearerTokenMissing || guardErr.Code == ErrCodeBearerTokenMalformed:
		st.logger.Warn(fmt.Sprintf("access token is rejected at stage %q", stageName), log.Error(err))
		h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusMalformed)
	case errors.Is(err, ErrTokenNotActive):
		st.logger.Warn(fmt.Sprintf("access token is rejected at stage %q", stageName), log.Error(err))
		h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusNotActive)
	default:
		st.logger.Warn(fmt.Sprintf("access token is rejected at stage %q", stageName), log.Error(err))
		h.promMetrics.IncTokenValidationsTotal(metrics.TokenValidationStatusError)
	}

	if challenge := makeBearerChallenge(h.errorDomain, guardErr, st.requiredScope); challenge != "" {
		rw.Header().Set(HeaderWWWAuthenticate, challenge)
	}
	apiErr := restapi.NewError(h.errorDomain, guardErr.Code, guardErr.Message)
	restapi.RespondError(rw, guardErr.HTTPStatus(), apiErr, st.logger)
}

// makeBearerChallenge builds the value of the WWW-Authenticate header (RFC 6750, section 3).
// Configuration errors get no challenge.
func makeBearerChallenge(realm string, guardErr *Error, requiredScope []string) string {
	if guardErr.Kind == ErrorKindConfiguration {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Bearer")
	params := 0
	writeParam := func(name, value string) {
		if params == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		params++
		sb.WriteString(name)
		sb.WriteString(`="`)
		sb.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value))
		sb.WriteString(`"`)
	}
	if realm != "" {
		writeParam("realm", realm)
	}
	if guardErr.challengeError != "" {
		writeParam("error", guardErr.challengeError)
		writeParam("error_description", guardErr.Message)
	}
	if guardErr.challengeError == challengeErrorInsufficientScope && len(requiredScope) != 0 {
		writeParam("scope", strings.Join(requiredScope, " "))
	}
	return sb.String()
}

// GetBearerTokenFromRequest extracts the bearer token from the "Authorization" HTTP header.
// The header must be of the exact form "Bearer <token>", not longer than MaxAuthorizationHeaderLength,
// and the token must consist of three non-empty dot-separated segments (the JWT shape, signature is not checked).
// The returned error is an authorization Error.
func GetBearerTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get(HeaderAuthorization)
	if authHeader == "" {
		return "", newBearerTokenMissingError()
	}
	if len(authHeader) > MaxAuthorizationHeaderLength {
		return "", newBearerTokenMalformedError(fmt.Errorf("%w: %d bytes, max %d allowed",
			ErrAuthorizationHeaderTooLong, len(authHeader), MaxAuthorizationHeaderLength))
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", newBearerTokenMalformedError(fmt.Errorf("%w: %q scheme is expected", ErrBearerTokenMalformed, "Bearer"))
	}
	token := authHeader[len(bearerPrefix):]
	if !isJWTShaped(token) {
		return "", newBearerTokenMalformedError(fmt.Errorf("%w: three dot-separated segments are expected", ErrBearerTokenMalformed))
	}
	return token, nil
}

func isJWTShaped(token string) bool {
	if strings.ContainsAny(token, " \t\r\n") {
		return false
	}
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return false
	}
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}
