/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokenguard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-tokenguard/authtest"
	"github.com/acronis/go-tokenguard/internal/metrics"
	"github.com/acronis/go-tokenguard/introspection"
)

const (
	testErrDomain    = "TestDomain"
	testClientID     = "test-client"
	testClientSecret = "test-secret"
)

type mockNextHandler struct {
	mu     sync.Mutex
	called int
	info   *TokenInfo
	token  string
}

func (h *mockNextHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.called++
	h.info = GetTokenInfoFromContext(r.Context())
	h.token = GetBearerTokenFromContext(r.Context())
	rw.WriteHeader(http.StatusOK)
}

func (h *mockNextHandler) calledTimes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.called
}

func startAuthServer(t *testing.T, opts ...authtest.HTTPServerOption) *authtest.HTTPServer {
	t.Helper()
	opts = append([]authtest.HTTPServerOption{authtest.WithHTTPClientCredentials(testClientID, testClientSecret)}, opts...)
	srv := authtest.NewHTTPServer(opts...)
	require.NoError(t, srv.StartAndWaitForReady(time.Second*3))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func newTestConfig(authURL string) *Config {
	cfg := NewDefaultConfig()
	cfg.AuthURL = authURL
	cfg.ClientID = testClientID
	cfg.ClientSecret = testClientSecret
	return cfg
}

func newTestGuard(t *testing.T, cfg *Config, opts ...GuardOption) *Guard {
	t.Helper()
	guard, err := NewGuard(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, guard.Close()) })
	return guard
}

func newActiveResult(scope ...string) introspection.Result {
	return introspection.Result{
		Active: true,
		Exp:    time.Now().Add(time.Hour).Unix(),
		Scope:  scope,
		User:   &introspection.User{Number: 42, ID: "user-42"},
		Client: &introspection.Client{ID: "client-1", Name: "Client One"},
	}
}

func serveWithToken(handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if authHeader != "" {
		req.Header.Set(HeaderAuthorization, authHeader)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestGuard_RequireAccessToken(t *testing.T) {
	t.Run("first request is introspected, second is served from cache", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{
			token: newActiveResult("api.read", "api.write"),
		}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}
		handler := guard.RequireAccessToken(testErrDomain)(next)

		resp := serveWithToken(handler, "Bearer "+token)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, 1, next.calledTimes())
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())
		require.Equal(t, 1, guard.Cache().Len())
		require.Equal(t, token, next.token)
		freshInfo := next.info
		require.Equal(t, &TokenInfo{
			Scope:      []string{"api.read", "api.write"},
			UserNumber: 42,
			UserID:     "user-42",
			Cached:     false,
		}, freshInfo)

		resp = serveWithToken(handler, "Bearer "+token)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, 2, next.calledTimes())
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())
		require.Equal(t, 1, guard.Cache().Len())
		require.True(t, next.info.Cached)
		require.Equal(t, freshInfo.Scope, next.info.Scope)
		require.Equal(t, freshInfo.UserNumber, next.info.UserNumber)
		require.Equal(t, freshInfo.UserID, next.info.UserID)
	})

	t.Run("introspection request has basic auth and json body", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: newActiveResult()}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()+"/"))

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(&mockNextHandler{}), "Bearer "+token)
		require.Equal(t, http.StatusOK, resp.Code)

		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		req.SetBasicAuth(testClientID, testClientSecret)
		require.Equal(t, req.Header.Get("Authorization"), authSrv.IntrospectionHandler.LastAuthorizationHeader())
		require.Equal(t, "application/json", authSrv.IntrospectionHandler.LastContentType())
		require.Equal(t, token, authSrv.IntrospectionHandler.LastIntrospectedToken())
	})

	t.Run("caching is disabled", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: newActiveResult()}))
		cfg := newTestConfig(authSrv.URL())
		cfg.TokenCacheSeconds = 0
		guard := newTestGuard(t, cfg)
		guard.Start(context.Background())
		next := &mockNextHandler{}
		handler := guard.RequireAccessToken(testErrDomain)(next)

		for i := 0; i < 3; i++ {
			resp := serveWithToken(handler, "Bearer "+token)
			require.Equal(t, http.StatusOK, resp.Code)
			require.False(t, next.info.Cached)
		}
		require.EqualValues(t, 3, authSrv.IntrospectionHandler.ServedCount())
		require.Equal(t, 0, guard.Cache().Len())
	})

	t.Run("cached result expires after TTL", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: newActiveResult()}))
		cfg := newTestConfig(authSrv.URL())
		cfg.TokenCacheSeconds = 1
		guard := newTestGuard(t, cfg)
		handler := guard.RequireAccessToken(testErrDomain)(&mockNextHandler{})

		require.Equal(t, http.StatusOK, serveWithToken(handler, "Bearer "+token).Code)
		require.Equal(t, http.StatusOK, serveWithToken(handler, "Bearer "+token).Code)
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())

		time.Sleep(time.Millisecond * 1100)
		require.Equal(t, http.StatusOK, serveWithToken(handler, "Bearer "+token).Code)
		require.EqualValues(t, 2, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("cached result expires with the token", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		result := newActiveResult()
		result.Exp = time.Now().Add(time.Second).Unix()
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: result}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL())) // TTL is 60s
		handler := guard.RequireAccessToken(testErrDomain)(&mockNextHandler{})

		require.Equal(t, http.StatusOK, serveWithToken(handler, "Bearer "+token).Code)
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())

		time.Sleep(time.Millisecond * 1100)
		serveWithToken(handler, "Bearer "+token)
		require.EqualValues(t, 2, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("bearer token is missing", func(t *testing.T) {
		authSrv := startAuthServer(t)
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(next), "")

		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeBearerTokenMissing)
		require.Equal(t, `Bearer realm="TestDomain"`, resp.Header().Get(HeaderWWWAuthenticate))
		require.Equal(t, 0, next.calledTimes())
		require.EqualValues(t, 0, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("bearer token is malformed", func(t *testing.T) {
		authSrv := startAuthServer(t)
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}
		handler := guard.RequireAccessToken(testErrDomain)(next)

		for _, headerVal := range []string{
			"Bearer abc",
			"Bearer a.b",
			"Bearer a.b.c.d",
			"Bearer a..c",
			"Bearer .b.c",
			"Bearer ",
			"Bearer",
			"Bearer  a.b.c",
			"Bearer a.b.c extra",
			"bearer a.b.c",
			"Basic dXNlcjpwYXNz",
			"a.b.c",
		} {
			resp := serveWithToken(handler, headerVal)
			testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeBearerTokenMalformed)
			require.Equal(t, `Bearer realm="TestDomain", error="invalid_request", error_description="`+
				ErrMessageBearerTokenMalformed+`"`, resp.Header().Get(HeaderWWWAuthenticate), headerVal)
		}
		require.Equal(t, 0, next.calledTimes())
		require.EqualValues(t, 0, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("authorization header is too long", func(t *testing.T) {
		authSrv := startAuthServer(t)
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		handler := guard.RequireAccessToken(testErrDomain)(&mockNextHandler{})

		makeHeader := func(length int) string {
			header := "Bearer a.b."
			return header + strings.Repeat("c", length-len(header))
		}

		resp := serveWithToken(handler, makeHeader(MaxAuthorizationHeaderLength+1))
		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeBearerTokenMalformed)
		require.EqualValues(t, 0, authSrv.IntrospectionHandler.ServedCount())

		// The header of the max length passes the structural check and is introspected (unknown token is inactive).
		resp = serveWithToken(handler, makeHeader(MaxAuthorizationHeaderLength))
		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeAuthenticationFailed)
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("structurally valid token proceeds to introspection", func(t *testing.T) {
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{"a.b.c": newActiveResult()}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(next), "Bearer a.b.c")
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, 1, next.calledTimes())
		require.Equal(t, "a.b.c", next.token)
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("token is not active", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		inactive := newActiveResult()
		inactive.Active = false
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: inactive}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}
		handler := guard.RequireAccessToken(testErrDomain)(next)

		for i := 0; i < 2; i++ {
			resp := serveWithToken(handler, "Bearer "+token)
			testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeAuthenticationFailed)
			require.Contains(t, resp.Header().Get(HeaderWWWAuthenticate), `error="invalid_token"`)
		}
		require.Equal(t, 0, next.calledTimes())
		require.Equal(t, 0, guard.Cache().Len())
		require.EqualValues(t, 2, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("client info is missing", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		result := newActiveResult()
		result.Client = nil
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: result}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(next), "Bearer "+token)
		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeAuthenticationFailed)
		require.Equal(t, 0, next.calledTimes())
		require.Equal(t, 0, guard.Cache().Len())
	})

	t.Run("introspection endpoint responds with error", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t)
		authSrv.IntrospectionHandler.SetErrorForToken(token, authtest.ErrorResponse{
			StatusCode:      http.StatusServiceUnavailable,
			WWWAuthenticate: `Bearer error="temporarily_unavailable"`,
			Body:            "maintenance",
		})
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(next), "Bearer "+token)
		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeAuthenticationFailed)
		require.Equal(t, 0, next.calledTimes())
	})

	t.Run("introspection endpoint responds with malformed body", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t)
		authSrv.IntrospectionHandler.SetRawResponseForToken(token, `{"active": "yes"`)
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(&mockNextHandler{}), "Bearer "+token)
		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeAuthenticationFailed)
	})

	t.Run("client credentials are rejected", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: newActiveResult()}))
		cfg := newTestConfig(authSrv.URL())
		cfg.ClientSecret = "wrong-secret"
		guard := newTestGuard(t, cfg)

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(&mockNextHandler{}), "Bearer "+token)
		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeAuthenticationFailed)
	})

	t.Run("introspection times out", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t,
			authtest.WithHTTPFixtures(map[string]introspection.Result{token: newActiveResult()}),
			authtest.WithHTTPResponseDelay(time.Second*2))
		cfg := newTestConfig(authSrv.URL())
		cfg.HTTPClient.RequestTimeout = config.TimeDuration(time.Millisecond * 100)
		guard := newTestGuard(t, cfg)
		next := &mockNextHandler{}

		startTime := time.Now()
		resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(next), "Bearer "+token)
		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, testErrDomain, ErrCodeAuthenticationFailed)
		require.True(t, time.Since(startTime) < time.Second*2, "introspection must be aborted by timeout")
		require.Equal(t, 0, next.calledTimes())
		require.Equal(t, 0, guard.Cache().Len())
	})

	t.Run("insufficient scope", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{
			token: newActiveResult("api.read"),
		}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}

		resp := serveWithToken(guard.RequireAccessToken(testErrDomain, WithRequiredScope("api.write"))(next), "Bearer "+token)
		testutil.RequireErrorInRecorder(t, resp, http.StatusForbidden, testErrDomain, ErrCodeAuthorizationFailed)
		require.Equal(t, `Bearer realm="TestDomain", error="insufficient_scope", error_description="`+
			ErrMessageAuthorizationFailed+`", scope="api.write"`, resp.Header().Get(HeaderWWWAuthenticate))
		require.Equal(t, 0, next.calledTimes())
		// The token itself is valid, so it's cached.
		require.Equal(t, 1, guard.Cache().Len())
	})

	t.Run("one of required scopes is granted", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{
			token: newActiveResult("api.read"),
		}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}
		handler := guard.RequireAccessToken(testErrDomain, WithRequiredScope("api.read", "api.write"))(next)

		require.Equal(t, http.StatusOK, serveWithToken(handler, "Bearer "+token).Code)
		require.Equal(t, http.StatusOK, serveWithToken(handler, "Bearer "+token).Code)
		require.Equal(t, 2, next.calledTimes())
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())
	})

	t.Run("token without scope and user info", func(t *testing.T) {
		token := authtest.NewToken("service", time.Hour)
		result := newActiveResult()
		result.User = nil
		authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{token: result}))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}

		require.Equal(t, http.StatusOK, serveWithToken(guard.RequireAccessToken(testErrDomain)(next), "Bearer "+token).Code)
		require.Equal(t, &TokenInfo{Scope: []string{}}, next.info)
	})

	t.Run("blank required scope panics", func(t *testing.T) {
		guard := newTestGuard(t, newTestConfig("http://127.0.0.1:1"))
		require.Panics(t, func() {
			guard.RequireAccessToken(testErrDomain, WithRequiredScope("api.read", " "))
		})
	})

	t.Run("guard is not initialized", func(t *testing.T) {
		for _, guard := range []*Guard{nil, {}} {
			next := &mockNextHandler{}
			resp := serveWithToken(guard.RequireAccessToken(testErrDomain)(next), "Bearer a.b.c")
			testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, testErrDomain, ErrCodeAuthConfigurationInvalid)
			require.Empty(t, resp.Header().Get(HeaderWWWAuthenticate))
			require.Equal(t, 0, next.calledTimes())
		}
	})

	t.Run("request headers are missing", func(t *testing.T) {
		authSrv := startAuthServer(t)
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		next := &mockNextHandler{}

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header = nil
		resp := httptest.NewRecorder()
		guard.RequireAccessToken(testErrDomain)(next).ServeHTTP(resp, req)

		testutil.RequireErrorInRecorder(t, resp, http.StatusInternalServerError, testErrDomain, ErrCodeAuthConfigurationInvalid)
		require.Equal(t, 0, next.calledTimes())
	})

	t.Run("concurrent requests with the same token share introspection", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t,
			authtest.WithHTTPFixtures(map[string]introspection.Result{token: newActiveResult()}),
			authtest.WithHTTPResponseDelay(time.Millisecond*200))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		handler := guard.RequireAccessToken(testErrDomain)(&mockNextHandler{})

		const workers = 10
		var okCount atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if serveWithToken(handler, "Bearer "+token).Code == http.StatusOK {
					okCount.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.EqualValues(t, workers, okCount.Load())
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())
		require.Equal(t, 1, guard.Cache().Len())
	})

	t.Run("canceled request does not fail concurrent requests with the same token", func(t *testing.T) {
		token := authtest.NewToken("user-42", time.Hour)
		authSrv := startAuthServer(t,
			authtest.WithHTTPFixtures(map[string]introspection.Result{token: newActiveResult()}),
			authtest.WithHTTPResponseDelay(time.Millisecond*300))
		guard := newTestGuard(t, newTestConfig(authSrv.URL()))
		handler := guard.RequireAccessToken(testErrDomain)(&mockNextHandler{})

		firstCtx, firstCancel := context.WithCancel(context.Background())
		defer firstCancel()
		firstCode := make(chan int, 1)
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody).WithContext(firstCtx)
			req.Header.Set(HeaderAuthorization, "Bearer "+token)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			firstCode <- resp.Code
		}()
		time.Sleep(time.Millisecond * 50)

		secondCode := make(chan int, 1)
		go func() {
			secondCode <- serveWithToken(handler, "Bearer "+token).Code
		}()
		time.Sleep(time.Millisecond * 50)
		firstCancel()

		require.Equal(t, http.StatusUnauthorized, <-firstCode)
		require.Equal(t, http.StatusOK, <-secondCode)
		require.EqualValues(t, 1, authSrv.IntrospectionHandler.ServedCount())
		require.Equal(t, 1, guard.Cache().Len())
	})
}

func TestGuard_RequireAccessToken_Metrics(t *testing.T) {
	promLabel := "middleware_test_" + uuid.NewString()
	token := authtest.NewToken("user-42", time.Hour)
	authSrv := startAuthServer(t, authtest.WithHTTPFixtures(map[string]introspection.Result{
		token: newActiveResult("api.read"),
	}))
	guard := newTestGuard(t, newTestConfig(authSrv.URL()), WithPrometheusLibInstanceLabel(promLabel))
	promMetrics := metrics.GetPrometheusMetrics(promLabel, metrics.SourceHTTPMiddleware)

	handler := guard.RequireAccessToken(testErrDomain)(&mockNextHandler{})
	serveWithToken(handler, "Bearer "+token)
	serveWithToken(handler, "Bearer "+token)
	serveWithToken(handler, "Bearer abc")
	serveWithToken(handler, "Bearer "+authtest.NewToken("unknown", time.Hour))
	serveWithToken(guard.RequireAccessToken(testErrDomain, WithRequiredScope("api.admin"))(&mockNextHandler{}), "Bearer "+token)

	testutil.RequireSamplesCountInCounter(t,
		promMetrics.TokenValidationsTotal.WithLabelValues(metrics.TokenValidationStatusActive), 1)
	testutil.RequireSamplesCountInCounter(t,
		promMetrics.TokenValidationsTotal.WithLabelValues(metrics.TokenValidationStatusCached), 1)
	testutil.RequireSamplesCountInCounter(t,
		promMetrics.TokenValidationsTotal.WithLabelValues(metrics.TokenValidationStatusMalformed), 1)
	testutil.RequireSamplesCountInCounter(t,
		promMetrics.TokenValidationsTotal.WithLabelValues(metrics.TokenValidationStatusNotActive), 1)
	testutil.RequireSamplesCountInCounter(t,
		promMetrics.TokenValidationsTotal.WithLabelValues(metrics.TokenValidationStatusForbidden), 1)
}
