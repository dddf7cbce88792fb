/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokenguard

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"golang.org/x/sync/singleflight"

	"github.com/acronis/go-tokenguard/internal/authutil"
	"github.com/acronis/go-tokenguard/internal/metrics"
	"github.com/acronis/go-tokenguard/introspection"
	"github.com/acronis/go-tokenguard/tokencache"
)

// TokenIntrospector is an interface for introspecting tokens.
type TokenIntrospector interface {
	IntrospectToken(ctx context.Context, token string) (introspection.Result, error)
}

// Guard validates bearer access tokens via the authorization server and caches validation results.
// It owns the configuration, the token cache and the background sweep of expired cache entries.
// Several guards with different configurations may coexist in the same process.
type Guard struct {
	cfg          Config
	cache        *tokencache.Cache
	introspector TokenIntrospector
	inflight     singleflight.Group

	logger         log.FieldLogger
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
}

type guardOptions struct {
	logger                     log.FieldLogger
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
	httpClient                 *http.Client
	tokenIntrospector          TokenIntrospector
}

// GuardOption is an option for creating Guard.
type GuardOption func(options *guardOptions)

// WithLogger is an option to set a logger for background activities of the guard
// (token introspection, cache sweeping).
func WithLogger(logger log.FieldLogger) GuardOption {
	return func(options *guardOptions) {
		options.logger = logger
	}
}

// WithLoggerProvider is an option to set a provider of the request-scoped logger.
// By default, the logger from the request context is used (see go-appkit's httpserver/middleware.Logging).
func WithLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) GuardOption {
	return func(options *guardOptions) {
		options.loggerProvider = loggerProvider
	}
}

// WithPrometheusLibInstanceLabel is an option to set a label for Prometheus metrics that are used by the guard.
func WithPrometheusLibInstanceLabel(label string) GuardOption {
	return func(options *guardOptions) {
		options.prometheusLibInstanceLabel = label
	}
}

// WithHTTPClient is an option to set an HTTP client for doing introspection requests.
// The request timeout from the configuration is applied per request in any case.
func WithHTTPClient(httpClient *http.Client) GuardOption {
	return func(options *guardOptions) {
		options.httpClient = httpClient
	}
}

// WithTokenIntrospector is an option to replace the HTTP introspector with a custom implementation.
func WithTokenIntrospector(tokenIntrospector TokenIntrospector) GuardOption {
	return func(options *guardOptions) {
		options.tokenIntrospector = tokenIntrospector
	}
}

// NewGuard creates a new Guard with the given configuration.
// The configuration is validated and copied, so later changes of cfg don't affect the guard.
// Call Start to begin sweeping expired cache entries and Close to stop it.
func NewGuard(cfg *Config, opts ...GuardOption) (*Guard, error) {
	if cfg == nil {
		return nil, newConfigurationError(fmt.Errorf("%w: config is not provided", ErrConfigInvalid))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := guardOptions{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}

	introspector := options.tokenIntrospector
	if introspector == nil {
		httpIntrospector, err := introspection.NewIntrospectorWithOpts(introspection.IntrospectorOpts{
			AuthURL:                    cfg.AuthURL,
			ClientID:                   cfg.ClientID,
			ClientSecret:               cfg.ClientSecret,
			HTTPClient:                 options.httpClient,
			RequestTimeout:             cfg.requestTimeout(),
			Logger:                     options.logger,
			PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
		})
		if err != nil {
			return nil, newConfigurationError(fmt.Errorf("%w: create token introspector: %w", ErrConfigInvalid, err))
		}
		introspector = httpIntrospector
	}

	cache := tokencache.New(tokencache.Opts{
		TTL:                        cfg.tokenCacheTTL(),
		SweepInterval:              cfg.tokenCacheSweepInterval(),
		MaxEntries:                 cfg.TokenCacheMaxEntries,
		Logger:                     options.logger,
		PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
	})

	return &Guard{
		cfg:            *cfg,
		cache:          cache,
		introspector:   introspector,
		logger:         authutil.PrepareLogger(options.logger),
		loggerProvider: options.loggerProvider,
		promMetrics:    metrics.GetPrometheusMetrics(options.prometheusLibInstanceLabel, metrics.SourceHTTPMiddleware),
	}, nil
}

func (g *Guard) initialized() bool {
	return g != nil && g.cache != nil && g.introspector != nil
}

// Config returns a copy of the guard configuration.
func (g *Guard) Config() Config {
	return g.cfg
}

// Cache returns the token cache of the guard.
func (g *Guard) Cache() *tokencache.Cache {
	return g.cache
}

// Start starts the background sweep of expired cache entries.
// It does nothing if caching is disabled or the sweep is already running.
// The sweep stops when ctx is done or Close is called.
func (g *Guard) Start(ctx context.Context) {
	if !g.initialized() || !g.cache.Enabled() {
		return
	}

	g.sweepMu.Lock()
	defer g.sweepMu.Unlock()
	if g.sweepCancel != nil {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	g.sweepCancel = cancel
	g.sweepWG.Add(1)
	go func() {
		defer g.sweepWG.Done()
		g.cache.Run(sweepCtx)
	}()

	g.logger.AtLevel(log.LevelDebug, func(logFunc log.LogFunc) {
		logFunc(fmt.Sprintf("token cache sweep started, interval %s", g.cache.SweepInterval()))
	})
}

// Close stops the background sweep and waits until it's finished. It's safe to call Close multiple times.
func (g *Guard) Close() error {
	if !g.initialized() {
		return nil
	}

	g.sweepMu.Lock()
	cancel := g.sweepCancel
	g.sweepCancel = nil
	g.sweepMu.Unlock()

	if cancel != nil {
		cancel()
		g.sweepWG.Wait()
	}
	return nil
}

// introspect calls the introspector. Concurrent calls for the same token share a single request.
// The shared request is detached from the callers' cancellation and bounded by the request timeout only,
// each caller stops waiting when its own context is done.
func (g *Guard) introspect(ctx context.Context, token string) (introspection.Result, error) {
	resultCh := g.inflight.DoChan(token, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.requestTimeout())
		defer cancel()
		return g.introspector.IntrospectToken(flightCtx, token)
	})
	select {
	case res := <-resultCh:
		if res.Err != nil {
			return introspection.Result{}, res.Err
		}
		return res.Val.(introspection.Result).Clone(), nil
	case <-ctx.Done():
		return introspection.Result{}, ctx.Err()
	}
}

// SetDefaultLogger sets the default logger for the library.
// It's used when no logger is passed to the guard and the logger provider returns nil.
func SetDefaultLogger(logger log.FieldLogger) {
	authutil.DefaultLogger = logger
}
