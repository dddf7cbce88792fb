/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authtest

import (
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/acronis/go-appkit/testutil"

	"github.com/acronis/go-tokenguard/introspection"
)

// IntrospectionEndpointPath is a path of the token introspection endpoint.
const IntrospectionEndpointPath = introspection.EndpointPath

const localhostWithDynamicPortAddr = "127.0.0.1:0"

// HTTPServerOption is an option for HTTPServer.
type HTTPServerOption func(s *HTTPServer)

// WithHTTPAddress is an option to set HTTP server address.
func WithHTTPAddress(addr string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.addr.Store(addr)
	}
}

// WithHTTPClientCredentials is an option to set client credentials
// which the introspection endpoint expects in the Basic authorization header.
func WithHTTPClientCredentials(clientID, clientSecret string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.IntrospectionHandler.ClientID = clientID
		s.IntrospectionHandler.ClientSecret = clientSecret
	}
}

// WithHTTPResponseDelay is an option to delay responses of the introspection endpoint.
func WithHTTPResponseDelay(delay time.Duration) HTTPServerOption {
	return func(s *HTTPServer) {
		s.IntrospectionHandler.Delay = delay
	}
}

// WithHTTPFixtures is an option to preload introspection results for tokens.
func WithHTTPFixtures(results map[string]introspection.Result) HTTPServerOption {
	return func(s *HTTPServer) {
		for token, result := range results {
			s.IntrospectionHandler.SetResultForToken(token, result)
		}
	}
}

// WithHTTPMiddleware is an option to wrap the server router with the middleware.
func WithHTTPMiddleware(mw func(http.Handler) http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.middleware = mw
	}
}

// HTTPServer is a mock authorization server for testing purposes.
type HTTPServer struct {
	*http.Server
	addr                 atomic.Value
	middleware           func(http.Handler) http.Handler
	IntrospectionHandler *IntrospectionHandler
	Router               *http.ServeMux
}

// NewHTTPServer creates a new HTTPServer with provided options.
func NewHTTPServer(options ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{IntrospectionHandler: &IntrospectionHandler{}}
	for _, opt := range options {
		opt(s)
	}

	s.Router = http.NewServeMux()
	s.Router.Handle(IntrospectionEndpointPath, s.IntrospectionHandler)

	// nolint:gosec // This server is used for testing purposes only.
	s.Server = &http.Server{Handler: s.Router}
	if s.middleware != nil {
		s.Server.Handler = s.middleware(s.Router)
	}

	return s
}

// URL method returns the URL of the server.
func (s *HTTPServer) URL() string {
	if srvURL := s.addr.Load(); srvURL != nil {
		return "http://" + srvURL.(string)
	}
	return ""
}

// Start starts the HTTPServer.
func (s *HTTPServer) Start() error {
	addr, ok := s.addr.Load().(string)
	if !ok {
		addr = localhostWithDynamicPortAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	s.addr.Store(ln.Addr().String())

	go func() { _ = s.Server.Serve(ln) }()

	return nil
}

// StartAndWaitForReady starts the server waits for the server to start listening.
func (s *HTTPServer) StartAndWaitForReady(timeout time.Duration) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return testutil.WaitListeningServer(s.addr.Load().(string), timeout)
}
