/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acronis/go-tokenguard/introspection"
)

// ErrorResponse describes a non-200 response the introspection endpoint should return for a token.
type ErrorResponse struct {
	StatusCode      int
	WWWAuthenticate string
	Body            string
}

// IntrospectionHandler is an implementation of the POST /oauth/introspect endpoint.
// Tokens without a configured result are reported as inactive.
type IntrospectionHandler struct {
	// ClientID and ClientSecret are expected in the Basic authorization header (if set).
	ClientID     string
	ClientSecret string

	// Delay is applied before responding. It's useful for testing timeouts.
	Delay time.Duration

	mu       sync.RWMutex
	results  map[string]introspection.Result
	errResps map[string]ErrorResponse
	rawResps map[string]string

	servedCount             atomic.Uint64
	lastAuthorizationHeader atomic.Pointer[string]
	lastContentType         atomic.Pointer[string]
	lastIntrospectedToken   atomic.Pointer[string]
}

// SetResultForToken sets the introspection result that will be returned for the token.
func (h *IntrospectionHandler) SetResultForToken(token string, result introspection.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.results == nil {
		h.results = make(map[string]introspection.Result)
	}
	h.results[token] = result
}

// SetErrorForToken makes the endpoint respond with the given error for the token.
func (h *IntrospectionHandler) SetErrorForToken(token string, errResp ErrorResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errResps == nil {
		h.errResps = make(map[string]ErrorResponse)
	}
	h.errResps[token] = errResp
}

// SetRawResponseForToken makes the endpoint respond with 200 and the given raw body for the token.
func (h *IntrospectionHandler) SetRawResponseForToken(token string, body string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rawResps == nil {
		h.rawResps = make(map[string]string)
	}
	h.rawResps[token] = body
}

func (h *IntrospectionHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	h.servedCount.Add(1)

	authHeader := r.Header.Get("Authorization")
	contentType := r.Header.Get("Content-Type")
	h.lastAuthorizationHeader.Store(&authHeader)
	h.lastContentType.Store(&contentType)

	if h.ClientID != "" {
		clientID, clientSecret, ok := r.BasicAuth()
		if !ok || clientID != h.ClientID || clientSecret != h.ClientSecret {
			rw.Header().Set("WWW-Authenticate", `Basic realm="authtest"`)
			http.Error(rw, "Invalid client credentials", http.StatusUnauthorized)
			return
		}
	}

	var reqBody struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(rw, fmt.Sprintf("Error decoding request body: %v", err), http.StatusBadRequest)
		return
	}
	if reqBody.AccessToken == "" {
		http.Error(rw, "Access token is required", http.StatusBadRequest)
		return
	}
	h.lastIntrospectedToken.Store(&reqBody.AccessToken)

	if h.Delay > 0 {
		select {
		case <-time.After(h.Delay):
		case <-r.Context().Done():
			return
		}
	}

	h.mu.RLock()
	errResp, hasErrResp := h.errResps[reqBody.AccessToken]
	rawResp, hasRawResp := h.rawResps[reqBody.AccessToken]
	result := h.results[reqBody.AccessToken]
	h.mu.RUnlock()

	if hasErrResp {
		if errResp.WWWAuthenticate != "" {
			rw.Header().Set("WWW-Authenticate", errResp.WWWAuthenticate)
		}
		http.Error(rw, errResp.Body, errResp.StatusCode)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	if hasRawResp {
		_, _ = rw.Write([]byte(rawResp))
		return
	}
	if err := json.NewEncoder(rw).Encode(result); err != nil {
		http.Error(rw, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

// ServedCount returns the number of times the handler has been served.
func (h *IntrospectionHandler) ServedCount() uint64 {
	return h.servedCount.Load()
}

// ResetServedCount resets the number of times the handler has been served.
func (h *IntrospectionHandler) ResetServedCount() {
	h.servedCount.Store(0)
}

// LastAuthorizationHeader returns the Authorization header of the last served request.
func (h *IntrospectionHandler) LastAuthorizationHeader() string {
	if ptr := h.lastAuthorizationHeader.Load(); ptr != nil {
		return *ptr
	}
	return ""
}

// LastContentType returns the Content-Type header of the last served request.
func (h *IntrospectionHandler) LastContentType() string {
	if ptr := h.lastContentType.Load(); ptr != nil {
		return *ptr
	}
	return ""
}

// LastIntrospectedToken returns the token from the body of the last served request.
func (h *IntrospectionHandler) LastIntrospectedToken() string {
	if ptr := h.lastIntrospectedToken.Load(); ptr != nil {
		return *ptr
	}
	return ""
}
