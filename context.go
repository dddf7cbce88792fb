/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package tokenguard

import "context"

type ctxKey int

const (
	ctxKeyTokenInfo ctxKey = iota
	ctxKeyBearerToken
)

// TokenInfo is the information about the validated access token that is attached to the request context.
type TokenInfo struct {
	// Scope is a list of scopes granted to the token. It's never nil, but may be empty.
	Scope []string

	// UserNumber is a numeric identifier of the user the token was issued for. 0 if absent.
	UserNumber int64

	// UserID is a string identifier of the user the token was issued for. Empty if absent.
	UserID string

	// Cached reports whether the introspection result was taken from the cache.
	Cached bool
}

// NewContextWithTokenInfo creates a new context with token info.
func NewContextWithTokenInfo(ctx context.Context, info *TokenInfo) context.Context {
	return context.WithValue(ctx, ctxKeyTokenInfo, info)
}

// GetTokenInfoFromContext extracts token info from the context.
func GetTokenInfoFromContext(ctx context.Context) *TokenInfo {
	value, _ := ctx.Value(ctxKeyTokenInfo).(*TokenInfo)
	return value
}

// GetTokenScopeFromContext extracts the granted token scope from the context.
// The second return value is false if the scope was not populated (the access token middleware did not run).
func GetTokenScopeFromContext(ctx context.Context) ([]string, bool) {
	info := GetTokenInfoFromContext(ctx)
	if info == nil || info.Scope == nil {
		return nil, false
	}
	return info.Scope, true
}

// NewContextWithBearerToken creates a new context with token.
func NewContextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyBearerToken, token)
}

// GetBearerTokenFromContext extracts token from the context.
func GetBearerTokenFromContext(ctx context.Context) string {
	value, _ := ctx.Value(ctxKeyBearerToken).(string)
	return value
}
