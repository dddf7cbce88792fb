/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package authtest provides a mock authorization server with the token introspection endpoint
// and helpers for making test access tokens. It's intended to be used in tests only.
package authtest
