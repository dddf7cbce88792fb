/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package introspection provides a client for the token introspection endpoint of the authorization server.
// Introspector asks the server whether the given access token is active and what it grants.
// It does a single request per call, bounded by a hard timeout, and never retries.
package introspection
