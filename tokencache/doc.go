/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package tokencache provides an in-memory cache of token introspection results.
//
// Entries live for the configured TTL but never longer than the token itself (the "exp" field
// of the introspection result). Tokens are matched with a constant-time comparison.
// Expired entries are removed by a periodic sweep (see Cache.Run).
// The cache is memory-resident and is not persisted across process restarts.
package tokencache
