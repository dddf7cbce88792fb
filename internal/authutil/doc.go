/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package authutil provides utilities for talking to the authorization server (HTTP client, logging).
// It's used in the internal code and not exposed to the public API.
package authutil
